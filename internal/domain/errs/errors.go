package errs

import "errors"

var (
	ErrNoCamera      = errors.New("no camera available")
	ErrCannotConnect = errors.New("cannot connect to camera stream")
	ErrNotRunning    = errors.New("camera is not running")
	ErrReadFrame     = errors.New("failed to read frame")
	ErrSourceClosed  = errors.New("camera handle closed")

	ErrUnknownCameraType = errors.New("unknown camera type")
	ErrUnknownAction     = errors.New("unknown action")

	ErrDetection    = errors.New("detection failed")
	ErrUnknownLabel = errors.New("label is not in model vocabulary")

	ErrRecordingSink     = errors.New("recording sink failure")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrUpload            = errors.New("failed to upload recording")

	ErrAlertNotFound = errors.New("alert not found")
	ErrWriteToDB     = errors.New("failed to write to database")
)
