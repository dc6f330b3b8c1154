package models

import "time"

type CameraKind string

const (
	CameraLocal   CameraKind = "local"
	CameraNetwork CameraKind = "network"
)

type CommandAction string

const (
	CommandStart CommandAction = "start"
	CommandStop  CommandAction = "stop"
)

type SessionStatus string

const (
	StatusStarted SessionStatus = "started"
	StatusStopped SessionStatus = "stopped"
	StatusError   SessionStatus = "error"
)

// CameraParams identifies the device or stream behind a session.
type CameraParams struct {
	Kind          CameraKind `json:"camera_type"`
	DeviceIndices []int      `json:"device_indices,omitempty"`
	Address       string     `json:"ip,omitempty"`
	Port          string     `json:"port,omitempty"`
}

// CameraCommand is a decoded control request.
type CameraCommand struct {
	Action CommandAction
	Params CameraParams
}

// SessionInfo is a point-in-time view of the active camera session.
type SessionInfo struct {
	ID               string       `json:"id"`
	Params           CameraParams `json:"params"`
	Running          bool         `json:"running"`
	StartedAt        time.Time    `json:"started_at"`
	LastReadOK       bool         `json:"last_read_ok"`
	FramesRead       uint64       `json:"frames_read"`
	ReadErrors       uint64       `json:"read_errors"`
	Recording        bool         `json:"recording"`
	CurrentRecording string       `json:"current_recording,omitempty"`
}
