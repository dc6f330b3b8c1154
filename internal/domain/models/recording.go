package models

import "time"

type Recording struct {
	RecordingID string    `json:"recording_id" db:"recording_id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	FilePath    string    `json:"file_path" db:"file_path"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	StopTime    time.Time `json:"stop_time" db:"stop_time"`
	FrameCount  int64     `json:"frame_count" db:"frame_count"`
	IsMoved     bool      `json:"is_moved" db:"is_moved"`
	ObjectKey   string    `json:"object_key,omitempty" db:"object_key"`
}
