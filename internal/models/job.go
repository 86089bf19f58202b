package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeFile    SourceType = "file"
	SourceTypeRTSP    SourceType = "rtsp"
	SourceTypeHTTP    SourceType = "http"
	SourceTypeYouTube SourceType = "youtube"
)

// Live reports whether the source is an open-ended stream. Live jobs keep
// a rolling window of blurred preview frames; file jobs are assembled
// into an output video once every frame is done.
func (s SourceType) Live() bool {
	return s == SourceTypeRTSP || s == SourceTypeHTTP || s == SourceTypeYouTube
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusStarting   JobStatus = "starting"
	JobStatusRunning    JobStatus = "running"
	JobStatusAssembling JobStatus = "assembling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusStopped    JobStatus = "stopped"
	JobStatusError      JobStatus = "error"
)

// Job is one blurring session: a video source plus its blur parameters.
// Tracker state lives in the worker for the duration of the job and is
// not persisted.
type Job struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SourceURL    string          `json:"source_url" db:"source_url"`
	SourceKey    string          `json:"source_key,omitempty" db:"source_key"` // uploaded file object, file jobs only
	SourceType   SourceType      `json:"source_type" db:"source_type"`
	Status       JobStatus       `json:"status" db:"status"`
	FPS          int             `json:"fps" db:"fps"`
	FramesTotal  int             `json:"frames_total" db:"frames_total"`
	FramesDone   int             `json:"frames_done" db:"frames_done"`
	OutputKey    string          `json:"output_key,omitempty" db:"output_key"`
	Params       json.RawMessage `json:"params,omitempty" db:"params"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}
