package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

type CreateJobRequest struct {
	SourceURL  string          `json:"source_url"`
	SourceType string          `json:"source_type" binding:"required,oneof=file rtsp http youtube"`
	FPS        int             `json:"fps"`
	Params     json.RawMessage `json:"params,omitempty"` // blur overrides: {"strength":31,"type":"pixelate"}
}

type JobResponse struct {
	ID           uuid.UUID       `json:"id"`
	SourceURL    string          `json:"source_url,omitempty"`
	SourceType   string          `json:"source_type"`
	Status       string          `json:"status"`
	FPS          int             `json:"fps"`
	FramesTotal  int             `json:"frames_total"`
	FramesDone   int             `json:"frames_done"`
	Progress     float64         `json:"progress"` // 0..1, file jobs only
	OutputURL    string          `json:"output_url,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}
