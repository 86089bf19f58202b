package dto

import "github.com/google/uuid"

type EventResponse struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	FrameIndex int       `json:"frame_index"`
	Timestamp  string    `json:"timestamp"`
	Regions    int       `json:"regions"`
	FrameURL   string    `json:"frame_url,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// WSEvent is a WebSocket message for real-time progress delivery.
type WSEvent struct {
	Type       string    `json:"type"` // frame_processed, job_status
	JobID      uuid.UUID `json:"job_id"`
	FrameIndex int       `json:"frame_index,omitempty"`
	Regions    int       `json:"regions,omitempty"`
	FramesDone int       `json:"frames_done,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	Status     string    `json:"status,omitempty"`
}
