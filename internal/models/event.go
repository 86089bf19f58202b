package models

import (
	"time"

	"github.com/google/uuid"
)

// FrameTask is the message published to NATS for worker processing.
type FrameTask struct {
	JobID     uuid.UUID `json:"job_id"`
	FrameID   uuid.UUID `json:"frame_id"`
	Index     int       `json:"index"` // 0-based position in the source
	Timestamp time.Time `json:"timestamp"`
	FrameRef  string    `json:"frame_ref"` // MinIO object key of the raw frame
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

// BlurResult is the output from a worker for one processed frame.
type BlurResult struct {
	JobID      uuid.UUID `json:"job_id"`
	FrameID    uuid.UUID `json:"frame_id"`
	Index      int       `json:"index"`
	Timestamp  time.Time `json:"timestamp"`
	Regions    int       `json:"regions"` // blurred regions in this frame
	Tracks     []uint64  `json:"tracks"`  // ids of the tracks behind them
	FrameKey   string    `json:"frame_key"` // MinIO key of the blurred frame
	DurationMS float64   `json:"duration_ms"`
}

// Event is a stored per-frame record, used for progress reporting and
// auditing which frames had regions blurred.
type Event struct {
	ID         uuid.UUID `json:"id" db:"id"`
	JobID      uuid.UUID `json:"job_id" db:"job_id"`
	FrameIndex int       `json:"frame_index" db:"frame_index"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Regions    int       `json:"regions" db:"regions"`
	FrameKey   string    `json:"frame_key" db:"frame_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
