package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage names one independent analysis step applied to an InterviewResponse.
type Stage string

const (
	StageTranscode  Stage = "transcode"
	StageTranscribe Stage = "transcribe"
	StageTone       Stage = "tone"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// StageJob is one retryable unit of work. The (response, stage) pair is the
// idempotency key: redelivered messages for an already running or finished
// unit are dropped at claim time.
type StageJob struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ResponseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_response_stage,priority:1" json:"response_id"`
	Stage      Stage     `gorm:"type:text;not null;uniqueIndex:idx_response_stage,priority:2" json:"stage"`
	Status     JobStatus `gorm:"type:text;not null;default:'queued'" json:"status"`
	Attempts   int       `gorm:"not null;default:0" json:"attempts"`
	LastError  *string   `gorm:"type:text" json:"last_error,omitempty"`
	NextRunAt  time.Time `gorm:"type:timestamp;index" json:"next_run_at"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (StageJob) TableName() string {
	return "stage_jobs"
}
