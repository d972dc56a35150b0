package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ResponseStatus string

const (
	ResponseRecorded     ResponseStatus = "recorded"
	ResponseUploaded     ResponseStatus = "uploaded"
	ResponseTranscribing ResponseStatus = "transcribing"
	ResponseAnalyzing    ResponseStatus = "analyzing"
	ResponseReady        ResponseStatus = "ready"
	ResponseFailed       ResponseStatus = "failed"
)

// rank orders the forward-only progression. FAILED is reachable from any
// non-terminal state.
var responseStatusRank = map[ResponseStatus]int{
	ResponseRecorded:     0,
	ResponseUploaded:     1,
	ResponseTranscribing: 2,
	ResponseAnalyzing:    3,
	ResponseReady:        4,
}

func (s ResponseStatus) Terminal() bool {
	return s == ResponseReady || s == ResponseFailed
}

// CanTransitionTo reports whether moving from s to next respects the state
// machine: strictly forward, no exit from a terminal state.
func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ResponseFailed {
		return true
	}
	from, ok := responseStatusRank[s]
	if !ok {
		return false
	}
	to, ok := responseStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// InterviewResponse is one recorded answer for a (candidate, question) pair.
// Re-recording creates a new version and flags the old row as superseded.
type InterviewResponse struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_candidate_question_version,priority:1" json:"candidate_id"`
	EvaluationID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	QuestionID      string         `gorm:"type:text;not null;uniqueIndex:idx_candidate_question_version,priority:2" json:"question_id"`
	Version         int            `gorm:"not null;default:1;uniqueIndex:idx_candidate_question_version,priority:3" json:"version"`
	Superseded      bool           `gorm:"default:false" json:"superseded"`
	MediaDocumentID *uuid.UUID     `gorm:"type:uuid" json:"media_document_id,omitempty"`
	MediaCodec      string         `gorm:"type:text" json:"media_codec"`
	MediaSize       int64          `gorm:"type:bigint" json:"media_size"`
	MediaDuration   time.Duration  `gorm:"type:bigint" json:"media_duration"`
	Status          ResponseStatus `gorm:"type:text;not null;default:'recorded'" json:"status"`
	CreatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (InterviewResponse) TableName() string {
	return "interview_responses"
}

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// ToneScores maps an emotion label to a confidence in [0,1], stored as JSON.
type ToneScores map[string]float64

func (t ToneScores) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tone scores: %w", err)
	}
	return string(b), nil
}

func (t *ToneScores) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	case nil:
		*t = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for tone scores: %T", value)
	}
}

// AnalysisResult accumulates per-stage output for one response. Partial
// population is a normal state while the pipeline runs; "not yet analyzed"
// and "analysis failed" are distinct stage statuses, never inferred from
// nullability.
type AnalysisResult struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ResponseID          uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"response_id"`
	Transcript          *string     `gorm:"type:text" json:"transcript,omitempty"`
	ToneScores          ToneScores  `gorm:"type:text" json:"tone_scores,omitempty"`
	Partial             bool        `gorm:"default:false" json:"partial"`
	TranscriptionStatus StageStatus `gorm:"type:text;not null;default:'pending'" json:"transcription_status"`
	TranscriptionError  *string     `gorm:"type:text" json:"transcription_error,omitempty"`
	ToneStatus          StageStatus `gorm:"type:text;not null;default:'pending'" json:"tone_status"`
	ToneError           *string     `gorm:"type:text" json:"tone_error,omitempty"`
	CreatedAt           time.Time   `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}
