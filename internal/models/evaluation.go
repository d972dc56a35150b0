package models

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationStatus string

const (
	StatusPending     EvaluationStatus = "pending"
	StatusInProgress  EvaluationStatus = "in_progress"
	StatusComplete    EvaluationStatus = "complete"
	StatusNeedsReview EvaluationStatus = "needs_review"
)

func (s EvaluationStatus) Terminal() bool {
	return s == StatusComplete || s == StatusNeedsReview
}

// Evaluation is the single point of truth read by downstream decision-making.
// It is the only entity mutated by multiple concurrent stages, so every update
// goes through the version-guarded repository path.
type Evaluation struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateID      uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"candidate_id"`
	Status           EvaluationStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	CompositeScore   *float64         `gorm:"type:decimal(5,4)" json:"composite_score,omitempty"`
	PersonalityScore *float64         `gorm:"type:decimal(5,4)" json:"personality_score,omitempty"`
	ResumeScore      *float64         `gorm:"type:decimal(5,4)" json:"resume_score,omitempty"`
	ToneScore        *float64         `gorm:"type:decimal(5,4)" json:"tone_score,omitempty"`
	Version          int64            `gorm:"not null;default:0" json:"version"`
	NotifiedAt       *time.Time       `gorm:"type:timestamp" json:"notified_at,omitempty"`
	CreatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
