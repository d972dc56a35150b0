package models

import "time"

type CreateCandidateResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Skills          []string `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	EducationLevel  string   `json:"education_level"`
	LowConfidence   bool     `json:"low_confidence"`
}

type AssessmentRequest struct {
	Answers []int `json:"answers"`
}

type AssessmentResponse struct {
	ID                string  `json:"id"`
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

type SubmitResponseResult struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Version    int    `json:"version"`
	Status     string `json:"status"`
}

// ResponseBreakdown is the per-response slice of the evaluation export.
type ResponseBreakdown struct {
	ResponseID          string             `json:"response_id"`
	QuestionID          string             `json:"question_id"`
	Status              string             `json:"status"`
	Transcript          *string            `json:"transcript,omitempty"`
	ToneScores          map[string]float64 `json:"tone_scores,omitempty"`
	Partial             bool               `json:"partial"`
	TranscriptionStatus string             `json:"transcription_status"`
	TranscriptionError  *string            `json:"transcription_error,omitempty"`
	ToneStatus          string             `json:"tone_status"`
	ToneError           *string            `json:"tone_error,omitempty"`
}

// EvaluationExport is the read-only view consumed by the decision/notification
// collaborator.
type EvaluationExport struct {
	ID               string              `json:"id"`
	CandidateID      string              `json:"candidate_id"`
	Status           string              `json:"status"`
	CompositeScore   *float64            `json:"composite_score,omitempty"`
	PersonalityScore *float64            `json:"personality_score,omitempty"`
	ResumeScore      *float64            `json:"resume_score,omitempty"`
	ToneScore        *float64            `json:"tone_score,omitempty"`
	Responses        []ResponseBreakdown `json:"responses"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
