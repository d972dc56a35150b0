package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EducationLevel string

const (
	EducationUnknown    EducationLevel = "unknown"
	EducationHighSchool EducationLevel = "highschool"
	EducationBachelor   EducationLevel = "bachelor"
	EducationMaster     EducationLevel = "master"
	EducationDoctorate  EducationLevel = "doctorate"
)

// StringSlice is stored as a JSON array column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string slice: %w", err)
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for string slice: %T", value)
	}
}

type CandidateProfile struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name             string         `gorm:"type:text;not null" json:"name"`
	Email            string         `gorm:"type:text;not null" json:"email"`
	ResumeDocumentID *uuid.UUID     `gorm:"type:uuid" json:"resume_document_id,omitempty"`
	Skills           StringSlice    `gorm:"type:text" json:"skills"`
	ExperienceYears  float64        `gorm:"type:decimal(4,1)" json:"experience_years"`
	EducationLevel   EducationLevel `gorm:"type:text;default:'unknown'" json:"education_level"`
	LowConfidence    bool           `gorm:"default:false" json:"low_confidence"`
	CreatedAt        time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CandidateProfile) TableName() string {
	return "candidate_profiles"
}

// PersonalityProfile holds one OCEAN assessment outcome. Re-assessment creates
// a new row and flags the previous one as superseded.
type PersonalityProfile struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CandidateID       uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	Openness          float64   `gorm:"type:decimal(4,3);not null" json:"openness"`
	Conscientiousness float64   `gorm:"type:decimal(4,3);not null" json:"conscientiousness"`
	Extraversion      float64   `gorm:"type:decimal(4,3);not null" json:"extraversion"`
	Agreeableness     float64   `gorm:"type:decimal(4,3);not null" json:"agreeableness"`
	Neuroticism       float64   `gorm:"type:decimal(4,3);not null" json:"neuroticism"`
	Superseded        bool      `gorm:"default:false" json:"superseded"`
	CreatedAt         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PersonalityProfile) TableName() string {
	return "personality_profiles"
}

// Traits returns the five scores keyed by trait name.
func (p *PersonalityProfile) Traits() map[string]float64 {
	return map[string]float64{
		"openness":          p.Openness,
		"conscientiousness": p.Conscientiousness,
		"extraversion":      p.Extraversion,
		"agreeableness":     p.Agreeableness,
		"neuroticism":       p.Neuroticism,
	}
}
