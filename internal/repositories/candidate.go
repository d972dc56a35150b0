package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarthire/internal/models"
)

type CandidateRepository interface {
	Create(candidate *models.CandidateProfile) error
	FindByID(id uuid.UUID) (*models.CandidateProfile, error)
	UpdateResumeFields(id uuid.UUID, fields *ResumeFieldsUpdate) error
}

// ResumeFieldsUpdate carries the extractor output applied to a profile.
type ResumeFieldsUpdate struct {
	ResumeDocumentID uuid.UUID
	Skills           models.StringSlice
	ExperienceYears  float64
	EducationLevel   models.EducationLevel
	LowConfidence    bool
}

type candidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

func (r *candidateRepository) Create(candidate *models.CandidateProfile) error {
	if err := r.db.Create(candidate).Error; err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

func (r *candidateRepository) FindByID(id uuid.UUID) (*models.CandidateProfile, error) {
	var candidate models.CandidateProfile
	if err := r.db.Where("id = ?", id).First(&candidate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("candidate not found")
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &candidate, nil
}

func (r *candidateRepository) UpdateResumeFields(id uuid.UUID, fields *ResumeFieldsUpdate) error {
	result := r.db.Model(&models.CandidateProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resume_document_id": fields.ResumeDocumentID,
			"skills":             fields.Skills,
			"experience_years":   fields.ExperienceYears,
			"education_level":    fields.EducationLevel,
			"low_confidence":     fields.LowConfidence,
			"updated_at":         time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update resume fields: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("candidate not found")
	}

	return nil
}
