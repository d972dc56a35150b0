package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarthire/internal/models"
)

type PersonalityRepository interface {
	// CreateSuperseding stores a new profile and flags any prior active
	// profile for the candidate as superseded, in one transaction.
	CreateSuperseding(profile *models.PersonalityProfile) error
	FindActiveByCandidate(candidateID uuid.UUID) (*models.PersonalityProfile, error)
}

type personalityRepository struct {
	db *gorm.DB
}

func NewPersonalityRepository(db *gorm.DB) PersonalityRepository {
	return &personalityRepository{db: db}
}

func (r *personalityRepository) CreateSuperseding(profile *models.PersonalityProfile) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PersonalityProfile{}).
			Where("candidate_id = ? AND superseded = ?", profile.CandidateID, false).
			Update("superseded", true).Error; err != nil {
			return err
		}
		return tx.Create(profile).Error
	})

	if err != nil {
		return fmt.Errorf("failed to create personality profile: %w", err)
	}
	return nil
}

func (r *personalityRepository) FindActiveByCandidate(candidateID uuid.UUID) (*models.PersonalityProfile, error) {
	var profile models.PersonalityProfile
	err := r.db.
		Where("candidate_id = ? AND superseded = ?", candidateID, false).
		Order("created_at DESC").
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("personality profile not found")
		}
		return nil, fmt.Errorf("failed to find personality profile: %w", err)
	}
	return &profile, nil
}
