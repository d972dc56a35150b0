package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarthire/internal/models"
)

// ErrVersionConflict signals a concurrent update to the same evaluation. The
// caller re-reads and retries the merge; neither side is dropped.
var ErrVersionConflict = errors.New("evaluation version conflict")

type EvaluationRepository interface {
	FindByID(id uuid.UUID) (*models.Evaluation, error)
	FindByCandidate(candidateID uuid.UUID) (*models.Evaluation, error)
	// FindOrCreateByCandidate returns the candidate's evaluation, creating it
	// in PENDING when the first response arrives.
	FindOrCreateByCandidate(candidateID uuid.UUID) (*models.Evaluation, error)
	// UpdateVersioned applies updates only when the stored version still
	// matches expected, bumping the counter. Returns ErrVersionConflict
	// otherwise.
	UpdateVersioned(id uuid.UUID, expectedVersion int64, updates *EvaluationUpdate) error
	// MarkNotified records the completion side effect exactly once. Returns
	// false when another writer already claimed it.
	MarkNotified(id uuid.UUID) (bool, error)
}

// EvaluationUpdate carries the aggregator's merge output. Nil score fields are
// left untouched.
type EvaluationUpdate struct {
	Status           models.EvaluationStatus
	CompositeScore   *float64
	PersonalityScore *float64
	ResumeScore      *float64
	ToneScore        *float64
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) FindByID(id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.Where("id = ?", id).First(&eval).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("evaluation not found")
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) FindByCandidate(candidateID uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.Where("candidate_id = ?", candidateID).First(&eval).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("evaluation not found")
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) FindOrCreateByCandidate(candidateID uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.Where("candidate_id = ?", candidateID).First(&eval).Error
	if err == nil {
		return &eval, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}

	eval = models.Evaluation{
		ID:          uuid.New(),
		CandidateID: candidateID,
		Status:      models.StatusPending,
	}
	if err := r.db.Create(&eval).Error; err != nil {
		// A concurrent submit may have created it first.
		var existing models.Evaluation
		if findErr := r.db.Where("candidate_id = ?", candidateID).First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create evaluation: %w", err)
	}
	return &eval, nil
}

func (r *evaluationRepository) UpdateVersioned(id uuid.UUID, expectedVersion int64, update *EvaluationUpdate) error {
	updates := map[string]interface{}{
		"status":     update.Status,
		"version":    expectedVersion + 1,
		"updated_at": time.Now(),
	}

	if update.CompositeScore != nil {
		updates["composite_score"] = *update.CompositeScore
	}
	if update.PersonalityScore != nil {
		updates["personality_score"] = *update.PersonalityScore
	}
	if update.ResumeScore != nil {
		updates["resume_score"] = *update.ResumeScore
	}
	if update.ToneScore != nil {
		updates["tone_score"] = *update.ToneScore
	}

	result := r.db.Model(&models.Evaluation{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update evaluation: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	return nil
}

func (r *evaluationRepository) MarkNotified(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.Evaluation{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", time.Now())

	if result.Error != nil {
		return false, fmt.Errorf("failed to mark evaluation notified: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}
