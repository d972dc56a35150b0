package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarthire/internal/models"
)

type ResponseRepository interface {
	// CreateSuperseding stores a new response version for the (candidate,
	// question) pair, flagging any prior active version as superseded, and
	// creates its empty AnalysisResult. Runs in one transaction.
	CreateSuperseding(response *models.InterviewResponse) error
	FindByID(id uuid.UUID) (*models.InterviewResponse, error)
	// UpdateStatus applies a forward-only transition. Returns an error when
	// the transition is not allowed or the row changed underneath.
	UpdateStatus(id uuid.UUID, from, to models.ResponseStatus) error
	// MarkUploaded transitions RECORDED -> UPLOADED, attaches the stored
	// media document and enqueues the given stage job atomically.
	MarkUploaded(id uuid.UUID, mediaDocID uuid.UUID, job *models.StageJob) error
	ListActiveByEvaluation(evaluationID uuid.UUID) ([]models.InterviewResponse, error)

	FindResultByResponse(responseID uuid.UUID) (*models.AnalysisResult, error)
	SaveTranscription(responseID uuid.UUID, transcript *string, status models.StageStatus, stageErr *string) error
	SaveToneScores(responseID uuid.UUID, scores models.ToneScores, partial bool, status models.StageStatus, stageErr *string) error
}

type responseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

func (r *responseRepository) CreateSuperseding(response *models.InterviewResponse) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var prior models.InterviewResponse
		err := tx.
			Where("candidate_id = ? AND question_id = ? AND superseded = ?",
				response.CandidateID, response.QuestionID, false).
			Order("version DESC").
			First(&prior).Error
		switch err {
		case nil:
			response.Version = prior.Version + 1
			if err := tx.Model(&models.InterviewResponse{}).
				Where("id = ?", prior.ID).
				Update("superseded", true).Error; err != nil {
				return err
			}
		case gorm.ErrRecordNotFound:
			response.Version = 1
		default:
			return err
		}

		if err := tx.Create(response).Error; err != nil {
			return err
		}

		result := &models.AnalysisResult{
			ID:         uuid.New(),
			ResponseID: response.ID,
		}
		return tx.Create(result).Error
	})

	if err != nil {
		return fmt.Errorf("failed to create interview response: %w", err)
	}
	return nil
}

func (r *responseRepository) FindByID(id uuid.UUID) (*models.InterviewResponse, error) {
	var response models.InterviewResponse
	if err := r.db.Where("id = ?", id).First(&response).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("interview response not found")
		}
		return nil, fmt.Errorf("failed to find interview response: %w", err)
	}
	return &response, nil
}

func (r *responseRepository) UpdateStatus(id uuid.UUID, from, to models.ResponseStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal response transition %s -> %s", from, to)
	}

	result := r.db.Model(&models.InterviewResponse{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update response status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("response %s no longer in status %s", id, from)
	}

	return nil
}

func (r *responseRepository) MarkUploaded(id uuid.UUID, mediaDocID uuid.UUID, job *models.StageJob) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InterviewResponse{}).
			Where("id = ? AND status = ?", id, models.ResponseRecorded).
			Updates(map[string]interface{}{
				"status":            models.ResponseUploaded,
				"media_document_id": mediaDocID,
				"updated_at":        time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("response %s no longer in status %s", id, models.ResponseRecorded)
		}
		return tx.Create(job).Error
	})

	if err != nil {
		return fmt.Errorf("failed to mark response uploaded: %w", err)
	}
	return nil
}

func (r *responseRepository) ListActiveByEvaluation(evaluationID uuid.UUID) ([]models.InterviewResponse, error) {
	var responses []models.InterviewResponse
	err := r.db.
		Where("evaluation_id = ? AND superseded = ?", evaluationID, false).
		Order("created_at ASC").
		Find(&responses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return responses, nil
}

func (r *responseRepository) FindResultByResponse(responseID uuid.UUID) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := r.db.Where("response_id = ?", responseID).First(&result).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("analysis result not found")
		}
		return nil, fmt.Errorf("failed to find analysis result: %w", err)
	}
	return &result, nil
}

func (r *responseRepository) SaveTranscription(responseID uuid.UUID, transcript *string, status models.StageStatus, stageErr *string) error {
	result := r.db.Model(&models.AnalysisResult{}).
		Where("response_id = ?", responseID).
		Updates(map[string]interface{}{
			"transcript":           transcript,
			"transcription_status": status,
			"transcription_error":  stageErr,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save transcription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("analysis result not found")
	}
	return nil
}

func (r *responseRepository) SaveToneScores(responseID uuid.UUID, scores models.ToneScores, partial bool, status models.StageStatus, stageErr *string) error {
	result := r.db.Model(&models.AnalysisResult{}).
		Where("response_id = ?", responseID).
		Updates(map[string]interface{}{
			"tone_scores": scores,
			"partial":     partial,
			"tone_status": status,
			"tone_error":  stageErr,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save tone scores: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("analysis result not found")
	}
	return nil
}
