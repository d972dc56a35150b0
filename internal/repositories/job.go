package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"smarthire/internal/models"
)

type JobRepository interface {
	Create(job *models.StageJob) error
	FindByKey(responseID uuid.UUID, stage models.Stage) (*models.StageJob, error)
	// Claim moves a due queued job to running and stamps next_run_at with the
	// lease deadline. Returns false when the job is already running or
	// finished, which makes redelivered messages no-ops.
	Claim(id uuid.UUID, leaseUntil time.Time) (bool, error)
	// Requeue schedules another attempt after a transient failure.
	Requeue(id uuid.UUID, attempts int, lastError string, nextRunAt time.Time) error
	MarkSucceeded(id uuid.UUID) error
	MarkFailed(id uuid.UUID, attempts int, lastError string) error
	// FindDue lists queued jobs whose next run time has passed; the poller
	// republishes them after a crash or a lost enqueue. Running jobs whose
	// lease expired are moved back to queued first, so work claimed by a
	// worker that died is picked up again.
	FindDue(now time.Time, limit int) ([]models.StageJob, error)
	// AllTerminalForEvaluation reports whether every stage job attached to
	// the evaluation's active responses has finished, one way or the other.
	AllTerminalForEvaluation(evaluationID uuid.UUID) (bool, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.StageJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create stage job: %w", err)
	}
	return nil
}

func (r *jobRepository) FindByKey(responseID uuid.UUID, stage models.Stage) (*models.StageJob, error) {
	var job models.StageJob
	err := r.db.Where("response_id = ? AND stage = ?", responseID, stage).First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("stage job not found")
		}
		return nil, fmt.Errorf("failed to find stage job: %w", err)
	}
	return &job, nil
}

func (r *jobRepository) Claim(id uuid.UUID, leaseUntil time.Time) (bool, error) {
	result := r.db.Model(&models.StageJob{}).
		Where("id = ? AND status = ? AND next_run_at <= ?", id, models.JobQueued, time.Now()).
		Updates(map[string]interface{}{
			"status":      models.JobRunning,
			"next_run_at": leaseUntil,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to claim stage job: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *jobRepository) Requeue(id uuid.UUID, attempts int, lastError string, nextRunAt time.Time) error {
	result := r.db.Model(&models.StageJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.JobQueued,
			"attempts":    attempts,
			"last_error":  lastError,
			"next_run_at": nextRunAt,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to requeue stage job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("stage job not found")
	}
	return nil
}

func (r *jobRepository) MarkSucceeded(id uuid.UUID) error {
	result := r.db.Model(&models.StageJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.JobSucceeded,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark stage job succeeded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("stage job not found")
	}
	return nil
}

func (r *jobRepository) MarkFailed(id uuid.UUID, attempts int, lastError string) error {
	result := r.db.Model(&models.StageJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.JobFailed,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark stage job failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("stage job not found")
	}
	return nil
}

func (r *jobRepository) FindDue(now time.Time, limit int) ([]models.StageJob, error) {
	reclaim := r.db.Model(&models.StageJob{}).
		Where("status = ? AND next_run_at <= ?", models.JobRunning, now).
		Updates(map[string]interface{}{
			"status":     models.JobQueued,
			"updated_at": time.Now(),
		})
	if reclaim.Error != nil {
		return nil, fmt.Errorf("failed to reclaim expired jobs: %w", reclaim.Error)
	}

	var jobs []models.StageJob
	err := r.db.
		Where("status = ? AND next_run_at <= ?", models.JobQueued, now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find due jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) AllTerminalForEvaluation(evaluationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&models.StageJob{}).
		Joins("JOIN interview_responses ON interview_responses.id = stage_jobs.response_id").
		Where("interview_responses.evaluation_id = ? AND interview_responses.superseded = ?", evaluationID, false).
		Where("stage_jobs.status IN ?", []models.JobStatus{models.JobQueued, models.JobRunning}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count open stage jobs: %w", err)
	}
	return count == 0, nil
}
