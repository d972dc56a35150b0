package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smarthire/internal/config"
	"smarthire/internal/models"
	"smarthire/internal/repositories"
)

// Aggregator owns the evaluation state machine. It is invoked on every
// terminal response transition and is safe to re-invoke with unchanged
// inputs: the same terminal inputs always produce the same score, and the
// completion side effect fires at most once.
type Aggregator interface {
	// EnsureActive moves a PENDING evaluation to IN_PROGRESS when a response
	// starts processing.
	EnsureActive(ctx context.Context, evaluationID uuid.UUID) error
	// OnResponseTerminal recomputes the evaluation after a response reached
	// READY or FAILED. Version conflicts with a concurrent completion are
	// resolved by retrying the merge.
	OnResponseTerminal(ctx context.Context, evaluationID uuid.UUID) error
	Export(candidateID uuid.UUID) (*models.EvaluationExport, error)
}

// Notifier is the boundary to the out-of-scope decision/notification
// collaborator. Called at most once per finalized evaluation.
type Notifier func(evaluation *models.Evaluation)

const mergeRetryLimit = 5

type aggregator struct {
	evalRepo        repositories.EvaluationRepository
	responseRepo    repositories.ResponseRepository
	candidateRepo   repositories.CandidateRepository
	personalityRepo repositories.PersonalityRepository
	jobRepo         repositories.JobRepository
	matcher         RequirementMatcher
	cfg             config.PipelineConfig
	notify          Notifier
	logger          *zap.Logger
}

func NewAggregator(
	evalRepo repositories.EvaluationRepository,
	responseRepo repositories.ResponseRepository,
	candidateRepo repositories.CandidateRepository,
	personalityRepo repositories.PersonalityRepository,
	jobRepo repositories.JobRepository,
	matcher RequirementMatcher,
	cfg config.PipelineConfig,
	notify Notifier,
	logger *zap.Logger,
) Aggregator {
	return &aggregator{
		evalRepo:        evalRepo,
		responseRepo:    responseRepo,
		candidateRepo:   candidateRepo,
		personalityRepo: personalityRepo,
		jobRepo:         jobRepo,
		matcher:         matcher,
		cfg:             cfg,
		notify:          notify,
		logger:          logger,
	}
}

func (a *aggregator) EnsureActive(ctx context.Context, evaluationID uuid.UUID) error {
	for attempt := 0; attempt < mergeRetryLimit; attempt++ {
		eval, err := a.evalRepo.FindByID(evaluationID)
		if err != nil {
			return err
		}
		if eval.Status != models.StatusPending {
			return nil
		}

		err = a.evalRepo.UpdateVersioned(eval.ID, eval.Version, &repositories.EvaluationUpdate{
			Status: models.StatusInProgress,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("failed to activate evaluation %s after %d attempts", evaluationID, mergeRetryLimit)
}

func (a *aggregator) OnResponseTerminal(ctx context.Context, evaluationID uuid.UUID) error {
	for attempt := 0; attempt < mergeRetryLimit; attempt++ {
		err := a.mergeOnce(ctx, evaluationID)
		if err == nil {
			return nil
		}
		if errors.Is(err, repositories.ErrVersionConflict) {
			a.logger.Debug("Evaluation merge conflict, retrying",
				zap.String("evaluationId", evaluationID.String()),
				zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return fmt.Errorf("failed to merge evaluation %s after %d attempts", evaluationID, mergeRetryLimit)
}

func (a *aggregator) mergeOnce(ctx context.Context, evaluationID uuid.UUID) error {
	eval, err := a.evalRepo.FindByID(evaluationID)
	if err != nil {
		return err
	}

	// A terminal evaluation is never rescored. A late nudge only settles a
	// notification the original finalizer did not get to deliver.
	if eval.Status.Terminal() {
		return a.claimNotification(eval.ID)
	}

	responses, err := a.responseRepo.ListActiveByEvaluation(evaluationID)
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		return nil
	}

	allTerminal := true
	anyFailed := false
	for _, r := range responses {
		if !r.Status.Terminal() {
			allTerminal = false
		}
		if r.Status == models.ResponseFailed {
			anyFailed = true
		}
	}

	// The composite is defined only once every required response is
	// terminal; until then the evaluation just tracks progress.
	if !allTerminal {
		if eval.Status == models.StatusPending {
			return a.evalRepo.UpdateVersioned(eval.ID, eval.Version, &repositories.EvaluationUpdate{
				Status: models.StatusInProgress,
			})
		}
		return nil
	}

	// Stage jobs lag response transitions by one write, so double-check no
	// unit is still queued or running before finalizing.
	jobsDone, err := a.jobRepo.AllTerminalForEvaluation(eval.ID)
	if err != nil {
		return err
	}
	if !jobsDone {
		return nil
	}

	status := models.StatusComplete
	if anyFailed {
		status = models.StatusNeedsReview
	}

	scores, err := a.computeScores(ctx, eval.CandidateID, responses)
	if err != nil {
		return err
	}

	update := &repositories.EvaluationUpdate{
		Status:           status,
		CompositeScore:   &scores.composite,
		PersonalityScore: &scores.personality,
		ResumeScore:      &scores.resume,
		ToneScore:        &scores.tone,
	}
	if err := a.evalRepo.UpdateVersioned(eval.ID, eval.Version, update); err != nil {
		return err
	}

	return a.claimNotification(eval.ID)
}

// claimNotification fires the completion side effect at most once per
// evaluation, guarded by the notified_at column.
func (a *aggregator) claimNotification(evaluationID uuid.UUID) error {
	claimed, err := a.evalRepo.MarkNotified(evaluationID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	finalized, err := a.evalRepo.FindByID(evaluationID)
	if err != nil {
		return err
	}

	composite := 0.0
	if finalized.CompositeScore != nil {
		composite = *finalized.CompositeScore
	}
	a.logger.Info("Evaluation finalized",
		zap.String("evaluationId", finalized.ID.String()),
		zap.String("status", string(finalized.Status)),
		zap.Float64("compositeScore", composite))
	if a.notify != nil {
		a.notify(finalized)
	}
	return nil
}

type compositeScores struct {
	composite   float64
	personality float64
	resume      float64
	tone        float64
}

func (a *aggregator) computeScores(ctx context.Context, candidateID uuid.UUID, responses []models.InterviewResponse) (*compositeScores, error) {
	candidate, err := a.candidateRepo.FindByID(candidateID)
	if err != nil {
		return nil, err
	}

	personality := a.personalityAlignment(candidateID)

	resume, err := a.matcher.Score(ctx, candidate)
	if err != nil {
		return nil, err
	}

	tone, err := a.positiveToneScore(responses)
	if err != nil {
		return nil, err
	}

	wp, wr, wt := a.cfg.WeightPersonality, a.cfg.WeightResume, a.cfg.WeightTone
	total := wp + wr + wt
	if total <= 0 {
		total = 1
	}
	composite := (wp*personality + wr*resume + wt*tone) / total

	return &compositeScores{
		composite:   composite,
		personality: personality,
		resume:      resume,
		tone:        tone,
	}, nil
}

// personalityAlignment compares the active profile against the configured
// target: 1 minus the mean absolute trait distance. No profile scores zero.
func (a *aggregator) personalityAlignment(candidateID uuid.UUID) float64 {
	profile, err := a.personalityRepo.FindActiveByCandidate(candidateID)
	if err != nil {
		return 0
	}

	traits := profile.Traits()
	var distance float64
	var count int
	for name, target := range a.cfg.TargetTraits {
		actual, ok := traits[name]
		if !ok {
			continue
		}
		distance += math.Abs(actual - target)
		count++
	}
	if count == 0 {
		return 0
	}

	return 1 - distance/float64(count)
}

// positiveToneScore averages the configured positive-emotion confidences
// across READY responses. Failed responses contribute nothing.
func (a *aggregator) positiveToneScore(responses []models.InterviewResponse) (float64, error) {
	if len(a.cfg.PositiveEmotions) == 0 {
		return 0, nil
	}

	var sum float64
	var ready int
	for _, r := range responses {
		if r.Status != models.ResponseReady {
			continue
		}
		result, err := a.responseRepo.FindResultByResponse(r.ID)
		if err != nil {
			return 0, err
		}

		var responseSum float64
		for _, emotion := range a.cfg.PositiveEmotions {
			responseSum += result.ToneScores[emotion]
		}
		sum += responseSum / float64(len(a.cfg.PositiveEmotions))
		ready++
	}

	if ready == 0 {
		return 0, nil
	}
	return sum / float64(ready), nil
}

func (a *aggregator) Export(candidateID uuid.UUID) (*models.EvaluationExport, error) {
	eval, err := a.evalRepo.FindByCandidate(candidateID)
	if err != nil {
		return nil, err
	}

	responses, err := a.responseRepo.ListActiveByEvaluation(eval.ID)
	if err != nil {
		return nil, err
	}

	breakdown := make([]models.ResponseBreakdown, 0, len(responses))
	for _, r := range responses {
		item := models.ResponseBreakdown{
			ResponseID: r.ID.String(),
			QuestionID: r.QuestionID,
			Status:     string(r.Status),
		}
		result, err := a.responseRepo.FindResultByResponse(r.ID)
		if err == nil {
			item.Transcript = result.Transcript
			item.ToneScores = result.ToneScores
			item.Partial = result.Partial
			item.TranscriptionStatus = string(result.TranscriptionStatus)
			item.TranscriptionError = result.TranscriptionError
			item.ToneStatus = string(result.ToneStatus)
			item.ToneError = result.ToneError
		}
		breakdown = append(breakdown, item)
	}

	return &models.EvaluationExport{
		ID:               eval.ID.String(),
		CandidateID:      eval.CandidateID.String(),
		Status:           string(eval.Status),
		CompositeScore:   eval.CompositeScore,
		PersonalityScore: eval.PersonalityScore,
		ResumeScore:      eval.ResumeScore,
		ToneScore:        eval.ToneScore,
		Responses:        breakdown,
		UpdatedAt:        eval.UpdatedAt,
	}, nil
}
