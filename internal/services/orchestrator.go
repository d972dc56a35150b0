package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smarthire/internal/config"
	"smarthire/internal/models"
	"smarthire/internal/queue"
	"smarthire/internal/repositories"
)

// Orchestrator runs the per-response analysis stages. Each stage is one
// StageJob: claimed with a compare-and-swap so redelivered messages are
// no-ops, retried with exponential backoff on transient analyzer errors,
// and recovered by the poller when an enqueue is lost.
type Orchestrator interface {
	// EnqueueTranscode registers the first stage for a freshly recorded
	// response and wakes a worker. Safe to call twice for the same response.
	EnqueueTranscode(ctx context.Context, responseID uuid.UUID) error
	// HandleMessage processes one queue delivery.
	HandleMessage(ctx context.Context, body []byte) error
	Start(ctx context.Context)
	Stop()
}

type orchestrator struct {
	responseRepo repositories.ResponseRepository
	jobRepo      repositories.JobRepository
	docRepo      repositories.DocumentRepository
	storage      StorageService
	media        MediaService
	transcriber  Transcriber
	toneAnalyzer ToneAnalyzer
	aggregator   Aggregator
	queue        queue.Queue
	workers      config.WorkerConfig
	pipeline     config.PipelineConfig
	logger       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(
	responseRepo repositories.ResponseRepository,
	jobRepo repositories.JobRepository,
	docRepo repositories.DocumentRepository,
	storage StorageService,
	media MediaService,
	transcriber Transcriber,
	toneAnalyzer ToneAnalyzer,
	aggregator Aggregator,
	q queue.Queue,
	workers config.WorkerConfig,
	pipeline config.PipelineConfig,
	logger *zap.Logger,
) Orchestrator {
	return &orchestrator{
		responseRepo: responseRepo,
		jobRepo:      jobRepo,
		docRepo:      docRepo,
		storage:      storage,
		media:        media,
		transcriber:  transcriber,
		toneAnalyzer: toneAnalyzer,
		aggregator:   aggregator,
		queue:        q,
		workers:      workers,
		pipeline:     pipeline,
		logger:       logger,
	}
}

func (o *orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for i := 0; i < o.workers.Concurrency; i++ {
		o.wg.Add(1)
		go func(worker int) {
			defer o.wg.Done()
			if err := o.queue.Consume(ctx, o.HandleMessage); err != nil && ctx.Err() == nil {
				o.logger.Error("Worker stopped consuming", zap.Int("worker", worker), zap.Error(err))
			}
		}(i)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.poll(ctx)
	}()

	o.logger.Info("Stage workers started", zap.Int("concurrency", o.workers.Concurrency))
}

func (o *orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// poll republishes queued jobs whose run time has passed. This recovers
// backoff retries, jobs whose original publish was lost, and claims whose
// lease expired because the holding worker died.
func (o *orchestrator) poll(ctx context.Context) {
	ticker := time.NewTicker(o.workers.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := o.jobRepo.FindDue(time.Now(), 50)
			if err != nil {
				o.logger.Error("Failed to poll due jobs", zap.Error(err))
				continue
			}
			for _, job := range jobs {
				if err := o.publishJob(ctx, &job); err != nil {
					o.logger.Warn("Failed to republish due job",
						zap.String("jobId", job.ID.String()), zap.Error(err))
				}
			}
		}
	}
}

func (o *orchestrator) EnqueueTranscode(ctx context.Context, responseID uuid.UUID) error {
	job := &models.StageJob{
		ID:         uuid.New(),
		ResponseID: responseID,
		Stage:      models.StageTranscode,
		Status:     models.JobQueued,
		NextRunAt:  time.Now(),
	}

	if err := o.jobRepo.Create(job); err != nil {
		// The (response, stage) key already exists: reuse the earlier job.
		existing, findErr := o.jobRepo.FindByKey(responseID, models.StageTranscode)
		if findErr != nil {
			return err
		}
		job = existing
	}

	return o.publishJob(ctx, job)
}

func (o *orchestrator) publishJob(ctx context.Context, job *models.StageJob) error {
	body, err := queue.StageMessage{
		JobID:      job.ID,
		ResponseID: job.ResponseID,
		Stage:      job.Stage,
	}.Marshal()
	if err != nil {
		return err
	}
	return o.queue.Publish(ctx, body)
}

func (o *orchestrator) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := queue.UnmarshalStageMessage(body)
	if err != nil {
		o.logger.Warn("Dropping malformed stage message", zap.Error(err))
		return nil
	}

	claimed, err := o.jobRepo.Claim(msg.JobID, time.Now().Add(o.pipeline.StageLease))
	if err != nil {
		return err
	}
	if !claimed {
		// Already running, finished, or not yet due. A running claim is
		// covered by the lease: if the holder died, the poller requeues the
		// job once the lease expires. A finished job still gets the
		// aggregation nudge, in case the original worker died after its
		// terminal write but before nudging.
		job, findErr := o.jobRepo.FindByKey(msg.ResponseID, msg.Stage)
		if findErr != nil {
			return nil
		}
		if job.Status == models.JobSucceeded || job.Status == models.JobFailed {
			return o.notifyIfTerminal(ctx, job.ResponseID)
		}
		return nil
	}

	job, err := o.jobRepo.FindByKey(msg.ResponseID, msg.Stage)
	if err != nil {
		return err
	}

	stageErr := o.runStage(ctx, job)
	if stageErr == nil {
		if err := o.jobRepo.MarkSucceeded(job.ID); err != nil {
			return err
		}
		return o.notifyIfTerminal(ctx, job.ResponseID)
	}

	attempts := job.Attempts + 1
	if IsTransient(stageErr) && attempts < o.pipeline.StageRetryLimit {
		delay := o.pipeline.StageBackoffBase * time.Duration(1<<(attempts-1))
		o.logger.Warn("Stage attempt failed, retrying",
			zap.String("responseId", job.ResponseID.String()),
			zap.String("stage", string(job.Stage)),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(stageErr))
		return o.jobRepo.Requeue(job.ID, attempts, stageErr.Error(), time.Now().Add(delay))
	}

	return o.failStage(ctx, job, attempts, stageErr)
}

func (o *orchestrator) runStage(ctx context.Context, job *models.StageJob) error {
	switch job.Stage {
	case models.StageTranscode:
		return o.runTranscode(ctx, job)
	case models.StageTranscribe:
		return o.runTranscribe(ctx, job)
	case models.StageTone:
		return o.runTone(ctx, job)
	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}

// runTranscode normalizes the raw recording into the canonical stored asset,
// moves the response to UPLOADED and registers the transcription stage in the
// same transaction.
func (o *orchestrator) runTranscode(ctx context.Context, job *models.StageJob) error {
	response, err := o.responseRepo.FindByID(job.ResponseID)
	if err != nil {
		return err
	}
	if response.Status != models.ResponseRecorded {
		// A prior attempt already finished the transition.
		return nil
	}
	if response.MediaDocumentID == nil {
		return fmt.Errorf("response %s has no raw recording", response.ID)
	}

	if err := o.aggregator.EnsureActive(ctx, response.EvaluationID); err != nil {
		return err
	}

	rawDoc, err := o.docRepo.FindByID(*response.MediaDocumentID)
	if err != nil {
		return err
	}

	normalized, err := o.media.Normalize(rawDoc.FilePath, response.MediaCodec)
	if err != nil {
		return err
	}

	transcribeJob := &models.StageJob{
		ID:         uuid.New(),
		ResponseID: response.ID,
		Stage:      models.StageTranscribe,
		Status:     models.JobQueued,
		NextRunAt:  time.Now(),
	}
	if err := o.responseRepo.MarkUploaded(response.ID, normalized.ID, transcribeJob); err != nil {
		return err
	}

	if err := o.storage.DeleteFile(rawDoc.Filename); err != nil {
		o.logger.Warn("Failed to remove raw recording", zap.String("filename", rawDoc.Filename), zap.Error(err))
	}

	if err := o.publishJob(ctx, transcribeJob); err != nil {
		o.logger.Warn("Failed to publish transcribe job, poller will recover",
			zap.String("jobId", transcribeJob.ID.String()), zap.Error(err))
	}
	return nil
}

func (o *orchestrator) runTranscribe(ctx context.Context, job *models.StageJob) error {
	response, err := o.responseRepo.FindByID(job.ResponseID)
	if err != nil {
		return err
	}

	switch response.Status {
	case models.ResponseUploaded:
		if err := o.responseRepo.UpdateStatus(response.ID, models.ResponseUploaded, models.ResponseTranscribing); err != nil {
			return err
		}
	case models.ResponseTranscribing:
		// Retry of an interrupted attempt.
	default:
		return nil
	}

	if response.MediaDocumentID == nil {
		return fmt.Errorf("response %s has no stored media", response.ID)
	}
	doc, err := o.docRepo.FindByID(*response.MediaDocumentID)
	if err != nil {
		return err
	}

	transcript, err := o.transcriber.Transcribe(ctx, MediaRef{
		Path:     doc.FilePath,
		MimeType: doc.MimeType,
	})
	if err != nil {
		return err
	}

	if err := o.responseRepo.SaveTranscription(response.ID, &transcript, models.StageSucceeded, nil); err != nil {
		return err
	}
	if err := o.responseRepo.UpdateStatus(response.ID, models.ResponseTranscribing, models.ResponseAnalyzing); err != nil {
		return err
	}

	toneJob := &models.StageJob{
		ID:         uuid.New(),
		ResponseID: response.ID,
		Stage:      models.StageTone,
		Status:     models.JobQueued,
		NextRunAt:  time.Now(),
	}
	if err := o.jobRepo.Create(toneJob); err != nil {
		existing, findErr := o.jobRepo.FindByKey(response.ID, models.StageTone)
		if findErr != nil {
			return err
		}
		toneJob = existing
	}

	if err := o.publishJob(ctx, toneJob); err != nil {
		o.logger.Warn("Failed to publish tone job, poller will recover",
			zap.String("jobId", toneJob.ID.String()), zap.Error(err))
	}
	return nil
}

func (o *orchestrator) runTone(ctx context.Context, job *models.StageJob) error {
	response, err := o.responseRepo.FindByID(job.ResponseID)
	if err != nil {
		return err
	}
	if response.Status != models.ResponseAnalyzing {
		return nil
	}

	result, err := o.responseRepo.FindResultByResponse(response.ID)
	if err != nil {
		return err
	}
	if result.Transcript == nil {
		return fmt.Errorf("response %s reached tone stage without a transcript", response.ID)
	}

	// Video answers feed visual frames to the analyzer as well. Losing the
	// frames degrades the analysis to transcript-only, which is recorded as
	// partial rather than failed.
	var frames []byte
	var frameMime string
	partial := false
	if response.MediaDocumentID != nil {
		doc, err := o.docRepo.FindByID(*response.MediaDocumentID)
		if err == nil && strings.HasPrefix(doc.MimeType, "video/") {
			frameMime = doc.MimeType
			frames, err = os.ReadFile(doc.FilePath)
			if err != nil {
				o.logger.Warn("Failed to read media for tone frames, using transcript only",
					zap.String("responseId", response.ID.String()), zap.Error(err))
				frames = nil
				partial = true
			}
		}
	}

	scores, err := o.toneAnalyzer.Analyze(ctx, *result.Transcript, frames, frameMime)
	if err != nil {
		return err
	}

	if err := o.responseRepo.SaveToneScores(response.ID, scores, partial, models.StageSucceeded, nil); err != nil {
		return err
	}
	return o.responseRepo.UpdateStatus(response.ID, models.ResponseAnalyzing, models.ResponseReady)
}

// notifyIfTerminal nudges the aggregator once the job row is terminal, so the
// all-units-finished check never races the job's own status write.
func (o *orchestrator) notifyIfTerminal(ctx context.Context, responseID uuid.UUID) error {
	response, err := o.responseRepo.FindByID(responseID)
	if err != nil {
		return err
	}
	if !response.Status.Terminal() {
		return nil
	}
	return o.aggregator.OnResponseTerminal(ctx, response.EvaluationID)
}

// failStage finalizes a permanently failed unit: the job and the response
// both go FAILED, the per-stage error is recorded, and the evaluation is
// nudged so it can settle into NEEDS_REVIEW.
func (o *orchestrator) failStage(ctx context.Context, job *models.StageJob, attempts int, stageErr error) error {
	o.logger.Error("Stage failed permanently",
		zap.String("responseId", job.ResponseID.String()),
		zap.String("stage", string(job.Stage)),
		zap.Int("attempts", attempts),
		zap.Error(stageErr))

	if err := o.jobRepo.MarkFailed(job.ID, attempts, stageErr.Error()); err != nil {
		return err
	}

	msg := stageErr.Error()
	switch job.Stage {
	case models.StageTranscribe:
		if err := o.responseRepo.SaveTranscription(job.ResponseID, nil, models.StageFailed, &msg); err != nil {
			return err
		}
	case models.StageTone:
		if err := o.responseRepo.SaveToneScores(job.ResponseID, nil, false, models.StageFailed, &msg); err != nil {
			return err
		}
	}

	response, err := o.responseRepo.FindByID(job.ResponseID)
	if err != nil {
		return err
	}
	if !response.Status.Terminal() {
		if err := o.responseRepo.UpdateStatus(response.ID, response.Status, models.ResponseFailed); err != nil {
			return err
		}
	}

	return o.aggregator.OnResponseTerminal(ctx, response.EvaluationID)
}
