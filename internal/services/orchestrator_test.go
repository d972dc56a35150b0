package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smarthire/internal/config"
	"smarthire/internal/models"
	"smarthire/internal/queue"
	"smarthire/internal/repositories"
)

type orchestratorFixture struct {
	store       *memStore
	orch        Orchestrator
	transcriber *scriptedTranscriber
	tone        *fixedToneAnalyzer
	evalRepo    repositories.EvaluationRepository
	jobRepo     repositories.JobRepository
	respRepo    repositories.ResponseRepository
	notified    *int
	evaluation  *models.Evaluation
	response    *models.InterviewResponse
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()

	store := newMemStore()
	storage := NewStorageService(t.TempDir())
	require.NoError(t, storage.EnsureUploadDir())

	candidate := &models.CandidateProfile{ID: uuid.New(), Name: "Lee", Email: "lee@example.com"}
	store.candidates[candidate.ID] = candidate
	store.profiles = append(store.profiles, &models.PersonalityProfile{
		ID:                uuid.New(),
		CandidateID:       candidate.ID,
		Openness:          0.7,
		Conscientiousness: 0.8,
		Extraversion:      0.6,
		Agreeableness:     0.7,
		Neuroticism:       0.3,
	})

	evaluation := &models.Evaluation{ID: uuid.New(), CandidateID: candidate.ID, Status: models.StatusPending}
	store.evals[evaluation.ID] = evaluation

	// Raw recording on disk, referenced by the response's media document.
	filename, filePath, err := storage.SaveBytes([]byte("not-really-webm"), models.DocumentKindMedia, ".webm")
	require.NoError(t, err)
	rawDoc := &models.Document{
		ID:       uuid.New(),
		Filename: filename,
		Kind:     models.DocumentKindMedia,
		MimeType: "audio/webm",
		FilePath: filePath,
	}
	store.docs[rawDoc.ID] = rawDoc

	respRepo := &memResponseRepo{s: store}
	response := &models.InterviewResponse{
		ID:           uuid.New(),
		CandidateID:  candidate.ID,
		EvaluationID: evaluation.ID,
		QuestionID:   "q1",
		MediaCodec:   "audio/webm",
		MediaSize:    15,
		Status:       models.ResponseRecorded,
	}
	require.NoError(t, respRepo.CreateSuperseding(response))
	store.responses[response.ID].MediaDocumentID = &rawDoc.ID

	evalRepo := &memEvaluationRepo{s: store}
	jobRepo := &memJobRepo{s: store}
	docRepo := &memDocumentRepo{s: store}

	notified := 0
	aggregator := NewAggregator(
		evalRepo,
		respRepo,
		&memCandidateRepo{s: store},
		&memPersonalityRepo{s: store},
		jobRepo,
		&fixedMatcher{score: 0.5},
		testPipelineConfig(),
		func(*models.Evaluation) { notified++ },
		zap.NewNop(),
	)

	transcriber := &scriptedTranscriber{text: "I like building systems"}
	tone := &fixedToneAnalyzer{scores: uniformScores(0.8)}

	orch := NewOrchestrator(
		respRepo,
		jobRepo,
		docRepo,
		storage,
		NewMediaService(storage, docRepo, 50<<20, 3*time.Minute),
		transcriber,
		tone,
		aggregator,
		queue.NewMemory(64),
		config.WorkerConfig{Concurrency: 1, PollInterval: time.Minute},
		testPipelineConfig(),
		zap.NewNop(),
	)

	return &orchestratorFixture{
		store:       store,
		orch:        orch,
		transcriber: transcriber,
		tone:        tone,
		evalRepo:    evalRepo,
		jobRepo:     jobRepo,
		respRepo:    respRepo,
		notified:    &notified,
		evaluation:  evaluation,
		response:    response,
	}
}

func (f *orchestratorFixture) deliver(t *testing.T, stage models.Stage) {
	t.Helper()
	job, err := f.jobRepo.FindByKey(f.response.ID, stage)
	require.NoError(t, err)
	body, err := queue.StageMessage{JobID: job.ID, ResponseID: job.ResponseID, Stage: job.Stage}.Marshal()
	require.NoError(t, err)
	require.NoError(t, f.orch.HandleMessage(context.Background(), body))
}

func (f *orchestratorFixture) makeDue(stage models.Stage) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, job := range f.store.jobs {
		if job.ResponseID == f.response.ID && job.Stage == stage {
			job.NextRunAt = time.Now().Add(-time.Second)
		}
	}
}

func (f *orchestratorFixture) responseStatus(t *testing.T) models.ResponseStatus {
	t.Helper()
	resp, err := f.respRepo.FindByID(f.response.ID)
	require.NoError(t, err)
	return resp.Status
}

func TestOrchestratorRunsAllStagesToReady(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))

	f.deliver(t, models.StageTranscode)
	assert.Equal(t, models.ResponseUploaded, f.responseStatus(t))

	f.deliver(t, models.StageTranscribe)
	assert.Equal(t, models.ResponseAnalyzing, f.responseStatus(t))

	result, err := f.respRepo.FindResultByResponse(f.response.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Transcript)
	assert.Equal(t, "I like building systems", *result.Transcript)
	assert.Equal(t, models.StageSucceeded, result.TranscriptionStatus)

	f.deliver(t, models.StageTone)
	assert.Equal(t, models.ResponseReady, f.responseStatus(t))

	result, err = f.respRepo.FindResultByResponse(f.response.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageSucceeded, result.ToneStatus)
	assert.False(t, result.Partial)

	eval, err := f.evalRepo.FindByID(f.evaluation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, eval.Status)
	assert.Equal(t, 1, *f.notified)
}

func TestOrchestratorRetriesTransientTranscribeErrors(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transcriber.outcomes = []error{ErrRateLimited, ErrRateLimited, nil}
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)

	// Two rate-limited attempts leave the job queued with backoff.
	f.deliver(t, models.StageTranscribe)
	job, err := f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, 1, job.Attempts)

	f.makeDue(models.StageTranscribe)
	f.deliver(t, models.StageTranscribe)
	job, err = f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, 2, job.Attempts)

	// Third attempt succeeds.
	f.makeDue(models.StageTranscribe)
	f.deliver(t, models.StageTranscribe)
	assert.Equal(t, models.ResponseAnalyzing, f.responseStatus(t))
	assert.Equal(t, 3, f.transcriber.calls)
}

func TestOrchestratorFailsPermanentlyOnUnintelligibleMedia(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transcriber.outcomes = []error{ErrUnintelligible}
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)
	f.deliver(t, models.StageTranscribe)

	assert.Equal(t, models.ResponseFailed, f.responseStatus(t))

	job, err := f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)

	result, err := f.respRepo.FindResultByResponse(f.response.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageFailed, result.TranscriptionStatus)
	require.NotNil(t, result.TranscriptionError)

	eval, err := f.evalRepo.FindByID(f.evaluation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsReview, eval.Status)
	assert.Equal(t, 1, *f.notified)
}

func TestOrchestratorStopsRetryingAfterLimit(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.transcriber.outcomes = []error{ErrRateLimited}
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)

	// Retry limit is 3: two requeues, then the third attempt fails for good.
	for i := 0; i < 3; i++ {
		f.makeDue(models.StageTranscribe)
		f.deliver(t, models.StageTranscribe)
	}

	assert.Equal(t, models.ResponseFailed, f.responseStatus(t))
	job, err := f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
}

func TestOrchestratorIgnoresRedeliveredMessages(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)
	f.deliver(t, models.StageTranscribe)
	require.Equal(t, 1, f.transcriber.calls)

	// Same delivery again: the claim fails and nothing reruns.
	f.deliver(t, models.StageTranscribe)
	assert.Equal(t, 1, f.transcriber.calls)
	assert.Equal(t, models.ResponseAnalyzing, f.responseStatus(t))
}

func TestOrchestratorReclaimsJobsWithExpiredLeases(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)

	// A worker claims the transcription job and dies mid-run, leaving a
	// lease that has already expired.
	job, err := f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	claimed, err := f.jobRepo.Claim(job.ID, time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.True(t, claimed)

	// Broker redelivery while the claim is held stays a no-op.
	f.deliver(t, models.StageTranscribe)
	assert.Equal(t, 0, f.transcriber.calls)

	// The poller's due scan requeues the expired claim for another run.
	due, err := f.jobRepo.FindDue(time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, models.StageTranscribe, due[0].Stage)

	f.deliver(t, models.StageTranscribe)
	assert.Equal(t, 1, f.transcriber.calls)
	assert.Equal(t, models.ResponseAnalyzing, f.responseStatus(t))
}

func TestOrchestratorPollSkipsLiveLeases(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)

	job, err := f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	claimed, err := f.jobRepo.Claim(job.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	due, err := f.jobRepo.FindDue(time.Now(), 50)
	require.NoError(t, err)
	assert.Empty(t, due)

	job, err = f.jobRepo.FindByKey(f.response.ID, models.StageTranscribe)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, job.Status)
}

func TestOrchestratorRedeliveryRecoversLostFinalizeNudge(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)
	f.deliver(t, models.StageTranscribe)

	// A worker finishes the tone stage and dies before nudging the
	// aggregator: job and response are terminal, the evaluation is not.
	toneJob, err := f.jobRepo.FindByKey(f.response.ID, models.StageTone)
	require.NoError(t, err)
	claimed, err := f.jobRepo.Claim(toneJob.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.respRepo.SaveToneScores(f.response.ID, uniformScores(0.8), false, models.StageSucceeded, nil))
	require.NoError(t, f.respRepo.UpdateStatus(f.response.ID, models.ResponseAnalyzing, models.ResponseReady))
	require.NoError(t, f.jobRepo.MarkSucceeded(toneJob.ID))

	eval, err := f.evalRepo.FindByID(f.evaluation.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, eval.Status)
	require.Equal(t, 0, *f.notified)

	// Redelivery of the finished job's message re-fires the nudge without
	// rerunning the stage.
	f.deliver(t, models.StageTone)

	eval, err = f.evalRepo.FindByID(f.evaluation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, eval.Status)
	assert.Equal(t, 1, *f.notified)
	assert.Equal(t, 0, f.tone.calls)
}

func TestOrchestratorEnqueueTranscodeIsIdempotent(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))

	count := 0
	f.store.mu.Lock()
	for _, job := range f.store.jobs {
		if job.ResponseID == f.response.ID && job.Stage == models.StageTranscode {
			count++
		}
	}
	f.store.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestOrchestratorMarksToneAnalysisPartialWithoutFrames(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.EnqueueTranscode(ctx, f.response.ID))
	f.deliver(t, models.StageTranscode)
	f.deliver(t, models.StageTranscribe)

	// Make the stored media a video whose file is gone, so the frame read
	// fails and the tone stage degrades to transcript-only.
	f.store.mu.Lock()
	resp := f.store.responses[f.response.ID]
	doc := f.store.docs[*resp.MediaDocumentID]
	doc.MimeType = "video/webm"
	doc.FilePath = doc.FilePath + ".missing"
	f.store.mu.Unlock()

	f.deliver(t, models.StageTone)
	assert.Equal(t, models.ResponseReady, f.responseStatus(t))

	result, err := f.respRepo.FindResultByResponse(f.response.ID)
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, models.StageSucceeded, result.ToneStatus)
}
