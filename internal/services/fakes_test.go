package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smarthire/internal/models"
	"smarthire/internal/repositories"
)

// memStore is a single in-memory backing store shared by the per-interface
// repository fakes, so cross-repository semantics (claims, versions,
// supersession) behave like the real database.
type memStore struct {
	mu         sync.Mutex
	candidates map[uuid.UUID]*models.CandidateProfile
	profiles   []*models.PersonalityProfile
	responses  map[uuid.UUID]*models.InterviewResponse
	results    map[uuid.UUID]*models.AnalysisResult
	evals      map[uuid.UUID]*models.Evaluation
	jobs       map[uuid.UUID]*models.StageJob
	docs       map[uuid.UUID]*models.Document
}

func newMemStore() *memStore {
	return &memStore{
		candidates: make(map[uuid.UUID]*models.CandidateProfile),
		responses:  make(map[uuid.UUID]*models.InterviewResponse),
		results:    make(map[uuid.UUID]*models.AnalysisResult),
		evals:      make(map[uuid.UUID]*models.Evaluation),
		jobs:       make(map[uuid.UUID]*models.StageJob),
		docs:       make(map[uuid.UUID]*models.Document),
	}
}

type memCandidateRepo struct{ s *memStore }

func (r *memCandidateRepo) Create(c *models.CandidateProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.candidates[c.ID] = c
	return nil
}

func (r *memCandidateRepo) FindByID(id uuid.UUID) (*models.CandidateProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate not found")
	}
	return c, nil
}

func (r *memCandidateRepo) UpdateResumeFields(id uuid.UUID, fields *repositories.ResumeFieldsUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return fmt.Errorf("candidate not found")
	}
	c.ResumeDocumentID = &fields.ResumeDocumentID
	c.Skills = fields.Skills
	c.ExperienceYears = fields.ExperienceYears
	c.EducationLevel = fields.EducationLevel
	c.LowConfidence = fields.LowConfidence
	return nil
}

type memPersonalityRepo struct{ s *memStore }

func (r *memPersonalityRepo) CreateSuperseding(p *models.PersonalityProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, prior := range r.s.profiles {
		if prior.CandidateID == p.CandidateID {
			prior.Superseded = true
		}
	}
	r.s.profiles = append(r.s.profiles, p)
	return nil
}

func (r *memPersonalityRepo) FindActiveByCandidate(candidateID uuid.UUID) (*models.PersonalityProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.profiles) - 1; i >= 0; i-- {
		if r.s.profiles[i].CandidateID == candidateID && !r.s.profiles[i].Superseded {
			return r.s.profiles[i], nil
		}
	}
	return nil, fmt.Errorf("personality profile not found")
}

type memResponseRepo struct{ s *memStore }

func (r *memResponseRepo) CreateSuperseding(response *models.InterviewResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	version := 1
	for _, prior := range r.s.responses {
		if prior.CandidateID == response.CandidateID && prior.QuestionID == response.QuestionID && !prior.Superseded {
			prior.Superseded = true
			if prior.Version >= version {
				version = prior.Version + 1
			}
		}
	}
	response.Version = version
	r.s.responses[response.ID] = response
	r.s.results[response.ID] = &models.AnalysisResult{
		ID:                  uuid.New(),
		ResponseID:          response.ID,
		TranscriptionStatus: models.StagePending,
		ToneStatus:          models.StagePending,
	}
	return nil
}

func (r *memResponseRepo) FindByID(id uuid.UUID) (*models.InterviewResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	resp, ok := r.s.responses[id]
	if !ok {
		return nil, fmt.Errorf("interview response not found")
	}
	copied := *resp
	return &copied, nil
}

func (r *memResponseRepo) UpdateStatus(id uuid.UUID, from, to models.ResponseStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal response transition %s -> %s", from, to)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	resp, ok := r.s.responses[id]
	if !ok || resp.Status != from {
		return fmt.Errorf("response %s no longer in status %s", id, from)
	}
	resp.Status = to
	return nil
}

func (r *memResponseRepo) MarkUploaded(id uuid.UUID, mediaDocID uuid.UUID, job *models.StageJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	resp, ok := r.s.responses[id]
	if !ok || resp.Status != models.ResponseRecorded {
		return fmt.Errorf("response %s no longer in status %s", id, models.ResponseRecorded)
	}
	resp.Status = models.ResponseUploaded
	resp.MediaDocumentID = &mediaDocID
	r.s.jobs[job.ID] = job
	return nil
}

func (r *memResponseRepo) ListActiveByEvaluation(evaluationID uuid.UUID) ([]models.InterviewResponse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.InterviewResponse
	for _, resp := range r.s.responses {
		if resp.EvaluationID == evaluationID && !resp.Superseded {
			out = append(out, *resp)
		}
	}
	return out, nil
}

func (r *memResponseRepo) FindResultByResponse(responseID uuid.UUID) (*models.AnalysisResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result, ok := r.s.results[responseID]
	if !ok {
		return nil, fmt.Errorf("analysis result not found")
	}
	copied := *result
	return &copied, nil
}

func (r *memResponseRepo) SaveTranscription(responseID uuid.UUID, transcript *string, status models.StageStatus, stageErr *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result, ok := r.s.results[responseID]
	if !ok {
		return fmt.Errorf("analysis result not found")
	}
	result.Transcript = transcript
	result.TranscriptionStatus = status
	result.TranscriptionError = stageErr
	return nil
}

func (r *memResponseRepo) SaveToneScores(responseID uuid.UUID, scores models.ToneScores, partial bool, status models.StageStatus, stageErr *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result, ok := r.s.results[responseID]
	if !ok {
		return fmt.Errorf("analysis result not found")
	}
	result.ToneScores = scores
	result.Partial = partial
	result.ToneStatus = status
	result.ToneError = stageErr
	return nil
}

type memEvaluationRepo struct{ s *memStore }

func (r *memEvaluationRepo) FindByID(id uuid.UUID) (*models.Evaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eval, ok := r.s.evals[id]
	if !ok {
		return nil, fmt.Errorf("evaluation not found")
	}
	copied := *eval
	return &copied, nil
}

func (r *memEvaluationRepo) FindByCandidate(candidateID uuid.UUID) (*models.Evaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, eval := range r.s.evals {
		if eval.CandidateID == candidateID {
			copied := *eval
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("evaluation not found")
}

func (r *memEvaluationRepo) FindOrCreateByCandidate(candidateID uuid.UUID) (*models.Evaluation, error) {
	if eval, err := r.FindByCandidate(candidateID); err == nil {
		return eval, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eval := &models.Evaluation{
		ID:          uuid.New(),
		CandidateID: candidateID,
		Status:      models.StatusPending,
	}
	r.s.evals[eval.ID] = eval
	copied := *eval
	return &copied, nil
}

func (r *memEvaluationRepo) UpdateVersioned(id uuid.UUID, expectedVersion int64, update *repositories.EvaluationUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eval, ok := r.s.evals[id]
	if !ok || eval.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	eval.Status = update.Status
	eval.Version = expectedVersion + 1
	if update.CompositeScore != nil {
		eval.CompositeScore = update.CompositeScore
	}
	if update.PersonalityScore != nil {
		eval.PersonalityScore = update.PersonalityScore
	}
	if update.ResumeScore != nil {
		eval.ResumeScore = update.ResumeScore
	}
	if update.ToneScore != nil {
		eval.ToneScore = update.ToneScore
	}
	return nil
}

func (r *memEvaluationRepo) MarkNotified(id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	eval, ok := r.s.evals[id]
	if !ok {
		return false, fmt.Errorf("evaluation not found")
	}
	if eval.NotifiedAt != nil {
		return false, nil
	}
	now := time.Now()
	eval.NotifiedAt = &now
	return true, nil
}

type memJobRepo struct{ s *memStore }

func (r *memJobRepo) Create(job *models.StageJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.jobs {
		if existing.ResponseID == job.ResponseID && existing.Stage == job.Stage {
			return fmt.Errorf("duplicate key idx_response_stage")
		}
	}
	r.s.jobs[job.ID] = job
	return nil
}

func (r *memJobRepo) FindByKey(responseID uuid.UUID, stage models.Stage) (*models.StageJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, job := range r.s.jobs {
		if job.ResponseID == responseID && job.Stage == stage {
			copied := *job
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("stage job not found")
}

func (r *memJobRepo) Claim(id uuid.UUID, leaseUntil time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok || job.Status != models.JobQueued || job.NextRunAt.After(time.Now()) {
		return false, nil
	}
	job.Status = models.JobRunning
	job.NextRunAt = leaseUntil
	return true, nil
}

func (r *memJobRepo) Requeue(id uuid.UUID, attempts int, lastError string, nextRunAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok {
		return fmt.Errorf("stage job not found")
	}
	job.Status = models.JobQueued
	job.Attempts = attempts
	job.LastError = &lastError
	job.NextRunAt = nextRunAt
	return nil
}

func (r *memJobRepo) MarkSucceeded(id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok {
		return fmt.Errorf("stage job not found")
	}
	job.Status = models.JobSucceeded
	return nil
}

func (r *memJobRepo) MarkFailed(id uuid.UUID, attempts int, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok {
		return fmt.Errorf("stage job not found")
	}
	job.Status = models.JobFailed
	job.Attempts = attempts
	job.LastError = &lastError
	return nil
}

func (r *memJobRepo) FindDue(now time.Time, limit int) ([]models.StageJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, job := range r.s.jobs {
		if job.Status == models.JobRunning && !job.NextRunAt.After(now) {
			job.Status = models.JobQueued
		}
	}
	var out []models.StageJob
	for _, job := range r.s.jobs {
		if job.Status == models.JobQueued && !job.NextRunAt.After(now) {
			out = append(out, *job)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memJobRepo) AllTerminalForEvaluation(evaluationID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, job := range r.s.jobs {
		resp, ok := r.s.responses[job.ResponseID]
		if !ok || resp.EvaluationID != evaluationID || resp.Superseded {
			continue
		}
		if job.Status == models.JobQueued || job.Status == models.JobRunning {
			return false, nil
		}
	}
	return true, nil
}

type memDocumentRepo struct{ s *memStore }

func (r *memDocumentRepo) Create(doc *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[doc.ID] = doc
	return nil
}

func (r *memDocumentRepo) FindByID(id uuid.UUID) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	doc, ok := r.s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document not found")
	}
	copied := *doc
	return &copied, nil
}

// scriptedTranscriber returns the queued outcomes in order, then keeps
// returning the last one.
type scriptedTranscriber struct {
	mu       sync.Mutex
	outcomes []error
	text     string
	calls    int
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, ref MediaRef) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outcome error
	if len(s.outcomes) > 0 {
		outcome = s.outcomes[0]
		if len(s.outcomes) > 1 {
			s.outcomes = s.outcomes[1:]
		}
	}
	s.calls++
	if outcome != nil {
		return "", outcome
	}
	return s.text, nil
}

type fixedToneAnalyzer struct {
	scores models.ToneScores
	err    error
	calls  int
}

func (f *fixedToneAnalyzer) Analyze(ctx context.Context, transcript string, frames []byte, frameMime string) (models.ToneScores, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type fixedMatcher struct {
	score float64
	calls int
}

func (f *fixedMatcher) Score(ctx context.Context, candidate *models.CandidateProfile) (float64, error) {
	f.calls++
	return f.score, nil
}

// conflictOnceEvalRepo injects a single version conflict before delegating.
type conflictOnceEvalRepo struct {
	repositories.EvaluationRepository
	mu       sync.Mutex
	injected bool
}

func (r *conflictOnceEvalRepo) UpdateVersioned(id uuid.UUID, expectedVersion int64, update *repositories.EvaluationUpdate) error {
	r.mu.Lock()
	if !r.injected {
		r.injected = true
		r.mu.Unlock()
		return repositories.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.EvaluationRepository.UpdateVersioned(id, expectedVersion, update)
}
