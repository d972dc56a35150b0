package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"smarthire/internal/models"
)

// RequirementMatcher scores how well a parsed resume matches the role's
// requirements, in [0,1].
type RequirementMatcher interface {
	Score(ctx context.Context, candidate *models.CandidateProfile) (float64, error)
}

// Embedder is the slice of GeminiService the semantic path needs.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type requirementMatcher struct {
	store    VectorStore // nil when Qdrant is not configured
	embedder Embedder
	keywords []string
	logger   *zap.Logger
}

func NewRequirementMatcher(store VectorStore, embedder Embedder, keywords []string, logger *zap.Logger) RequirementMatcher {
	return &requirementMatcher{
		store:    store,
		embedder: embedder,
		keywords: keywords,
		logger:   logger,
	}
}

// Score prefers semantic similarity against the ingested job-description
// chunks and falls back to keyword overlap. A semantic failure is degraded,
// not fatal: the keyword score still stands.
func (m *requirementMatcher) Score(ctx context.Context, candidate *models.CandidateProfile) (float64, error) {
	if m.store != nil && m.embedder != nil {
		score, err := m.semanticScore(ctx, candidate)
		if err == nil {
			return score, nil
		}
		m.logger.Warn("Semantic requirement match failed, falling back to keywords", zap.Error(err))
	}

	return m.keywordScore(candidate), nil
}

func (m *requirementMatcher) semanticScore(ctx context.Context, candidate *models.CandidateProfile) (float64, error) {
	summary := fmt.Sprintf("Skills: %s. Experience: %.1f years. Education: %s.",
		strings.Join(candidate.Skills, ", "), candidate.ExperienceYears, candidate.EducationLevel)

	embedding, err := m.embedder.GenerateEmbedding(ctx, summary)
	if err != nil {
		return 0, fmt.Errorf("failed to embed candidate summary: %w", err)
	}

	matches, err := m.store.SearchSimilar(ctx, embedding, 3)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("no requirement chunks ingested")
	}

	var sum float64
	for _, match := range matches {
		sum += float64(match.Score)
	}
	score := sum / float64(len(matches))
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return score, nil
}

func (m *requirementMatcher) keywordScore(candidate *models.CandidateProfile) float64 {
	if len(m.keywords) == 0 {
		// Nothing configured for the role: neutral contribution.
		return 0.5
	}

	have := make(map[string]bool, len(candidate.Skills))
	for _, s := range candidate.Skills {
		have[strings.ToLower(s)] = true
	}

	hits := 0
	for _, kw := range m.keywords {
		if have[kw] {
			hits++
		}
	}

	return float64(hits) / float64(len(m.keywords))
}
