package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smarthire/internal/models"
)

type fixedEmbedder struct {
	embedding []float32
	err       error
}

func (f *fixedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

type fixedVectorStore struct {
	matches []RequirementMatch
	err     error
}

func (f *fixedVectorStore) InitCollection() error { return nil }

func (f *fixedVectorStore) UpsertRequirement(ctx context.Context, role, text string, embedding []float32) error {
	return nil
}

func (f *fixedVectorStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]RequirementMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func matcherCandidate(skills ...string) *models.CandidateProfile {
	return &models.CandidateProfile{
		Skills:          models.StringSlice(skills),
		ExperienceYears: 4,
		EducationLevel:  models.EducationBachelor,
	}
}

func TestMatcherKeywordScore(t *testing.T) {
	m := NewRequirementMatcher(nil, nil, []string{"go", "sql", "docker", "kafka"}, zap.NewNop())

	score, err := m.Score(context.Background(), matcherCandidate("go", "sql"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)

	score, err = m.Score(context.Background(), matcherCandidate("go", "sql", "docker", "kafka"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = m.Score(context.Background(), matcherCandidate("painting"))
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestMatcherNeutralWithoutKeywords(t *testing.T) {
	m := NewRequirementMatcher(nil, nil, nil, zap.NewNop())

	score, err := m.Score(context.Background(), matcherCandidate("go"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestMatcherSemanticScoreAveragesMatches(t *testing.T) {
	store := &fixedVectorStore{matches: []RequirementMatch{
		{Score: 0.9}, {Score: 0.7}, {Score: 0.5},
	}}
	m := NewRequirementMatcher(store, &fixedEmbedder{embedding: []float32{0.1, 0.2}}, nil, zap.NewNop())

	score, err := m.Score(context.Background(), matcherCandidate("go"))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, score, 1e-6)
}

func TestMatcherFallsBackWhenSemanticFails(t *testing.T) {
	store := &fixedVectorStore{err: fmt.Errorf("qdrant unavailable")}
	m := NewRequirementMatcher(store, &fixedEmbedder{embedding: []float32{0.1}}, []string{"go", "sql"}, zap.NewNop())

	score, err := m.Score(context.Background(), matcherCandidate("go"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}
