package services

import (
	"fmt"

	"github.com/google/uuid"

	"smarthire/internal/models"
)

// AssessmentLength is the fixed size of the Likert answer vector: five items
// per OCEAN trait, answered on a 1-5 scale.
const AssessmentLength = 25

const (
	likertMin = 1
	likertMax = 5
)

type TraitScorer interface {
	// Score maps a complete answer vector to a PersonalityProfile with all
	// five trait scores in [0,1]. Deterministic: identical answers always
	// yield identical scores.
	Score(candidateID uuid.UUID, answers []int) (*models.PersonalityProfile, error)
}

type traitScorer struct{}

func NewTraitScorer() TraitScorer {
	return &traitScorer{}
}

// Item-to-trait keying. Items are grouped five per trait in OCEAN order;
// reverse-keyed items counter acquiescence bias, following the usual short
// big-five inventories.
var reverseKeyed = map[int]bool{
	2: true, 4: true, // openness items 0-4
	7: true, 9: true, // conscientiousness items 5-9
	11: true, 13: true, // extraversion items 10-14
	16: true, 18: true, // agreeableness items 15-19
	21: true, 23: true, // neuroticism items 20-24
}

func (s *traitScorer) Score(candidateID uuid.UUID, answers []int) (*models.PersonalityProfile, error) {
	if len(answers) != AssessmentLength {
		return nil, fmt.Errorf("expected %d answers, got %d: %w", AssessmentLength, len(answers), ErrMalformedAnswers)
	}
	for i, a := range answers {
		if a < likertMin || a > likertMax {
			return nil, fmt.Errorf("answer %d out of range [%d,%d]: %w", i, likertMin, likertMax, ErrMalformedAnswers)
		}
	}

	scores := make([]float64, 5)
	for trait := 0; trait < 5; trait++ {
		sum := 0
		for item := trait * 5; item < (trait+1)*5; item++ {
			a := answers[item]
			if reverseKeyed[item] {
				a = likertMax + likertMin - a
			}
			sum += a
		}
		// Normalize the 5..25 item sum to [0,1].
		scores[trait] = float64(sum-5*likertMin) / float64(5*(likertMax-likertMin))
	}

	return &models.PersonalityProfile{
		ID:                uuid.New(),
		CandidateID:       candidateID,
		Openness:          scores[0],
		Conscientiousness: scores[1],
		Extraversion:      scores[2],
		Agreeableness:     scores[3],
		Neuroticism:       scores[4],
	}, nil
}
