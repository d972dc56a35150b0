package services

import (
	"context"

	"smarthire/internal/models"
)

// ToneAnalyzer is the capability contract for emotional-tone inference.
// Frames may be nil, in which case the provider works from transcript text
// alone and the caller records the result as partial. Confidences are in
// [0,1]. Error semantics match Transcriber.
type ToneAnalyzer interface {
	Analyze(ctx context.Context, transcript string, frames []byte, frameMime string) (models.ToneScores, error)
}
