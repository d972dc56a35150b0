package services

import "context"

// MediaRef points at a stored media asset handed to an external analyzer.
type MediaRef struct {
	Path     string
	MimeType string
	Language string
}

// Transcriber is the capability contract for speech-to-text. Providers map
// their failures onto the typed errors in errors.go: ErrRateLimited is
// retried by the orchestrator, ErrUnauthorized and ErrUnintelligible are
// permanent.
type Transcriber interface {
	Transcribe(ctx context.Context, ref MediaRef) (string, error)
}
