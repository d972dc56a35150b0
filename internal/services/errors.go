package services

import (
	"context"
	"errors"
)

// Input errors: rejected synchronously, never retried.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrMalformedAnswers  = errors.New("malformed assessment answers")
	ErrMediaTooLarge     = errors.New("media exceeds size or duration cap")
	ErrUnsupportedCodec  = errors.New("unsupported media codec")
	ErrEmptyRecording    = errors.New("empty recording")
)

// External analyzer errors. Rate limiting and timeouts are transient and get
// retried with backoff; the rest are permanent and mark the stage FAILED.
var (
	ErrRateLimited    = errors.New("analyzer rate limited")
	ErrUnauthorized   = errors.New("analyzer rejected credentials")
	ErrUnintelligible = errors.New("media content not intelligible")
)

// IsTransient reports whether a stage error is worth another attempt.
// Throttling and timeouts qualify; everything else is permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, context.DeadlineExceeded)
}
