package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"smarthire/internal/models"
	"smarthire/internal/repositories"
)

// Codec allow-list for browser recordings, keyed by declared MIME type.
var supportedCodecs = map[string]string{
	"audio/webm": ".webm",
	"video/webm": ".webm",
	"video/mp4":  ".mp4",
	"audio/mp4":  ".m4a",
	"audio/ogg":  ".ogg",
}

type MediaService interface {
	// ValidateMedia applies the configured size/duration caps and the codec
	// allow-list. Input errors, rejected synchronously at submit time.
	ValidateMedia(size int64, duration time.Duration, codec string) error
	// Normalize re-materializes a raw recording as the canonical stored
	// media asset and returns its document record.
	Normalize(rawPath, codec string) (*models.Document, error)
}

type mediaService struct {
	storage     StorageService
	docRepo     repositories.DocumentRepository
	maxSize     int64
	maxDuration time.Duration
}

func NewMediaService(
	storage StorageService,
	docRepo repositories.DocumentRepository,
	maxSize int64,
	maxDuration time.Duration,
) MediaService {
	return &mediaService{
		storage:     storage,
		docRepo:     docRepo,
		maxSize:     maxSize,
		maxDuration: maxDuration,
	}
}

func (m *mediaService) ValidateMedia(size int64, duration time.Duration, codec string) error {
	if size <= 0 {
		return ErrEmptyRecording
	}
	if size > m.maxSize {
		return fmt.Errorf("media size %d exceeds cap %d: %w", size, m.maxSize, ErrMediaTooLarge)
	}
	if duration <= 0 {
		return ErrEmptyRecording
	}
	if duration > m.maxDuration {
		return fmt.Errorf("media duration %s exceeds cap %s: %w", duration, m.maxDuration, ErrMediaTooLarge)
	}
	if _, ok := supportedCodecs[codec]; !ok {
		return fmt.Errorf("codec %q: %w", codec, ErrUnsupportedCodec)
	}
	return nil
}

func (m *mediaService) Normalize(rawPath, codec string) (*models.Document, error) {
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw recording: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyRecording
	}

	ext, ok := supportedCodecs[codec]
	if !ok {
		ext = filepath.Ext(rawPath)
	}

	filename, filePath, err := m.storage.SaveBytes(data, models.DocumentKindMedia, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to store normalized media: %w", err)
	}

	doc := &models.Document{
		ID:               uuid.New(),
		Filename:         filename,
		OriginalFileName: filepath.Base(rawPath),
		Kind:             models.DocumentKindMedia,
		MimeType:         codec,
		FilePath:         filePath,
		SizeBytes:        int64(len(data)),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := m.docRepo.Create(doc); err != nil {
		m.storage.DeleteFile(filename)
		return nil, fmt.Errorf("failed to record normalized media: %w", err)
	}

	return doc, nil
}
