package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"smarthire/internal/models"
	"smarthire/internal/repositories"
	"smarthire/internal/services"
)

var mediaExtensions = []string{".webm", ".mp4", ".m4a", ".ogg"}

type ResponseHandler struct {
	candidateRepo  repositories.CandidateRepository
	responseRepo   repositories.ResponseRepository
	evalRepo       repositories.EvaluationRepository
	docRepo        repositories.DocumentRepository
	storageService services.StorageService
	mediaService   services.MediaService
	orchestrator   services.Orchestrator
	logger         *zap.Logger
}

func NewResponseHandler(
	candidateRepo repositories.CandidateRepository,
	responseRepo repositories.ResponseRepository,
	evalRepo repositories.EvaluationRepository,
	docRepo repositories.DocumentRepository,
	storageService services.StorageService,
	mediaService services.MediaService,
	orchestrator services.Orchestrator,
	logger *zap.Logger,
) *ResponseHandler {
	return &ResponseHandler{
		candidateRepo:  candidateRepo,
		responseRepo:   responseRepo,
		evalRepo:       evalRepo,
		docRepo:        docRepo,
		storageService: storageService,
		mediaService:   mediaService,
		orchestrator:   orchestrator,
		logger:         logger,
	}
}

// HandleSubmit accepts a recorded answer: multipart "question_id", "codec",
// "duration" and the "media" file. Validation is synchronous; everything
// downstream runs as stage jobs. Re-submitting a question supersedes the
// earlier recording. Returns 202 with the queued response.
func (h *ResponseHandler) HandleSubmit(c *fiber.Ctx) error {
	candidateID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid candidate ID format",
		})
	}

	if _, err := h.candidateRepo.FindByID(candidateID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Candidate not found",
		})
	}

	questionID := strings.TrimSpace(c.FormValue("question_id"))
	if questionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question_id is required",
		})
	}

	codec := strings.TrimSpace(c.FormValue("codec"))
	duration, err := parseDuration(c.FormValue("duration"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration must be a Go duration or a number of seconds",
		})
	}

	mediaFile, err := c.FormFile("media")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "media file is required",
		})
	}

	if err := h.mediaService.ValidateMedia(mediaFile.Size, duration, codec); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyRecording),
			errors.Is(err, services.ErrMediaTooLarge),
			errors.Is(err, services.ErrUnsupportedCodec):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to validate media: %v", err),
		})
	}

	filename, filePath, err := h.storageService.SaveFile(mediaFile, models.DocumentKindMedia, mediaExtensions)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "media file extension not supported",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to save media: %v", err),
		})
	}

	rawDoc := &models.Document{
		ID:               uuid.New(),
		Filename:         filename,
		OriginalFileName: mediaFile.Filename,
		Kind:             models.DocumentKindMedia,
		MimeType:         codec,
		FilePath:         filePath,
		SizeBytes:        mediaFile.Size,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := h.docRepo.Create(rawDoc); err != nil {
		h.storageService.DeleteFile(filename)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to save media record: %v", err),
		})
	}

	evaluation, err := h.evalRepo.FindOrCreateByCandidate(candidateID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to open evaluation: %v", err),
		})
	}

	response := &models.InterviewResponse{
		ID:              uuid.New(),
		CandidateID:     candidateID,
		EvaluationID:    evaluation.ID,
		QuestionID:      questionID,
		MediaDocumentID: &rawDoc.ID,
		MediaCodec:      codec,
		MediaSize:       mediaFile.Size,
		MediaDuration:   duration,
		Status:          models.ResponseRecorded,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := h.responseRepo.CreateSuperseding(response); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to create response: %v", err),
		})
	}

	// Enqueue failure is not fatal: the job row exists and the poller will
	// pick it up.
	if err := h.orchestrator.EnqueueTranscode(c.UserContext(), response.ID); err != nil {
		h.logger.Warn("Failed to enqueue transcode stage",
			zap.String("responseId", response.ID.String()), zap.Error(err))
	}

	return c.Status(fiber.StatusAccepted).JSON(models.SubmitResponseResult{
		ID:         response.ID.String(),
		QuestionID: response.QuestionID,
		Version:    response.Version,
		Status:     string(response.Status),
	})
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("duration is required")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("unparseable duration %q", raw)
}
