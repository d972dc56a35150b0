package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"smarthire/internal/models"
	"smarthire/internal/repositories"
	"smarthire/internal/services"
)

type AssessmentHandler struct {
	candidateRepo   repositories.CandidateRepository
	personalityRepo repositories.PersonalityRepository
	scorer          services.TraitScorer
}

func NewAssessmentHandler(
	candidateRepo repositories.CandidateRepository,
	personalityRepo repositories.PersonalityRepository,
	scorer services.TraitScorer,
) *AssessmentHandler {
	return &AssessmentHandler{
		candidateRepo:   candidateRepo,
		personalityRepo: personalityRepo,
		scorer:          scorer,
	}
}

// HandleSubmit scores a complete Likert answer vector into a personality
// profile. Resubmitting supersedes the earlier profile rather than mutating it.
func (h *AssessmentHandler) HandleSubmit(c *fiber.Ctx) error {
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

	var req models.AssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.scorer.Score(candidateID, req.Answers)
	if err != nil {
		if errors.Is(err, services.ErrMalformedAnswers) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("invalid answers: %v", err),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to score assessment: %v", err),
		})
	}

	if err := h.personalityRepo.CreateSuperseding(profile); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to save personality profile: %v", err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(models.AssessmentResponse{
		ID:                profile.ID.String(),
		Openness:          profile.Openness,
		Conscientiousness: profile.Conscientiousness,
		Extraversion:      profile.Extraversion,
		Agreeableness:     profile.Agreeableness,
		Neuroticism:       profile.Neuroticism,
	})
}
