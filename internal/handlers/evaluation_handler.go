package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"smarthire/internal/services"
)

type EvaluationHandler struct {
	aggregator services.Aggregator
}

func NewEvaluationHandler(aggregator services.Aggregator) *EvaluationHandler {
	return &EvaluationHandler{
		aggregator: aggregator,
	}
}

// HandleGetEvaluation returns the candidate's evaluation with the per-response
// breakdown. Readable in any status; scores appear once the evaluation
// finalizes.
func (h *EvaluationHandler) HandleGetEvaluation(c *fiber.Ctx) error {
	candidateID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid candidate ID format",
		})
	}

	export, err := h.aggregator.Export(candidateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Evaluation not found",
		})
	}

	return c.JSON(export)
}
