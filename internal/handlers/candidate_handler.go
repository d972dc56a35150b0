package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"smarthire/internal/models"
	"smarthire/internal/repositories"
	"smarthire/internal/services"
)

var resumeExtensions = []string{".pdf", ".docx"}

type CandidateHandler struct {
	candidateRepo  repositories.CandidateRepository
	docRepo        repositories.DocumentRepository
	storageService services.StorageService
	extractor      services.ResumeExtractor
}

func NewCandidateHandler(
	candidateRepo repositories.CandidateRepository,
	docRepo repositories.DocumentRepository,
	storageService services.StorageService,
	extractor services.ResumeExtractor,
) *CandidateHandler {
	return &CandidateHandler{
		candidateRepo:  candidateRepo,
		docRepo:        docRepo,
		storageService: storageService,
		extractor:      extractor,
	}
}

// HandleCreate registers a candidate from a multipart form carrying "name",
// "email" and a "resume" file. Resume extraction runs synchronously so the
// caller learns about an unreadable document immediately.
func (h *CandidateHandler) HandleCreate(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(c.FormValue("email"))
	if name == "" || email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and email are required",
		})
	}

	resumeFile, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}

	doc, parsed, status, errMsg := h.storeAndExtract(resumeFile)
	if errMsg != "" {
		return c.Status(status).JSON(fiber.Map{"error": errMsg})
	}

	candidate := models.CandidateProfile{
		ID:               uuid.New(),
		Name:             name,
		Email:            email,
		ResumeDocumentID: &doc.ID,
		Skills:           parsed.Skills,
		ExperienceYears:  parsed.ExperienceYears,
		EducationLevel:   parsed.EducationLevel,
		LowConfidence:    parsed.LowConfidence,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := h.candidateRepo.Create(&candidate); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to create candidate: %v", err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(models.CreateCandidateResponse{
		ID:              candidate.ID.String(),
		Name:            candidate.Name,
		Email:           candidate.Email,
		Skills:          candidate.Skills,
		ExperienceYears: candidate.ExperienceYears,
		EducationLevel:  string(candidate.EducationLevel),
		LowConfidence:   candidate.LowConfidence,
	})
}

// HandleReplaceResume re-extracts the profile from a newly uploaded resume.
func (h *CandidateHandler) HandleReplaceResume(c *fiber.Ctx) error {
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

	resumeFile, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}

	doc, parsed, status, errMsg := h.storeAndExtract(resumeFile)
	if errMsg != "" {
		return c.Status(status).JSON(fiber.Map{"error": errMsg})
	}

	update := &repositories.ResumeFieldsUpdate{
		ResumeDocumentID: doc.ID,
		Skills:           parsed.Skills,
		ExperienceYears:  parsed.ExperienceYears,
		EducationLevel:   parsed.EducationLevel,
		LowConfidence:    parsed.LowConfidence,
	}
	if err := h.candidateRepo.UpdateResumeFields(candidateID, update); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to update candidate: %v", err),
		})
	}

	return c.JSON(fiber.Map{
		"id":               candidateID.String(),
		"skills":           parsed.Skills,
		"experience_years": parsed.ExperienceYears,
		"education_level":  string(parsed.EducationLevel),
		"low_confidence":   parsed.LowConfidence,
	})
}

func (h *CandidateHandler) storeAndExtract(file *multipart.FileHeader) (*models.Document, *services.ParsedResume, int, string) {
	filename, filePath, err := h.storageService.SaveFile(file, models.DocumentKindResume, resumeExtensions)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) {
			return nil, nil, fiber.StatusBadRequest, "resume must be a PDF or DOCX file"
		}
		return nil, nil, fiber.StatusInternalServerError, fmt.Sprintf("failed to save resume: %v", err)
	}

	mimeType := resumeMimeType(file)
	parsed, err := h.extractor.Extract(filePath, mimeType)
	if err != nil {
		h.storageService.DeleteFile(filename)
		if errors.Is(err, services.ErrUnsupportedFormat) {
			return nil, nil, fiber.StatusBadRequest, "resume document could not be read"
		}
		return nil, nil, fiber.StatusInternalServerError, fmt.Sprintf("failed to extract resume: %v", err)
	}

	doc := &models.Document{
		ID:               uuid.New(),
		Filename:         filename,
		OriginalFileName: file.Filename,
		Kind:             models.DocumentKindResume,
		MimeType:         mimeType,
		FilePath:         filePath,
		SizeBytes:        file.Size,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := h.docRepo.Create(doc); err != nil {
		h.storageService.DeleteFile(filename)
		return nil, nil, fiber.StatusInternalServerError, fmt.Sprintf("failed to save resume record: %v", err)
	}

	return doc, parsed, 0, ""
}

func resumeMimeType(file *multipart.FileHeader) string {
	if ct := file.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if strings.ToLower(filepath.Ext(file.Filename)) == ".docx" {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/pdf"
}
