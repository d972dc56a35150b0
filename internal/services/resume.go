package services

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"smarthire/internal/models"
)

type ResumeExtractor interface {
	// Extract parses a stored resume into normalized profile fields. An
	// unreadable document fails with ErrUnsupportedFormat; thin documents
	// succeed with best-effort defaults and the LowConfidence flag set.
	Extract(filePath, mimeType string) (*ParsedResume, error)
}

type ParsedResume struct {
	Skills          []string
	ExperienceYears float64
	EducationLevel  models.EducationLevel
	LowConfidence   bool
}

type resumeExtractor struct {
	skillVocabulary []string
}

// Vocabulary scanned against the skills section. Matching is whole-word and
// case-insensitive.
var defaultSkillVocabulary = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "c++", "c#",
	"ruby", "php", "rust", "kotlin", "swift", "scala", "sql", "nosql",
	"postgresql", "mysql", "mongodb", "redis", "kafka", "rabbitmq", "grpc",
	"rest", "graphql", "docker", "kubernetes", "terraform", "aws", "gcp",
	"azure", "linux", "git", "ci/cd", "react", "angular", "vue", "node",
	"django", "flask", "spring", "machine learning", "deep learning", "nlp",
	"data analysis", "excel", "communication", "leadership", "teamwork",
	"project management", "agile", "scrum",
}

func NewResumeExtractor() ResumeExtractor {
	return &resumeExtractor{skillVocabulary: defaultSkillVocabulary}
}

func (e *resumeExtractor) Extract(filePath, mimeType string) (*ParsedResume, error) {
	text, err := ExtractDocumentText(filePath, mimeType)
	if err != nil {
		return nil, err
	}

	return e.parseText(text), nil
}

// ExtractDocumentText pulls plain text from a PDF or DOCX file. Shared by the
// resume extractor and the requirement ingestion tool.
func ExtractDocumentText(filePath, mimeType string) (string, error) {
	switch {
	case mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(filePath), ".pdf"):
		return extractPDFText(filePath)
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(strings.ToLower(filePath), ".docx"):
		return extractDOCXText(filePath)
	default:
		return "", fmt.Errorf("mime type %q: %w", mimeType, ErrUnsupportedFormat)
	}
}

// parseText runs the section heuristics. Every field degrades to a default
// rather than failing; LowConfidence marks profiles where an expected section
// was missing.
func (e *resumeExtractor) parseText(text string) *ParsedResume {
	lower := strings.ToLower(text)

	skills := e.findSkills(lower)
	years, yearsFound := findExperienceYears(lower)
	education := findEducationLevel(lower)

	lowConfidence := len(skills) == 0 || !yearsFound || education == models.EducationUnknown

	return &ParsedResume{
		Skills:          skills,
		ExperienceYears: years,
		EducationLevel:  education,
		LowConfidence:   lowConfidence,
	}
}

func (e *resumeExtractor) findSkills(lower string) []string {
	seen := make(map[string]bool)
	var skills []string
	for _, skill := range e.skillVocabulary {
		if seen[skill] {
			continue
		}
		if containsWord(lower, skill) {
			seen[skill] = true
			skills = append(skills, skill)
		}
	}
	return skills
}

var wordBoundary = regexp.MustCompile(`[a-z0-9+#]+`)

func containsWord(lower, skill string) bool {
	if strings.ContainsAny(skill, " /+#.") {
		// Multi-word and symbol-bearing skills match as substrings.
		return strings.Contains(lower, skill)
	}
	for _, w := range wordBoundary.FindAllString(lower, -1) {
		if w == skill {
			return true
		}
	}
	return false
}

var experienceRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\+?\s*(?:years?|yrs?)(?:\s+of)?\s+(?:\w+\s+)?experience`)

func findExperienceYears(lower string) (float64, bool) {
	matches := experienceRe.FindAllStringSubmatch(lower, -1)
	best := 0.0
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > best && v < 60 {
			best = v
		}
	}
	return best, best > 0
}

func findEducationLevel(lower string) models.EducationLevel {
	// Ordered highest first; the first hit wins.
	checks := []struct {
		level    models.EducationLevel
		keywords []string
	}{
		{models.EducationDoctorate, []string{"phd", "ph.d", "doctorate", "doctoral"}},
		{models.EducationMaster, []string{"master of", "m.sc", "msc", "mba", "master's degree", "masters degree"}},
		{models.EducationBachelor, []string{"bachelor", "b.sc", "bsc", "b.tech", "undergraduate degree"}},
		{models.EducationHighSchool, []string{"high school", "secondary school", "diploma"}},
	}
	for _, c := range checks {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.level
			}
		}
	}
	return models.EducationUnknown
}

func extractPDFText(filePath string) (string, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", filePath)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", ErrUnsupportedFormat)
	}
	defer f.Close()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Log error but continue with other pages
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in PDF: %w", ErrUnsupportedFormat)
	}

	return text, nil
}

// extractDOCXText pulls the text runs out of word/document.xml. DOCX is a zip
// of XML parts, so the stdlib readers cover it.
func extractDOCXText(filePath string) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", ErrUnsupportedFormat)
	}
	defer zr.Close()

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("missing word/document.xml: %w", ErrUnsupportedFormat)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX body: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var textBuilder strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX body: %w", ErrUnsupportedFormat)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				textBuilder.WriteString("\n")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				textBuilder.Write(t)
			}
		}
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in DOCX: %w", ErrUnsupportedFormat)
	}

	return text, nil
}
