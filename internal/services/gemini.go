package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"smarthire/internal/models"
)

// GeminiService backs the Transcriber and ToneAnalyzer capabilities, plus
// the embedding call used by the requirement matcher, with the Gemini API.
type GeminiService interface {
	Transcriber
	ToneAnalyzer
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
}

func NewGeminiService(apiKey, model, embedModel string) (GeminiService, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:     client,
		modelName:  model,
		embedModel: embedModel,
	}, nil
}

// Transcribe implements Transcriber by sending the stored recording inline
// with a transcription prompt.
func (g *geminiService) Transcribe(ctx context.Context, ref MediaRef) (string, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}

	prompt := "Transcribe the spoken words in this recording verbatim. Return only the transcript text."
	if ref.Language != "" {
		prompt = fmt.Sprintf("%s The speaker uses language %q.", prompt, ref.Language)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: ref.MimeType, Data: data}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, nil)
	if err != nil {
		return "", classifyProviderError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty transcript: %w", ErrUnintelligible)
	}

	return text, nil
}

// Analyze implements ToneAnalyzer. Frames are optional; without them the
// model works from transcript text alone.
func (g *geminiService) Analyze(ctx context.Context, transcript string, frames []byte, frameMime string) (models.ToneScores, error) {
	prompt := fmt.Sprintf(`Analyze the emotional tone of this interview answer.
Rate each of these emotions with a confidence between 0 and 1:
analytical, confident, tentative, joy, fear.
Respond with only a JSON object mapping emotion name to confidence.

Answer transcript:
%s`, transcript)

	parts := []*genai.Part{{Text: prompt}}
	if len(frames) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: frameMime, Data: frames}})
	}
	contents := []*genai.Content{{Parts: parts}}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 1024,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		return nil, classifyProviderError(err)
	}

	scores := models.ToneScores{}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text())), &scores); err != nil {
		return nil, fmt.Errorf("unparseable tone response: %w", ErrUnintelligible)
	}

	for emotion, confidence := range scores {
		if confidence < 0 {
			scores[emotion] = 0
		} else if confidence > 1 {
			scores[emotion] = 1
		}
	}

	return scores, nil
}

// GenerateEmbedding implements GeminiService.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long (max ~10000 tokens for embedding)
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// classifyProviderError maps a Gemini API failure onto the pipeline's error
// taxonomy: throttling and server-side trouble are transient, credential
// problems are permanent.
func classifyProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrRateLimited)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrUnauthorized)
		}
	}
	return err
}

// extractJSON tries to extract JSON from text that might contain markdown or other formatting
func extractJSON(text string) string {
	// Remove markdown code blocks
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	// Find JSON object boundaries
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
