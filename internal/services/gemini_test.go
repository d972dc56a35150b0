package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"rate limited", 429, ErrRateLimited},
		{"server error", 500, ErrRateLimited},
		{"bad gateway", 502, ErrRateLimited},
		{"unauthorized", 401, ErrUnauthorized},
		{"forbidden", 403, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyProviderError(genai.APIError{Code: tt.code, Message: "boom"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClassifyProviderErrorPassesThroughOthers(t *testing.T) {
	err := classifyProviderError(genai.APIError{Code: 400, Message: "bad request"})
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	plain := fmt.Errorf("connection reset")
	assert.Equal(t, plain, classifyProviderError(plain))
}

func TestTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(classifyProviderError(genai.APIError{Code: 429})))
	assert.True(t, IsTransient(classifyProviderError(genai.APIError{Code: 503})))
	assert.False(t, IsTransient(classifyProviderError(genai.APIError{Code: 401})))
	assert.False(t, IsTransient(ErrUnintelligible))
	assert.False(t, IsTransient(nil))
}

func TestExtractJSONStripsMarkdown(t *testing.T) {
	raw := "```json\n{\"joy\": 0.8, \"fear\": 0.1}\n```"
	assert.JSONEq(t, `{"joy": 0.8, "fear": 0.1}`, extractJSON(raw))

	raw = "Here is the analysis: {\"confident\": 0.7} hope that helps"
	assert.Equal(t, `{"confident": 0.7}`, extractJSON(raw))

	assert.Equal(t, "no json here", extractJSON("no json here"))
}
