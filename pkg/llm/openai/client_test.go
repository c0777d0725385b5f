package openai

import (
	"errors"
	"testing"

	"autoqa/pkg/llm"
)

func TestName(t *testing.T) {
	client := New("test-key")
	if client.Name() != "openai" {
		t.Errorf("Expected provider name 'openai', got %s", client.Name())
	}
}

func TestClassifyError_StatusCodes(t *testing.T) {
	cases := []struct {
		errText string
		want    llm.ErrorType
	}{
		{"request failed, status code: 429 too many requests", llm.ErrorTypeRateLimited},
		{"request failed, status code: 401 unauthorized", llm.ErrorTypeAuth},
		{"request failed, status code: 400 bad request", llm.ErrorTypeInvalidRequest},
		{"request failed, status code: 502 bad gateway", llm.ErrorTypeUpstream},
	}

	for _, tc := range cases {
		classified := classifyError(errors.New(tc.errText))
		if classified.Type != tc.want {
			t.Errorf("classifyError(%q).Type = %v, want %v", tc.errText, classified.Type, tc.want)
		}
	}
}

func TestClassifyError_MessagePatterns(t *testing.T) {
	classified := classifyError(errors.New("context deadline exceeded"))
	if classified.Type != llm.ErrorTypeTimeout {
		t.Errorf("timeout message classified as %v", classified.Type)
	}

	classified = classifyError(errors.New("incorrect API key provided"))
	if classified.Type != llm.ErrorTypeAuth {
		t.Errorf("auth message classified as %v", classified.Type)
	}
}

func TestClassifyError_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	classified := classifyError(cause)
	if !errors.Is(classified, cause) {
		t.Error("classified error should wrap the original cause")
	}
}
