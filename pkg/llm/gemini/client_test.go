package gemini

import (
	"errors"
	"testing"

	"autoqa/pkg/llm"
)

func TestName(t *testing.T) {
	client := New("test-key")
	if client.Name() != "gemini" {
		t.Errorf("Expected provider name 'gemini', got %s", client.Name())
	}
}

func TestClassifyError_StatusCodes(t *testing.T) {
	cases := []struct {
		errText string
		want    llm.ErrorType
	}{
		{"googleapi: got HTTP response code 429: RESOURCE_EXHAUSTED", llm.ErrorTypeRateLimited},
		{"googleapi: got HTTP response code 403: PERMISSION_DENIED", llm.ErrorTypeAuth},
		{"googleapi: got HTTP response code 400: INVALID_ARGUMENT", llm.ErrorTypeInvalidRequest},
		{"googleapi: got HTTP response code 500: INTERNAL", llm.ErrorTypeUpstream},
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

	classified = classifyError(errors.New("quota exceeded for project"))
	if classified.Type != llm.ErrorTypeRateLimited {
		t.Errorf("quota message classified as %v", classified.Type)
	}
}

func TestClassifyError_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	classified := classifyError(cause)
	if !errors.Is(classified, cause) {
		t.Error("classified error should wrap the original cause")
	}
}
