package ollama

import (
	"errors"
	"testing"

	"autoqa/pkg/llm"
)

func TestName(t *testing.T) {
	client := New()
	if client.Name() != "ollama" {
		t.Errorf("Expected provider name 'ollama', got %s", client.Name())
	}
}

func TestNewWithModel_InvalidURL(t *testing.T) {
	// An unparseable host must not panic; the client falls back to the
	// default local server.
	client := NewWithModel("://bad", "llama3")
	if client == nil {
		t.Fatal("client should be constructed despite invalid URL")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		errText string
		want    llm.ErrorType
	}{
		{"dial tcp 127.0.0.1:11434: connection refused", llm.ErrorTypeUpstream},
		{"model \"llama3\" not found, try pulling it first", llm.ErrorTypeInvalidRequest},
		{"context deadline exceeded", llm.ErrorTypeTimeout},
	}

	for _, tc := range cases {
		classified := classifyError(errors.New(tc.errText))
		if classified.Type != tc.want {
			t.Errorf("classifyError(%q).Type = %v, want %v", tc.errText, classified.Type, tc.want)
		}
	}
}
