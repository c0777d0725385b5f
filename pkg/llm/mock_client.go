package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider provides a controllable Provider implementation for testing.
// Responses and errors are consumed in order; an error entry takes
// precedence over the response at the same position.
type MockProvider struct {
	mu            sync.Mutex
	name          string
	responses     []Response
	responseIndex int
	errors        []error
	errorIndex    int
	calls         int
	requests      []Request
}

// NewMockProvider creates a mock with predefined responses and errors.
func NewMockProvider(name string, responses []Response, errs []error) *MockProvider {
	return &MockProvider{
		name:      name,
		responses: responses,
		errors:    errs,
	}
}

// Name returns the mock's provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// Calls returns how many times Generate has been invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request Generate has received, in order.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// Generate returns the next predefined response or error.
func (m *MockProvider) Generate(_ context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.requests = append(m.requests, req)

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return Response{}, err
	}
	if m.errorIndex < len(m.errors) {
		// Consume the nil placeholder so errors and responses stay aligned.
		m.errorIndex++
	}

	if m.responseIndex >= len(m.responses) {
		return Response{}, fmt.Errorf("mock provider %s: no more responses", m.name)
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	if resp.Provider == "" {
		resp.Provider = m.name
	}
	return resp, nil
}
