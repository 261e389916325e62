package llm

import (
	"context"
	"strings"
)

// MockCompleter echoes the payload of each prompt so the pipeline can run
// without a model. Translations come back tagged with the target language.
type MockCompleter struct{}

// NewMockCompleter creates a mock backend
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Name identifies the backend
func (m *MockCompleter) Name() string {
	return "mock"
}

// Complete returns the last block of the prompt, which holds the payload
func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	blocks := strings.Split(strings.TrimSpace(req.Prompt), "\n\n")
	last := blocks[len(blocks)-1]
	if i := strings.Index(last, ":\n"); i >= 0 {
		last = last[i+2:]
	}
	return "[mock] " + strings.TrimSpace(last), nil
}
