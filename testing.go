package attrs

import (
	"context"
	"sync"
)

// MockCall records one MockInvoker.Generate call.
type MockCall struct {
	Model  Model
	Prompt string
	Media  []*Part
	Schema *OutputSchema // nil for plain Generate calls
}

// MockInvoker is an Invoker that answers from a function, for tests and
// offline runs. It is safe for concurrent use.
type MockInvoker struct {
	respond func(prompt string) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// NewMockInvoker answers every prompt with respond.
func NewMockInvoker(respond func(prompt string) (string, error)) *MockInvoker {
	return &MockInvoker{respond: respond}
}

// NewStaticInvoker answers every prompt with text.
func NewStaticInvoker(text string) *MockInvoker {
	return NewMockInvoker(func(string) (string, error) { return text, nil })
}

func (m *MockInvoker) Generate(ctx context.Context, model Model, prompt string, media []*Part) ([]byte, error) {
	return m.GenerateWithSchema(ctx, model, prompt, media, nil)
}

// GenerateWithSchema records schema with the call; the answer ignores it.
func (m *MockInvoker) GenerateWithSchema(ctx context.Context, model Model, prompt string, media []*Part, schema *OutputSchema) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Model: model, Prompt: prompt, Media: media, Schema: schema})
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := m.respond(prompt)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockInvoker) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
