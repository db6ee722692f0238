package model

import (
	"context"
	"strings"
	"sync"
)

// MockModel is a scripted model for tests. Answers are chosen in order:
// the first rule whose substring occurs in the request's last message, then
// the next queued answer, then the Respond function, then an echo.
type MockModel struct {
	name string

	mu      sync.Mutex
	rules   []mockRule
	queue   []mockAnswer
	respond func(Request) (string, error)
	calls   []Request
}

type mockRule struct {
	contains string
	answer   mockAnswer
}

type mockAnswer struct {
	text string
	err  error
}

var _ Model = (*MockModel)(nil)

// NewMockModel creates a mock model with the given name.
func NewMockModel(name string) *MockModel {
	return &MockModel{name: name}
}

// On answers text to every request whose last message contains substr.
func (m *MockModel) On(substr, text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{contains: substr, answer: mockAnswer{text: text}})
	return m
}

// OnError fails every request whose last message contains substr.
func (m *MockModel) OnError(substr string, err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{contains: substr, answer: mockAnswer{err: err}})
	return m
}

// Queue appends answers consumed one per unmatched request.
func (m *MockModel) Queue(texts ...string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.queue = append(m.queue, mockAnswer{text: t})
	}
	return m
}

// QueueError appends a failing answer.
func (m *MockModel) QueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockAnswer{err: err})
	return m
}

// Respond installs a fallback answer function.
func (m *MockModel) Respond(fn func(Request) (string, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
	return m
}

// Calls returns a copy of every request seen so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many requests were made.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func lastMessage(req Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func (m *MockModel) answer(req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	last := lastMessage(req)
	for _, r := range m.rules {
		if strings.Contains(last, r.contains) {
			m.mu.Unlock()
			return r.answer.text, r.answer.err
		}
	}
	if len(m.queue) > 0 {
		a := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return a.text, a.err
	}
	respond := m.respond
	m.mu.Unlock()
	if respond != nil {
		return respond(req)
	}
	return "Mock response to: " + last, nil
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := ctx.Err(); err != nil {
		return single(Response{}, err)
	}
	text, err := m.answer(req)
	if err != nil {
		return single(Response{}, err)
	}
	in := len(lastMessage(req))
	return single(Response{
		ID:           "mock",
		Text:         text,
		FinishReason: "stop",
		Usage:        &TokenUsage{PromptTokens: in, CompletionTokens: len(text), TotalTokens: in + len(text)},
	}, nil)
}

// Info implements Model.
func (m *MockModel) Info() Info {
	return Info{Name: m.name, Provider: "mock"}
}
