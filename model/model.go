package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// User builds a user message.
func User(text string) Message { return Message{Role: "user", Content: text} }

// Assistant builds an assistant message.
func Assistant(text string) Message { return Message{Role: "assistant", Content: text} }

// Request captures the normalized model input produced by agents.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	// Model overrides the backend's configured model when set.
	Model string `json:"model,omitempty"`
	// Temperature overrides the backend default when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens overrides the backend default when positive.
	MaxTokens int  `json:"max_tokens,omitempty"`
	Stream    bool `json:"stream,omitempty"`
	// OverwriteCache skips cached answers; the fresh answer replaces them.
	OverwriteCache bool `json:"-"`
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }

// Prompt builds a single-turn request.
func Prompt(system, user string) Request {
	return Request{System: system, Messages: []Message{User(user)}}
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface agents need to drive generation. A backend
// emits any number of partial responses followed by exactly one final
// response, or an error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains Generate and returns the final response.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var final *Response
	var partial strings.Builder
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if final == nil {
		if partial.Len() == 0 {
			return Response{}, errors.New("model returned no response")
		}
		return Response{Text: partial.String(), FinishReason: "stop"}, nil
	}
	if final.Text == "" && partial.Len() > 0 {
		final.Text = partial.String()
	}
	return *final, nil
}

// CompleteText is Complete returning only the text.
func CompleteText(ctx context.Context, m Model, req Request) (string, error) {
	r, err := Complete(ctx, m, req)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// single emits one final response; decorators use it to replay results.
func single(r Response, err error) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)
	if err != nil {
		errCh <- err
	} else {
		out <- r
	}
	close(out)
	close(errCh)
	return out, errCh
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model api status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// retryableCodes are statuses worth another attempt. 400, 401 and 404 are
// included because gateways in front of the providers return them
// transiently.
var retryableCodes = map[int]bool{
	400: true, 401: true, 404: true, 429: true,
	500: true, 502: true, 503: true, 504: true, 529: true,
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool { return retryableCodes[e.Code] }
