package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/model"
)

// Candidate is a fetched page travelling through the pipeline.
type Candidate struct {
	Hit  Hit
	Page Page
	// Query is the search query that produced the hit.
	Query string
	// PKIndex is the merge order, starting at 1.
	PKIndex int
	// Score is the selector's relevance grade, 0 to 3.
	Score   int
	Summary string
}

// Selector grades how well a page serves the round's purpose.
type Selector interface {
	Score(ctx context.Context, question, think string, c Candidate) (int, error)
}

// Summarizer extracts the relevant part of a page. An empty summary means
// the page holds nothing relevant.
type Summarizer interface {
	Summarize(ctx context.Context, question, think string, c Candidate) (string, error)
}

// verdicts are checked in order; "fully satisfy" is a suffix of "rich and
// fully satisfy".
var verdicts = []struct {
	phrase string
	score  int
}{
	{"rich and fully satisfy", 3},
	{"not satisfy", 0},
	{"partially satisfy", 1},
	{"fully satisfy", 2},
}

// ParseVerdict maps a selector answer to a score.
func ParseVerdict(answer string) (int, bool) {
	a := strings.ToLower(answer)
	for _, v := range verdicts {
		if strings.Contains(a, v.phrase) {
			return v.score, true
		}
	}
	return 0, false
}

// passage renders a candidate for the select and summarize prompts.
func passage(c Candidate) string {
	published := c.Page.PublishTime
	if published == "" {
		published = "Not provided"
	}
	return fmt.Sprintf("<title>\n%s\n</title>\n<url>\n%s\n</url>\n<publish_time>\n%s\n</publish_time>\n<content>\n%s\n</content>",
		c.Title(), c.Hit.URL, published, c.Page.Content)
}

// Title prefers the extracted page title over the search hit's.
func (c Candidate) Title() string {
	if c.Page.Title != "" {
		return c.Page.Title
	}
	return c.Hit.Title
}

// LLMSelector grades pages with a model.
type LLMSelector struct {
	Model model.Model
	// ModelName overrides the backend model, typically a small fast one.
	ModelName string
	Attempts  int
}

// Score implements Selector. An answer that stays unparseable grades the
// page 0.
func (s *LLMSelector) Score(ctx context.Context, question, think string, c Candidate) (int, error) {
	tmpl, err := prompt.Lookup(prompt.ModeReport, prompt.RoleSelect)
	if err != nil {
		return 0, err
	}
	system, user, err := tmpl.Build(prompt.Data{Question: question, Think: think, Passage: passage(c)})
	if err != nil {
		return 0, err
	}
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 5
	}
	score, err := retry.Do(ctx, retry.Options{Attempts: attempts}, func(ctx context.Context, a retry.Attempt) (int, error) {
		req := model.Prompt(system, user)
		req.Model = s.ModelName
		req.Temperature = model.Float(0.01)
		req.OverwriteCache = a.Overwrite
		text, err := model.CompleteText(ctx, s.Model, req)
		if err != nil {
			return 0, err
		}
		score, ok := ParseVerdict(prompt.Tag(text, prompt.TagAnswer))
		if !ok {
			return 0, fmt.Errorf("selector gave no verdict")
		}
		return score, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, nil
	}
	return score, nil
}

// LLMSummarizer extracts relevant content with a model.
type LLMSummarizer struct {
	Model     model.Model
	ModelName string
	Attempts  int
}

var noContent = map[string]bool{
	"no content":  true,
	"no content.": true,
	"none":        true,
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, question, think string, c Candidate) (string, error) {
	tmpl, err := prompt.Lookup(prompt.ModeReport, prompt.RoleSummarize)
	if err != nil {
		return "", err
	}
	system, user, err := tmpl.Build(prompt.Data{Question: question, Think: think, Passage: passage(c)})
	if err != nil {
		return "", err
	}
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	return retry.Do(ctx, retry.Options{Attempts: attempts}, func(ctx context.Context, a retry.Attempt) (string, error) {
		req := model.Prompt(system, user)
		req.Model = s.ModelName
		req.Temperature = model.Float(0.01)
		req.OverwriteCache = a.Overwrite
		text, err := model.CompleteText(ctx, s.Model, req)
		if err != nil {
			return "", err
		}
		summary := strings.TrimSpace(prompt.Tag(text, prompt.TagContent))
		if noContent[strings.ToLower(strings.Trim(summary, "\"“”"))] {
			return "", nil
		}
		return summary, nil
	})
}
