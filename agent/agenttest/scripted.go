// Package agenttest provides a scripted agent.Capability for scheduler tests.
package agenttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zhiyu/hypergen/agent"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/task"
)

// Scripted plans by goal and completes every other action instantly.
// Goals without an entry in Plans are atomic. Executing a COMPOSITION task
// appends "text of <goal>" to the article.
type Scripted struct {
	agent.PassThrough

	Plans    map[string][]task.Descriptor
	PlanErrs map[string]error
	ExecErrs map[string]error

	mu       sync.Mutex
	planned  []string
	executed []string
}

var _ agent.Capability = (*Scripted)(nil)

// Planned returns the goals planned so far, in order.
func (s *Scripted) Planned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.planned...)
}

// Executed returns the goals executed so far, in order.
func (s *Scripted) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// Plan implements agent.Capability.
func (s *Scripted) Plan(_ context.Context, call agent.Call) (agent.Outcome, error) {
	goal := call.Node.Info.Goal
	s.mu.Lock()
	s.planned = append(s.planned, goal)
	s.mu.Unlock()
	if err := s.PlanErrs[goal]; err != nil {
		return agent.Outcome{}, err
	}
	return agent.Outcome{Result: "planned", Plan: s.Plans[goal]}, nil
}

// Execute implements agent.Capability.
func (s *Scripted) Execute(_ context.Context, call agent.Call) (agent.Outcome, error) {
	goal := call.Node.Info.Goal
	if err := s.ExecErrs[goal]; err != nil {
		return agent.Outcome{}, err
	}
	s.mu.Lock()
	s.executed = append(s.executed, goal)
	s.mu.Unlock()
	text := "text of " + goal
	if call.Node.Info.TaskType == core.TaskTypeComposition {
		call.Memory.AppendArticle(text)
	}
	return agent.Outcome{Result: text}, nil
}

// Update implements agent.Capability and keeps the goal.
func (s *Scripted) Update(_ context.Context, call agent.Call) (agent.Outcome, error) {
	return agent.Outcome{Result: call.Node.Info.Goal}, nil
}

// FinalAggregate returns the article for COMPOSITION tasks and joins the
// children's results otherwise.
func (s *Scripted) FinalAggregate(_ context.Context, call agent.Call) (agent.Outcome, error) {
	if call.Node.Info.TaskType == core.TaskTypeComposition {
		return agent.Outcome{Result: call.Memory.Article()}, nil
	}
	tree := call.Memory.Tree()
	var parts []string
	for _, c := range tree.Ordered(call.Node) {
		r, ok := tree.FinalResult(c)
		if !ok {
			return agent.Outcome{}, fmt.Errorf("child %s unfinished: %w", c.ID, core.ErrContract)
		}
		parts = append(parts, r)
	}
	return agent.Outcome{Result: strings.Join(parts, "\n")}, nil
}
