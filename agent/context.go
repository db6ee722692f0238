package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/memory"
	"github.com/zhiyu/hypergen/task"
)

// taskView is the JSON form of a task shown to planners.
type taskView struct {
	ID         string   `json:"id"`
	Goal       string   `json:"goal"`
	TaskType   string   `json:"task_type"`
	Length     string   `json:"length,omitempty"`
	Dependency []string `json:"dependency"`
}

// taskText renders the task for a prompt: a sentence for writers and
// aggregators, JSON otherwise.
func taskText(n *task.Node, natural bool) string {
	if natural {
		s := n.Info.Goal
		if n.Info.Length != "" {
			s += " Word count requirement: approximately " + n.Info.Length
		}
		return s
	}
	b, err := json.Marshal(taskView{
		ID:         n.ID,
		Goal:       n.Info.Goal,
		TaskType:   n.Info.TaskType.Tag(),
		Length:     n.Info.Length,
		Dependency: n.Info.Dependency,
	})
	if err != nil {
		return n.Info.Goal
	}
	return string(b)
}

func outerDependent(c memory.Context) string {
	var parts []string
	for _, level := range c.Upper {
		for _, e := range level {
			parts = append(parts, fmt.Sprintf("【%s】:\n %s", e.Goal, e.Result))
		}
	}
	return strings.Join(parts, "\n\n")
}

func sameDependent(c memory.Context) string {
	var parts []string
	for _, e := range c.FlatPredecessors() {
		parts = append(parts, fmt.Sprintf("【%s】: \n%s", e.Goal, e.Result))
	}
	return strings.Join(parts, "\n\n")
}

func candidatePlan(info task.Info) string {
	if !info.HasCandidatePlan {
		return prompt.MissingPlaceholder
	}
	b, err := json.Marshal(info.CandidatePlan)
	if err != nil {
		return prompt.MissingPlaceholder
	}
	return string(b)
}

func orMissing(s string) string {
	if s == "" {
		return prompt.MissingPlaceholder
	}
	return s
}

// targetWriteTasks lists the composition tasks that wait on n.
func targetWriteTasks(mem *memory.Memory, n *task.Node) string {
	writes := mem.DependentWrites(n)
	if len(writes) == 0 {
		return prompt.NotProvided
	}
	lines := make([]string, len(writes))
	for i, w := range writes {
		lines[i] = fmt.Sprintf("Write Task%d: %s, word count requirements: %s", i+1, w.Info.Goal, w.Info.Length)
	}
	return strings.Join(lines, "\n")
}

// outerWriteTask describes the writing task a search ultimately serves.
func outerWriteTask(mem *memory.Memory, n *task.Node) string {
	w := mem.OuterWrite(n)
	return fmt.Sprintf("Write Task %s, word count requirements: %s", w.Info.Goal, w.Info.Length)
}

// promptData assembles the fields every role template may reference.
func (e *env) promptData(call Call, natural bool) (prompt.Data, error) {
	n, mem := call.Node, call.Memory
	mctx, err := mem.Context(n)
	if err != nil {
		return prompt.Data{}, err
	}
	d := prompt.Data{
		Today:             e.today(),
		RootQuestion:      mem.RootGoal(),
		Article:           mem.Article(),
		FullPlan:          mem.FullPlan(n),
		OuterDependent:    outerDependent(mctx),
		SameDependent:     sameDependent(mctx),
		Task:              taskText(n, natural),
		CandidatePlan:     candidatePlan(n.Info),
		CandidateThink:    orMissing(n.Info.CandidateThink),
		GlobalWritingTask: mem.WritingOutline(n, e.cfgFor(n).GlobalOutline),
	}
	if n.Info.TaskType == core.TaskTypeSearch {
		d.TargetWriteTasks = targetWriteTasks(mem, n)
		d.OuterWriteTask = outerWriteTask(mem, n)
	}
	return d, nil
}
