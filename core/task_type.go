package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskType is the closed set of work variants a node can carry.
type TaskType int

const (
	// TaskTypeUnknown is the zero value and never valid on a built node.
	TaskTypeUnknown TaskType = iota
	// TaskTypeSearch retrieves external information.
	TaskTypeSearch
	// TaskTypeAnalysis reasons over previously gathered material.
	TaskTypeAnalysis
	// TaskTypeComposition writes prose into the shared article.
	TaskTypeComposition
)

// TaskTypes lists every valid task type in canonical order.
var TaskTypes = []TaskType{TaskTypeSearch, TaskTypeAnalysis, TaskTypeComposition}

// String returns the canonical upper-case name.
func (t TaskType) String() string {
	switch t {
	case TaskTypeSearch:
		return "SEARCH"
	case TaskTypeAnalysis:
		return "ANALYSIS"
	case TaskTypeComposition:
		return "COMPOSITION"
	default:
		return "UNKNOWN"
	}
}

// Tag returns the short tag planners use in their output ("search", "think", "write").
func (t TaskType) Tag() string {
	switch t {
	case TaskTypeSearch:
		return "search"
	case TaskTypeAnalysis:
		return "think"
	case TaskTypeComposition:
		return "write"
	default:
		return ""
	}
}

// ParseTaskType maps a tag, canonical name or legacy alias to a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "search", "searching", "retrieval":
		return TaskTypeSearch, nil
	case "think", "analysis", "analyze", "analyse", "reasoning", "reason":
		return TaskTypeAnalysis, nil
	case "write", "composition", "compose", "writing":
		return TaskTypeComposition, nil
	default:
		return TaskTypeUnknown, fmt.Errorf("unknown task type %q", s)
	}
}

// MarshalJSON encodes the task type as its tag.
func (t TaskType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Tag())
}

// UnmarshalJSON accepts any spelling ParseTaskType understands.
func (t *TaskType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = TaskTypeUnknown
		return nil
	}
	v, err := ParseTaskType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// NodeKind distinguishes planning nodes, which own a child graph, from leaf
// execution nodes.
type NodeKind int

const (
	// KindPlan nodes decompose their goal into a child graph.
	KindPlan NodeKind = iota
	// KindExecute nodes perform one unit of real work.
	KindExecute
)

func (k NodeKind) String() string {
	if k == KindExecute {
		return "EXECUTE"
	}
	return "PLAN"
}

// MarshalJSON encodes the kind as its name.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *NodeKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "PLAN":
		*k = KindPlan
	case "EXECUTE":
		*k = KindExecute
	default:
		return fmt.Errorf("unknown node kind %q", s)
	}
	return nil
}
