package task

import (
	"time"

	"github.com/zhiyu/hypergen/core"
)

// Ref is an arena handle addressing a node inside its Tree.
type Ref int

// NoRef marks an absent reference (the root's outer node).
const NoRef Ref = -1

// RootRef is the handle of the synthetic root node.
const RootRef Ref = 0

// Info is the task description carried by a node.
type Info struct {
	Goal       string        `json:"goal"`
	TaskType   core.TaskType `json:"task_type"`
	Length     string        `json:"length,omitempty"`
	Dependency []string      `json:"dependency"`

	// CandidatePlan is a planner-suggested decomposition carried down from the
	// parent's plan; HasCandidatePlan distinguishes an empty plan from a missing one.
	CandidatePlan    []Descriptor      `json:"candidate_plan,omitempty"`
	HasCandidatePlan bool              `json:"has_candidate_plan,omitempty"`
	CandidateThink   string            `json:"candidate_think,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Result is the record a node keeps for one completed action.
type Result struct {
	Value     string            `json:"result"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	AgentID   string            `json:"agent_id,omitempty"`
}

// Node is one TaskNode of the tree.
type Node struct {
	Ref         Ref           `json:"ref"`
	ID          string        `json:"id"`
	InstanceKey string        `json:"hashkey"`
	Info        Info          `json:"task_info"`
	Kind        core.NodeKind `json:"node_type"`
	Status      core.Status   `json:"status"`

	Outer   Ref   `json:"outer"`
	Parents []Ref `json:"parents"`
	Layer   int   `json:"layer"`

	// Inner is the owned child graph; always non-nil, empty until planned.
	Inner *Graph `json:"inner_graph"`

	Results map[core.Action]Result `json:"results"`

	// Detached nodes were replaced by a re-plan before any of them started.
	Detached bool `json:"detached,omitempty"`
}

// IsRoot reports whether the node is the synthetic root.
func (n *Node) IsRoot() bool { return n.Outer == NoRef }

// Result returns the recorded result of an action.
func (n *Node) Result(a core.Action) (Result, bool) {
	r, ok := n.Results[a]
	return r, ok
}

// Label renders a compact one-line description used in logs.
func (n *Node) Label() string {
	star := ""
	if n.Kind == core.KindExecute {
		star = "*"
	}
	tag := "【" + n.Info.TaskType.Tag() + "】"
	if n.Info.TaskType == core.TaskTypeComposition && n.Info.Length != "" {
		tag = "【" + n.Info.TaskType.Tag() + "." + n.Info.Length + "】"
	}
	return n.ID + star + tag + "(" + n.Status.String() + "): " + n.Info.Goal
}
