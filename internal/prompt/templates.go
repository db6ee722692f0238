package prompt

import "fmt"

// Mode selects a family of prompts.
type Mode string

const (
	ModeReport Mode = "report"
	ModeStory  Mode = "story"
)

// Role names what a prompt asks the model to do.
type Role string

const (
	RoleAtom         Role = "atom"
	RoleAtomUpdate   Role = "atom_update"
	RoleSearchUpdate Role = "search_update"
	RolePlan         Role = "plan"
	RoleWrite        Role = "write"
	RoleReason       Role = "reason"
	RoleAggregate    Role = "aggregate"
	RoleUpdate       Role = "update"
	RoleSearchTurn   Role = "search_turn"
	RoleSearchMerge  Role = "search_merge"
	RoleSelect       Role = "select"
	RoleSummarize    Role = "summarize"
)

// Output tags the templates ask for.
const (
	TagThink         = "think"
	TagAtom          = "atomic_task_determination"
	TagGoalUpdate    = "goal_updating"
	TagResult        = "result"
	TagArticle       = "article"
	TagObservation   = "observation"
	TagMissingInfo   = "missing_info"
	TagPlanningThink = "planning_and_think"
	TagQueryThink    = "current_turn_query_think"
	TagSearchQueries = "current_turn_search_querys"
	TagAnswer        = "answer"
	TagContent       = "content"
)

// Verdicts and placeholders shared with the agents.
const (
	AtomicVerdict      = "atomic"
	ComplexVerdict     = "complex"
	NotProvided        = "Not Provided"
	MissingPlaceholder = "Missing"
)

// Data is the union of fields the templates reference.
type Data struct {
	Today             string
	RootQuestion      string
	Article           string
	FullPlan          string
	OuterDependent    string
	SameDependent     string
	Task              string
	CandidatePlan     string
	CandidateThink    string
	FinalAggregate    string
	TargetWriteTasks  string
	GlobalWritingTask string
	OuterWriteTask    string
	SearchResults     string
	Question          string
	Turn              int
	History           string
	ToolResult        string
	ForceStop         bool
	Passage           string
	Think             string
}

// Template is a system/user prompt pair.
type Template struct {
	Name   string
	System string
	User   string
}

// Build renders both halves of the template.
func (t Template) Build(data Data) (system, user string, err error) {
	if system, err = Render(t.System, data); err != nil {
		return "", "", fmt.Errorf("%s system: %w", t.Name, err)
	}
	if user, err = Render(t.User, data); err != nil {
		return "", "", fmt.Errorf("%s user: %w", t.Name, err)
	}
	return system, user, nil
}

type key struct {
	mode Mode
	role Role
}

var catalog = map[key]Template{}

func register(mode Mode, role Role, system, user string) {
	catalog[key{mode, role}] = Template{Name: string(mode) + "/" + string(role), System: system, User: user}
}

// Lookup returns the template for role in mode. Roles without a
// mode-specific variant fall back to the report family.
func Lookup(mode Mode, role Role) (Template, error) {
	if t, ok := catalog[key{mode, role}]; ok {
		return t, nil
	}
	if t, ok := catalog[key{ModeReport, role}]; ok {
		return t, nil
	}
	return Template{}, fmt.Errorf("no %s prompt for mode %s", role, mode)
}
