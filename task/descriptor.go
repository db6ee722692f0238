package task

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Descriptor is one entry of a planner-produced sub-task list.
type Descriptor struct {
	ID         string       `json:"id"`
	Goal       string       `json:"goal"`
	TaskType   string       `json:"task_type"`
	Dependency []string     `json:"dependency"`
	Length     string       `json:"length,omitempty"`
	SubTasks   []Descriptor `json:"sub_tasks,omitempty"`

	// HasSubTasks records whether the planner emitted a sub_tasks field at all.
	HasSubTasks bool `json:"-"`
	// Atom marks the synthetic single child of an atomic task.
	Atom bool `json:"atom,omitempty"`
}

// UnmarshalJSON accepts the loose shapes planners emit: numeric ids and
// dependency entries, numeric lengths, and absent fields.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID         any             `json:"id"`
		Goal       string          `json:"goal"`
		TaskType   string          `json:"task_type"`
		Dependency []any           `json:"dependency"`
		Length     any             `json:"length"`
		SubTasks   json.RawMessage `json:"sub_tasks"`
		Atom       bool            `json:"atom"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = Descriptor{
		ID:       scalarString(raw.ID),
		Goal:     raw.Goal,
		TaskType: raw.TaskType,
		Length:   scalarString(raw.Length),
		Atom:     raw.Atom,
	}
	for _, dep := range raw.Dependency {
		if s := scalarString(dep); s != "" {
			d.Dependency = append(d.Dependency, s)
		}
	}
	if len(raw.SubTasks) > 0 && string(raw.SubTasks) != "null" {
		d.HasSubTasks = true
		if err := json.Unmarshal(raw.SubTasks, &d.SubTasks); err != nil {
			return fmt.Errorf("sub_tasks of %q: %w", d.ID, err)
		}
	}
	return nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ParseDescriptors decodes a JSON array of descriptors.
func ParseDescriptors(data []byte) ([]Descriptor, error) {
	var out []Descriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// creationKey is the numeric value of the last dot-separated id segment.
func creationKey(id string) (int, bool) {
	seg := id
	if i := strings.LastIndex(id, "."); i >= 0 {
		seg = id[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(seg))
	if err != nil {
		return 0, false
	}
	return n, true
}
