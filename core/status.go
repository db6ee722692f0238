package core

import (
	"encoding/json"
	"fmt"
)

// Status is a node's position in the task state machine.
type Status int

const (
	StatusNotReady Status = iota
	StatusReady
	StatusNeedUpdate
	StatusPlanDone
	StatusDoing
	StatusFinalToFinish
	StatusNeedPostReflect
	StatusFinish
	StatusFailed
)

var statusNames = map[Status]string{
	StatusNotReady:        "NOT_READY",
	StatusReady:           "READY",
	StatusNeedUpdate:      "NEED_UPDATE",
	StatusPlanDone:        "PLAN_DONE",
	StatusDoing:           "DOING",
	StatusFinalToFinish:   "FINAL_TO_FINISH",
	StatusNeedPostReflect: "NEED_POST_REFLECT",
	StatusFinish:          "FINISH",
	StatusFailed:          "FAILED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsSilence reports whether the status is terminal.
func (s Status) IsSilence() bool {
	return s == StatusFinish || s == StatusFailed
}

// IsSuspend reports whether the status only advances through the exam sweep.
func (s Status) IsSuspend() bool {
	return s == StatusNotReady || s == StatusDoing
}

// IsActivate reports whether the scheduler must invoke an action for the status.
func (s Status) IsActivate() bool {
	switch s {
	case StatusReady, StatusNeedUpdate, StatusPlanDone, StatusFinalToFinish, StatusNeedPostReflect:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", name)
}
