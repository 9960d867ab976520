package domain

import (
	"encoding/json"
	"strconv"
)

// Ref is a server-side choice value (status, result, etc.) referenced by
// id and display name.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// IsZero reports whether the ref carries no value. The server omits the
// result/status fields entirely for undetermined runs.
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Name == ""
}

// UnmarshalJSON accepts the shapes the server actually sends for choice
// fields: a full {id, name} object, a bare name string, or a bare id.
func (r *Ref) UnmarshalJSON(data []byte) error {
	type refAlias Ref
	var obj refAlias
	if err := json.Unmarshal(data, &obj); err == nil {
		*r = Ref(obj)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err == nil {
		r.ID = id
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(data), Type: nil}
}

// Test run status and result choice values.
var (
	StatusNew        = Ref{ID: 1, Name: "New"}
	StatusInProgress = Ref{ID: 2, Name: "In Progress"}
	StatusSuspended  = Ref{ID: 3, Name: "Suspended"}
	StatusFinished   = Ref{ID: 4, Name: "Finished"}

	ResultPassed = Ref{ID: 1, Name: "Passed"}
	ResultFailed = Ref{ID: 2, Name: "Failed"}
)

// StepResult is the per-step outcome reported back to the server.
type StepResult string

const (
	StepResultPassed StepResult = "PASSED"
	StepResultFailed StepResult = "FAILED"
)

// EndRunStatus is the run status submitted when a test case result is
// saved on the server.
type EndRunStatus string

const (
	EndRunNew        EndRunStatus = "NEW"
	EndRunSuspended  EndRunStatus = "SUSPENDED"
	EndRunInProgress EndRunStatus = "IN_PROGRESS"
	EndRunCompleted  EndRunStatus = "COMPLETED"
)

func (s EndRunStatus) String() string {
	if s == "" {
		return string(EndRunCompleted)
	}
	return string(s)
}

// FormatRunTime renders elapsed milliseconds for display.
func FormatRunTime(millis int64) string {
	return strconv.FormatInt(millis/1000, 10) + "s"
}
