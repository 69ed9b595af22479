package plan

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
)

// ErrUninitializedPlan rejects any action that arrives before the creating
// open action.
var ErrUninitializedPlan = errors.New("plan is not initialized: the first action must be open")

// UnauthorizedError rejects an action whose author lacks the required role.
type UnauthorizedError struct {
	Actor  identity.Identity
	Action string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s is not authorized to apply %s", e.Actor, e.Action)
}

// UnknownTaskError rejects an action referencing a task id that is not live.
type UnknownTaskError struct {
	ID object.ID
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task: %s", e.ID)
}

// UnknownCommentError rejects an action referencing a comment id that is not
// live, including comments that have been redacted.
type UnknownCommentError struct {
	ID object.ID
}

func (e *UnknownCommentError) Error() string {
	return fmt.Sprintf("unknown comment: %s", e.ID)
}

// CyclicDependencyError rejects a blockedBy update that would make the task
// dependency graph cyclic.
type CyclicDependencyError struct {
	TaskID object.ID
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependencies of task %s would form a cycle", e.TaskID)
}

// InvalidReorderError rejects a reorder whose order list names an id that is
// not a live task, or names a task twice.
type InvalidReorderError struct {
	ID object.ID
}

func (e *InvalidReorderError) Error() string {
	return fmt.Sprintf("invalid task order: %s", e.ID)
}

// MalformedError rejects an operation whose payload could not be decoded.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed action payload: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Outcome records the fate of a single operation during a fold. A rejected
// operation carries the error that rejected it; rejection never aborts the
// fold.
type Outcome struct {
	Op     object.ID
	Action string
	Err    error
}

// Applied reports whether the operation changed (or validly left) the state.
func (o Outcome) Applied() bool { return o.Err == nil }

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Op     object.ID `json:"op"`
		Action string    `json:"action,omitempty"`
		Error  string    `json:"error,omitempty"`
	}{Op: o.Op, Action: o.Action}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// Rejected filters outcomes down to the rejected ones.
func Rejected(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.Applied() {
			out = append(out, o)
		}
	}
	return out
}
