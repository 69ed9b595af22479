// Package plan implements the replicated plan document: a structured record
// of a body of work that disconnected participants edit independently and
// reconcile by folding the same ordered action sequence.
package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/thread"
)

// Status is the plan lifecycle status.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// ParseStatus accepts the common spellings of each status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "draft":
		return StatusDraft, nil
	case "approved":
		return StatusApproved, nil
	case "in-progress", "inprogress", "in_progress":
		return StatusInProgress, nil
	case "completed", "complete", "done":
		return StatusCompleted, nil
	case "archived", "archive":
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("unknown plan status: %s", s)
	}
}

// Task is one entry in a plan, identified by the id of the operation that
// created it. There is no mutable task status: a task is done exactly when
// LinkedCommit is set, and blocked/unblocked is derived from BlockedBy.
type Task struct {
	ID            object.ID         `json:"id" yaml:"id"`
	Subject       string            `json:"subject" yaml:"subject"`
	Description   *string           `json:"description,omitempty" yaml:"description,omitempty"`
	Estimate      *string           `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	BlockedBy     []object.ID       `json:"blockedBy,omitempty" yaml:"blocked_by,omitempty"`
	AffectedFiles []string          `json:"affectedFiles,omitempty" yaml:"affected_files,omitempty"`
	LinkedIssue   *object.ID        `json:"linkedIssue,omitempty" yaml:"linked_issue,omitempty"`
	LinkedCommit  *object.ID        `json:"linkedCommit,omitempty" yaml:"linked_commit,omitempty"`
	Author        identity.Identity `json:"author" yaml:"author"`
	CreatedAt     time.Time         `json:"createdAt" yaml:"created_at"`
}

// Done reports whether the task has a linked commit.
func (t *Task) Done() bool {
	return t.LinkedCommit != nil
}

// Blocked reports whether the task has any dependency edges.
func (t *Task) Blocked() bool {
	return len(t.BlockedBy) > 0
}

// Plan is the aggregate document produced by a fold. Author and CreatedAt
// are set by the creating operation and never change afterwards.
type Plan struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Status         Status              `json:"status"`
	Tasks          []Task              `json:"tasks"`
	RelatedIssues  []object.ID         `json:"relatedIssues,omitempty"`
	RelatedPatches []object.ID         `json:"relatedPatches,omitempty"`
	CriticalFiles  []string            `json:"criticalFiles,omitempty"`
	Labels         []string            `json:"labels,omitempty"`
	Assignees      []identity.Identity `json:"assignees,omitempty"`
	Thread         thread.Thread       `json:"thread"`
	Author         identity.Identity   `json:"author"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// Task returns the live task with the given id.
func (p *Plan) Task(id object.ID) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// UnblockedTasks returns the live tasks whose every BlockedBy entry names a
// done task. A task with no dependencies is trivially unblocked.
func (p *Plan) UnblockedTasks() []Task {
	done := make(map[object.ID]bool, len(p.Tasks))
	for i := range p.Tasks {
		if p.Tasks[i].Done() {
			done[p.Tasks[i].ID] = true
		}
	}
	var unblocked []Task
	for _, t := range p.Tasks {
		ready := true
		for _, b := range t.BlockedBy {
			if !done[b] {
				ready = false
				break
			}
		}
		if ready {
			unblocked = append(unblocked, t)
		}
	}
	return unblocked
}

// CompletionPercentage is the share of done tasks, 0 for an empty plan.
func (p *Plan) CompletionPercentage() float64 {
	if len(p.Tasks) == 0 {
		return 0
	}
	done := 0
	for i := range p.Tasks {
		if p.Tasks[i].Done() {
			done++
		}
	}
	return float64(done) / float64(len(p.Tasks)) * 100
}

// AllTasksComplete reports whether the plan has tasks and all are done.
func (p *Plan) AllTasksComplete() bool {
	if len(p.Tasks) == 0 {
		return false
	}
	for i := range p.Tasks {
		if !p.Tasks[i].Done() {
			return false
		}
	}
	return true
}

// Sorted-set helpers. Set fields are kept sorted so folds on different
// replicas produce structurally identical plans.

func insertID(set []object.ID, id object.ID) []object.ID {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= id })
	if i < len(set) && set[i] == id {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = id
	return set
}

func removeID(set []object.ID, id object.ID) []object.ID {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= id })
	if i < len(set) && set[i] == id {
		return append(set[:i], set[i+1:]...)
	}
	return set
}

func insertString(set []string, s string) []string {
	i := sort.SearchStrings(set, s)
	if i < len(set) && set[i] == s {
		return set
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = s
	return set
}

func removeString(set []string, s string) []string {
	i := sort.SearchStrings(set, s)
	if i < len(set) && set[i] == s {
		return append(set[:i], set[i+1:]...)
	}
	return set
}

func sortedIdentitySet(ids []identity.Identity) []identity.Identity {
	out := make([]identity.Identity, 0, len(ids))
	seen := make(map[identity.Identity]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedStringSet(ss []string) []string {
	out := make([]string, 0, len(ss))
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
