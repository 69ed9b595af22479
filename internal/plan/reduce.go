package plan

import (
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/oplog"
	"github.com/planweave/planweave/internal/thread"
)

// Reduce folds an ordered operation log into a plan. The same log and
// oracle always produce the same plan and the same outcomes, regardless of
// where or when the fold runs.
//
// Rejections are per-operation and never abort the fold: a rejected
// operation contributes its outcome and leaves the state untouched. The
// returned plan is nil when no open operation was applied.
func Reduce(initial *Plan, ops []oplog.Op, oracle Oracle) (*Plan, []Outcome) {
	p := initial
	outcomes := make([]Outcome, 0, len(ops))
	for _, op := range ops {
		act, err := DecodeAction([]byte(op.Payload))
		if err != nil {
			outcomes = append(outcomes, Outcome{Op: op.ID, Err: &MalformedError{Err: err}})
			continue
		}
		out := Outcome{Op: op.ID, Action: act.Type()}
		switch {
		case p == nil:
			open, ok := act.(Open)
			if !ok {
				out.Err = ErrUninitializedPlan
				break
			}
			p = newPlan(open, op)
		case !oracle.Authorized(op.Author, classOf(act), p):
			out.Err = &UnauthorizedError{Actor: op.Author, Action: act.Type()}
		default:
			out.Err = p.apply(act, op)
		}
		outcomes = append(outcomes, out)
	}
	return p, outcomes
}

func newPlan(a Open, op oplog.Op) *Plan {
	p := &Plan{
		Title:       a.Title,
		Description: a.Description,
		Status:      StatusDraft,
		Thread:      thread.New(rootComment(a, op)),
		Author:      op.Author,
		CreatedAt:   op.Timestamp,
	}
	return p
}

func rootComment(a Open, op oplog.Op) thread.Comment {
	return thread.Comment{
		ID:        op.ID,
		Author:    op.Author,
		Body:      a.Description,
		Embeds:    a.Embeds,
		CreatedAt: op.Timestamp,
	}
}

// setDescription keeps the thread root, which carries the description as
// its body, in step with the plan description.
func (p *Plan) setDescription(desc string, embeds []thread.Embed, op oplog.Op) {
	p.Description = desc
	if root, ok := p.Thread.Root(); ok {
		_ = p.Thread.Edit(root.ID, desc, embeds, op.Timestamp)
	}
}

func (p *Plan) apply(act Action, op oplog.Op) error {
	switch a := act.(type) {
	case Open:
		// A repeated open rewrites title and description but keeps the
		// original author and creation time.
		p.Title = a.Title
		p.setDescription(a.Description, a.Embeds, op)
	case EditTitle:
		p.Title = a.Title
	case EditDescription:
		p.setDescription(a.Description, a.Embeds, op)
	case SetStatus:
		p.Status = a.Status
	case AddTask:
		p.Tasks = append(p.Tasks, Task{
			ID:            op.ID,
			Subject:       a.Subject,
			Description:   a.Description,
			Estimate:      a.Estimate,
			AffectedFiles: a.AffectedFiles,
			Author:        op.Author,
			CreatedAt:     op.Timestamp,
		})
	case EditTask:
		t, ok := p.Task(a.TaskID)
		if !ok {
			return &UnknownTaskError{ID: a.TaskID}
		}
		if a.Subject != nil {
			t.Subject = *a.Subject
		}
		if a.Description != nil {
			t.Description = a.Description
		}
		if a.Estimate != nil {
			t.Estimate = a.Estimate
		}
		if a.AffectedFiles != nil {
			t.AffectedFiles = *a.AffectedFiles
		}
	case SetTaskStatus:
		// Accepted and ignored. Task progress is derived from linked
		// commits, so there is nothing to record and nothing to
		// validate.
	case LinkTaskCommit:
		t, ok := p.Task(a.TaskID)
		if !ok {
			return &UnknownTaskError{ID: a.TaskID}
		}
		commit := a.Commit
		t.LinkedCommit = &commit
	case SetTaskBlockedBy:
		if _, ok := p.Task(a.TaskID); !ok {
			return &UnknownTaskError{ID: a.TaskID}
		}
		for _, dep := range a.BlockedBy {
			if _, ok := p.Task(dep); !ok {
				return &UnknownTaskError{ID: dep}
			}
		}
		if wouldCycle(p.Tasks, a.TaskID, a.BlockedBy) {
			return &CyclicDependencyError{TaskID: a.TaskID}
		}
		t, _ := p.Task(a.TaskID)
		t.BlockedBy = append([]object.ID(nil), a.BlockedBy...)
	case ReorderTasks:
		return p.reorder(a.Order)
	case RemoveTask:
		idx := -1
		for i := range p.Tasks {
			if p.Tasks[i].ID == a.TaskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &UnknownTaskError{ID: a.TaskID}
		}
		p.Tasks = append(p.Tasks[:idx], p.Tasks[idx+1:]...)
	case LinkTaskIssue:
		t, ok := p.Task(a.TaskID)
		if !ok {
			return &UnknownTaskError{ID: a.TaskID}
		}
		issue := a.IssueID
		t.LinkedIssue = &issue
	case LinkIssue:
		p.RelatedIssues = insertID(p.RelatedIssues, a.IssueID)
	case UnlinkIssue:
		p.RelatedIssues = removeID(p.RelatedIssues, a.IssueID)
	case LinkPatch:
		p.RelatedPatches = insertID(p.RelatedPatches, a.PatchID)
	case UnlinkPatch:
		p.RelatedPatches = removeID(p.RelatedPatches, a.PatchID)
	case AddCriticalFile:
		p.CriticalFiles = insertString(p.CriticalFiles, a.Path)
	case RemoveCriticalFile:
		p.CriticalFiles = removeString(p.CriticalFiles, a.Path)
	case Comment:
		c := thread.Comment{
			ID:        op.ID,
			Author:    op.Author,
			Body:      a.Body,
			ReplyTo:   a.ReplyTo,
			Embeds:    a.Embeds,
			CreatedAt: op.Timestamp,
		}
		if err := p.Thread.Append(c); err != nil {
			return &UnknownCommentError{ID: *a.ReplyTo}
		}
	case EditComment:
		c, ok := p.Thread.Get(a.CommentID)
		if !ok {
			return &UnknownCommentError{ID: a.CommentID}
		}
		if c.Author != op.Author {
			return &UnauthorizedError{Actor: op.Author, Action: act.Type()}
		}
		_ = p.Thread.Edit(a.CommentID, a.Body, a.Embeds, op.Timestamp)
	case RedactComment:
		c, ok := p.Thread.Get(a.CommentID)
		if !ok {
			return &UnknownCommentError{ID: a.CommentID}
		}
		if c.Author != op.Author {
			return &UnauthorizedError{Actor: op.Author, Action: act.Type()}
		}
		_ = p.Thread.Redact(a.CommentID)
	case SetLabels:
		p.Labels = sortedStringSet(a.Labels)
	case SetAssignees:
		p.Assignees = sortedIdentitySet(a.Assignees)
	}
	return nil
}

// reorder applies a full order overwrite: listed live tasks first in the
// given order, then the omitted live tasks in their prior relative order.
func (p *Plan) reorder(order []object.ID) error {
	seen := make(map[object.ID]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return &InvalidReorderError{ID: id}
		}
		seen[id] = true
		if _, ok := p.Task(id); !ok {
			return &InvalidReorderError{ID: id}
		}
	}
	reordered := make([]Task, 0, len(p.Tasks))
	for _, id := range order {
		t, _ := p.Task(id)
		reordered = append(reordered, *t)
	}
	for _, t := range p.Tasks {
		if !seen[t.ID] {
			reordered = append(reordered, t)
		}
	}
	p.Tasks = reordered
	return nil
}
