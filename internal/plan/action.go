package plan

import (
	"encoding/json"
	"fmt"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/thread"
)

// Action type tags as they appear on the wire.
const (
	TypeOpen               = "open"
	TypeEditTitle          = "edit.title"
	TypeEditDescription    = "edit.description"
	TypeSetStatus          = "status"
	TypeAddTask            = "task.add"
	TypeEditTask           = "task.edit"
	TypeSetTaskStatus      = "task.status"
	TypeLinkTaskCommit     = "task.linkCommit"
	TypeSetTaskBlockedBy   = "task.blockedBy"
	TypeReorderTasks       = "task.reorder"
	TypeRemoveTask         = "task.remove"
	TypeLinkTaskIssue      = "task.linkIssue"
	TypeLinkIssue          = "link.issue"
	TypeUnlinkIssue        = "unlink.issue"
	TypeLinkPatch          = "link.patch"
	TypeUnlinkPatch        = "unlink.patch"
	TypeAddCriticalFile    = "criticalFile.add"
	TypeRemoveCriticalFile = "criticalFile.remove"
	TypeComment            = "comment"
	TypeEditComment        = "comment.edit"
	TypeRedactComment      = "comment.redact"
	TypeSetLabels          = "label"
	TypeSetAssignees       = "assign"
)

// Action is one payload in the operation log. Implementations are plain
// structs that marshal to a JSON object; the "type" discriminator is added
// and stripped by EncodeAction/DecodeAction.
type Action interface {
	Type() string
}

// Open creates the plan, or rewrites title and description on a plan that
// already exists.
type Open struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Embeds      []thread.Embed `json:"embeds,omitempty"`
}

func (Open) Type() string { return TypeOpen }

type EditTitle struct {
	Title string `json:"title"`
}

func (EditTitle) Type() string { return TypeEditTitle }

type EditDescription struct {
	Description string         `json:"description"`
	Embeds      []thread.Embed `json:"embeds,omitempty"`
}

func (EditDescription) Type() string { return TypeEditDescription }

type SetStatus struct {
	Status Status `json:"status"`
}

func (SetStatus) Type() string { return TypeSetStatus }

type AddTask struct {
	Subject       string   `json:"subject"`
	Description   *string  `json:"description,omitempty"`
	Estimate      *string  `json:"estimate,omitempty"`
	AffectedFiles []string `json:"affectedFiles,omitempty"`
}

func (AddTask) Type() string { return TypeAddTask }

// EditTask is a partial edit: nil fields leave the current value in place.
// There is no way to reset a field to empty once set.
type EditTask struct {
	TaskID        object.ID `json:"taskId"`
	Subject       *string   `json:"subject,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Estimate      *string   `json:"estimate,omitempty"`
	AffectedFiles *[]string `json:"affectedFiles,omitempty"`
}

func (EditTask) Type() string { return TypeEditTask }

// SetTaskStatus is accepted for compatibility but applies no state change;
// task progress is carried entirely by linked commits.
type SetTaskStatus struct {
	TaskID object.ID `json:"taskId"`
	Status string    `json:"status"`
}

func (SetTaskStatus) Type() string { return TypeSetTaskStatus }

type LinkTaskCommit struct {
	TaskID object.ID `json:"taskId"`
	Commit object.ID `json:"commit"`
}

func (LinkTaskCommit) Type() string { return TypeLinkTaskCommit }

// SetTaskBlockedBy replaces the task's dependency list wholesale.
type SetTaskBlockedBy struct {
	TaskID    object.ID   `json:"taskId"`
	BlockedBy []object.ID `json:"blockedBy"`
}

func (SetTaskBlockedBy) Type() string { return TypeSetTaskBlockedBy }

// ReorderTasks overwrites the task order. Live tasks omitted from Order are
// appended after the listed ones, keeping their prior relative order.
type ReorderTasks struct {
	Order []object.ID `json:"order"`
}

func (ReorderTasks) Type() string { return TypeReorderTasks }

type RemoveTask struct {
	TaskID object.ID `json:"taskId"`
}

func (RemoveTask) Type() string { return TypeRemoveTask }

type LinkTaskIssue struct {
	TaskID  object.ID `json:"taskId"`
	IssueID object.ID `json:"issueId"`
}

func (LinkTaskIssue) Type() string { return TypeLinkTaskIssue }

type LinkIssue struct {
	IssueID object.ID `json:"issueId"`
}

func (LinkIssue) Type() string { return TypeLinkIssue }

type UnlinkIssue struct {
	IssueID object.ID `json:"issueId"`
}

func (UnlinkIssue) Type() string { return TypeUnlinkIssue }

type LinkPatch struct {
	PatchID object.ID `json:"patchId"`
}

func (LinkPatch) Type() string { return TypeLinkPatch }

type UnlinkPatch struct {
	PatchID object.ID `json:"patchId"`
}

func (UnlinkPatch) Type() string { return TypeUnlinkPatch }

type AddCriticalFile struct {
	Path string `json:"path"`
}

func (AddCriticalFile) Type() string { return TypeAddCriticalFile }

type RemoveCriticalFile struct {
	Path string `json:"path"`
}

func (RemoveCriticalFile) Type() string { return TypeRemoveCriticalFile }

type Comment struct {
	Body    string         `json:"body"`
	ReplyTo *object.ID     `json:"replyTo,omitempty"`
	Embeds  []thread.Embed `json:"embeds,omitempty"`
}

func (Comment) Type() string { return TypeComment }

type EditComment struct {
	CommentID object.ID      `json:"commentId"`
	Body      string         `json:"body"`
	Embeds    []thread.Embed `json:"embeds,omitempty"`
}

func (EditComment) Type() string { return TypeEditComment }

type RedactComment struct {
	CommentID object.ID `json:"commentId"`
}

func (RedactComment) Type() string { return TypeRedactComment }

// SetLabels replaces the plan's label set wholesale.
type SetLabels struct {
	Labels []string `json:"labels"`
}

func (SetLabels) Type() string { return TypeSetLabels }

// SetAssignees replaces the plan's assignee set wholesale.
type SetAssignees struct {
	Assignees []identity.Identity `json:"assignees"`
}

func (SetAssignees) Type() string { return TypeSetAssignees }

// EncodeAction marshals an action with its "type" discriminator. Map
// marshaling sorts keys, so equal actions encode to identical bytes.
func EncodeAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	tag, err := json.Marshal(a.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// DecodeAction parses an action payload by its "type" discriminator.
func DecodeAction(data []byte) (Action, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	var (
		act Action
		err error
	)
	switch env.Type {
	case TypeOpen:
		act, err = decodeAs[Open](data)
	case TypeEditTitle:
		act, err = decodeAs[EditTitle](data)
	case TypeEditDescription:
		act, err = decodeAs[EditDescription](data)
	case TypeSetStatus:
		var a SetStatus
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		status, err := ParseStatus(string(a.Status))
		if err != nil {
			return nil, err
		}
		a.Status = status
		return a, nil
	case TypeAddTask:
		act, err = decodeAs[AddTask](data)
	case TypeEditTask:
		act, err = decodeAs[EditTask](data)
	case TypeSetTaskStatus:
		act, err = decodeAs[SetTaskStatus](data)
	case TypeLinkTaskCommit:
		act, err = decodeAs[LinkTaskCommit](data)
	case TypeSetTaskBlockedBy:
		act, err = decodeAs[SetTaskBlockedBy](data)
	case TypeReorderTasks:
		act, err = decodeAs[ReorderTasks](data)
	case TypeRemoveTask:
		act, err = decodeAs[RemoveTask](data)
	case TypeLinkTaskIssue:
		act, err = decodeAs[LinkTaskIssue](data)
	case TypeLinkIssue:
		act, err = decodeAs[LinkIssue](data)
	case TypeUnlinkIssue:
		act, err = decodeAs[UnlinkIssue](data)
	case TypeLinkPatch:
		act, err = decodeAs[LinkPatch](data)
	case TypeUnlinkPatch:
		act, err = decodeAs[UnlinkPatch](data)
	case TypeAddCriticalFile:
		act, err = decodeAs[AddCriticalFile](data)
	case TypeRemoveCriticalFile:
		act, err = decodeAs[RemoveCriticalFile](data)
	case TypeComment:
		act, err = decodeAs[Comment](data)
	case TypeEditComment:
		act, err = decodeAs[EditComment](data)
	case TypeRedactComment:
		act, err = decodeAs[RedactComment](data)
	case TypeSetLabels:
		act, err = decodeAs[SetLabels](data)
	case TypeSetAssignees:
		act, err = decodeAs[SetAssignees](data)
	default:
		return nil, fmt.Errorf("unknown action type: %s", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	return act, nil
}

func decodeAs[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}
