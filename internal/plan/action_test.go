package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
)

func TestActionRoundTrip(t *testing.T) {
	taskID := object.Derive([]byte("task"))
	for _, act := range []Action{
		Open{Title: "t", Description: "d"},
		EditTitle{Title: "t2"},
		EditDescription{Description: "d2"},
		SetStatus{Status: StatusInProgress},
		AddTask{Subject: "s", Estimate: strptr("1d"), AffectedFiles: []string{"a.go"}},
		EditTask{TaskID: taskID, Subject: strptr("s2")},
		SetTaskStatus{TaskID: taskID, Status: "doing"},
		LinkTaskCommit{TaskID: taskID, Commit: object.Derive([]byte("c"))},
		SetTaskBlockedBy{TaskID: taskID, BlockedBy: []object.ID{object.Derive([]byte("dep"))}},
		ReorderTasks{Order: []object.ID{taskID}},
		RemoveTask{TaskID: taskID},
		LinkTaskIssue{TaskID: taskID, IssueID: object.Derive([]byte("i"))},
		LinkIssue{IssueID: object.Derive([]byte("i"))},
		UnlinkIssue{IssueID: object.Derive([]byte("i"))},
		LinkPatch{PatchID: object.Derive([]byte("p"))},
		UnlinkPatch{PatchID: object.Derive([]byte("p"))},
		AddCriticalFile{Path: "x.go"},
		RemoveCriticalFile{Path: "x.go"},
		Comment{Body: "hi"},
		EditComment{CommentID: taskID, Body: "hi2"},
		RedactComment{CommentID: taskID},
		SetLabels{Labels: []string{"a"}},
		SetAssignees{Assignees: []identity.Identity{author}},
	} {
		data, err := EncodeAction(act)
		require.NoError(t, err, act.Type())
		decoded, err := DecodeAction(data)
		require.NoError(t, err, act.Type())
		assert.Equal(t, act, decoded, act.Type())
	}
}

func TestEncodeActionIsDeterministic(t *testing.T) {
	act := SetTaskBlockedBy{
		TaskID:    object.Derive([]byte("task")),
		BlockedBy: []object.ID{object.Derive([]byte("a")), object.Derive([]byte("b"))},
	}
	first, err := EncodeAction(act)
	require.NoError(t, err)
	second, err := EncodeAction(act)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncodeActionTag(t *testing.T) {
	data, err := EncodeAction(LinkTaskCommit{
		TaskID: object.Derive([]byte("task")),
		Commit: object.Derive([]byte("c")),
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "task.linkCommit", fields["type"])
	assert.Contains(t, fields, "taskId")
	assert.Contains(t, fields, "commit")
}

func TestDecodeActionUnknownType(t *testing.T) {
	_, err := DecodeAction([]byte(`{"type":"wormhole"}`))
	assert.ErrorContains(t, err, "unknown action type")
}

func TestDecodeActionInvalidStatus(t *testing.T) {
	_, err := DecodeAction([]byte(`{"type":"status","status":"paused"}`))
	assert.Error(t, err)
}

func TestDecodeEditTaskOmittedFields(t *testing.T) {
	taskID := object.Derive([]byte("task"))
	data := []byte(`{"type":"task.edit","taskId":"` + string(taskID) + `","subject":"s2"}`)
	act, err := DecodeAction(data)
	require.NoError(t, err)

	edit, ok := act.(EditTask)
	require.True(t, ok)
	require.NotNil(t, edit.Subject)
	assert.Equal(t, "s2", *edit.Subject)
	assert.Nil(t, edit.Description)
	assert.Nil(t, edit.Estimate)
	assert.Nil(t, edit.AffectedFiles)
}
