package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/object"
)

func TestAnyoneMayComment(t *testing.T) {
	log := newLog(t)
	root := log.add(author, Open{Title: "t", Description: "d"})
	commentID := log.add(outsider, Comment{Body: "looks good", ReplyTo: &root})
	p, outcomes := log.reduce()

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[1].Applied())
	c, ok := p.Thread.Get(commentID)
	require.True(t, ok)
	assert.Equal(t, outsider, c.Author)
	assert.Equal(t, &root, c.ReplyTo)
}

func TestCommentUnknownReplyTo(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	ghost := object.Derive([]byte("ghost"))
	log.add(outsider, Comment{Body: "where am I", ReplyTo: &ghost})
	_, outcomes := log.reduce()

	var unknown *UnknownCommentError
	require.ErrorAs(t, outcomes[1].Err, &unknown)
	assert.Equal(t, ghost, unknown.ID)
}

func TestOutsiderMayNotEditPlan(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(outsider, EditTitle{Title: "hijacked"})
	log.add(outsider, AddTask{Subject: "sneaky"})
	log.add(outsider, AddCriticalFile{Path: "x"})
	p, outcomes := log.reduce()

	for _, out := range outcomes[1:] {
		var unauthorized *UnauthorizedError
		assert.ErrorAs(t, out.Err, &unauthorized)
	}
	assert.Equal(t, "t", p.Title)
	assert.Empty(t, p.Tasks)
}

func TestDelegateMayEditPlan(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(delegate, EditTitle{Title: "refined"})
	log.add(delegate, AddTask{Subject: "review"})
	p, outcomes := log.reduce()

	for _, out := range outcomes {
		assert.True(t, out.Applied())
	}
	assert.Equal(t, "refined", p.Title)
	require.Len(t, p.Tasks, 1)
}

func TestLabelAndAssignAreDelegateOnly(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(author, SetLabels{Labels: []string{"urgent"}})
	log.add(author, SetAssignees{Assignees: nil})
	log.add(delegate, SetLabels{Labels: []string{"urgent"}})
	p, outcomes := log.reduce()

	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, outcomes[1].Err, &unauthorized)
	assert.ErrorAs(t, outcomes[2].Err, &unauthorized)
	assert.True(t, outcomes[3].Applied())
	assert.Equal(t, []string{"urgent"}, p.Labels)
}

func TestCommentEditIsAuthorOnly(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	commentID := log.add(outsider, Comment{Body: "v1"})

	// Not even a delegate may edit someone else's comment.
	log.add(delegate, EditComment{CommentID: commentID, Body: "defaced"})
	log.add(outsider, EditComment{CommentID: commentID, Body: "v2"})
	p, outcomes := log.reduce()

	var unauthorized *UnauthorizedError
	require.ErrorAs(t, outcomes[2].Err, &unauthorized)
	assert.True(t, outcomes[3].Applied())

	c, _ := p.Thread.Get(commentID)
	assert.Equal(t, "v2", c.Body)
	assert.NotNil(t, c.EditedAt)
}

func TestCommentRedactIsAuthorOnly(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	commentID := log.add(outsider, Comment{Body: "oops"})
	log.add(delegate, RedactComment{CommentID: commentID})
	log.add(outsider, RedactComment{CommentID: commentID})
	p, outcomes := log.reduce()

	var unauthorized *UnauthorizedError
	require.ErrorAs(t, outcomes[2].Err, &unauthorized)
	assert.True(t, outcomes[3].Applied())

	_, ok := p.Thread.Get(commentID)
	assert.False(t, ok)
	assert.Contains(t, p.Thread.Redacted, commentID)
}

func TestEditRedactedCommentIsUnknown(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	commentID := log.add(outsider, Comment{Body: "oops"})
	log.add(outsider, RedactComment{CommentID: commentID})
	log.add(outsider, EditComment{CommentID: commentID, Body: "resurrected"})
	_, outcomes := log.reduce()

	var unknown *UnknownCommentError
	require.ErrorAs(t, outcomes[3].Err, &unknown)
	assert.Equal(t, commentID, unknown.ID)
}
