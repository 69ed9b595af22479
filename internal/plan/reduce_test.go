package plan

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/oplog"
)

const (
	author   = identity.Identity("did:key:z6MkAuthor")
	delegate = identity.Identity("did:key:z6MkDelegate")
	outsider = identity.Identity("did:key:z6MkOutsider")
)

func testOracle() Oracle {
	return DocOracle{Doc: &identity.Doc{Delegates: []identity.Identity{delegate}}}
}

// logBuilder appends operations with advancing timestamps and chained ids.
type logBuilder struct {
	t   *testing.T
	ops []oplog.Op
	ts  time.Time
}

func newLog(t *testing.T) *logBuilder {
	return &logBuilder{
		t:  t,
		ts: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *logBuilder) add(actor identity.Identity, act Action) object.ID {
	b.t.Helper()
	payload, err := EncodeAction(act)
	require.NoError(b.t, err)
	var prev object.ID
	if len(b.ops) > 0 {
		prev = b.ops[len(b.ops)-1].ID
	}
	op := oplog.NewOp(prev, actor, b.ts, payload)
	b.ts = b.ts.Add(time.Minute)
	b.ops = append(b.ops, op)
	return op.ID
}

func (b *logBuilder) addRaw(actor identity.Identity, payload string) object.ID {
	b.t.Helper()
	var prev object.ID
	if len(b.ops) > 0 {
		prev = b.ops[len(b.ops)-1].ID
	}
	op := oplog.NewOp(prev, actor, b.ts, []byte(payload))
	b.ts = b.ts.Add(time.Minute)
	b.ops = append(b.ops, op)
	return op.ID
}

func (b *logBuilder) reduce() (*Plan, []Outcome) {
	return Reduce(nil, b.ops, testOracle())
}

func strptr(s string) *string { return &s }

func TestReduceOpenInitializes(t *testing.T) {
	log := newLog(t)
	planID := log.add(author, Open{Title: "Ship v2", Description: "Everything for the v2 release."})
	p, outcomes := log.reduce()

	require.NotNil(t, p)
	assert.Equal(t, "Ship v2", p.Title)
	assert.Equal(t, "Everything for the v2 release.", p.Description)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, author, p.Author)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Applied())

	root, ok := p.Thread.Root()
	require.True(t, ok)
	assert.Equal(t, planID, root.ID)
	assert.Equal(t, p.Description, root.Body)
}

func TestReduceRejectsBeforeOpen(t *testing.T) {
	log := newLog(t)
	log.add(author, EditTitle{Title: "too early"})
	log.add(author, Open{Title: "Ship v2", Description: "d"})
	p, outcomes := log.reduce()

	require.NotNil(t, p)
	assert.Equal(t, "Ship v2", p.Title)
	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, ErrUninitializedPlan)
	assert.True(t, outcomes[1].Applied())
}

func TestReduceIsDeterministic(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	taskID := log.add(author, AddTask{Subject: "write docs"})
	log.add(delegate, SetLabels{Labels: []string{"b", "a", "b"}})
	log.add(author, LinkTaskCommit{TaskID: taskID, Commit: object.Derive([]byte("commit"))})

	p1, o1 := Reduce(nil, log.ops, testOracle())
	p2, o2 := Reduce(nil, log.ops, testOracle())
	assert.True(t, reflect.DeepEqual(p1, p2))
	assert.True(t, reflect.DeepEqual(o1, o2))
}

func TestReduceRejectionIsNonFatal(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(outsider, SetLabels{Labels: []string{"nope"}})
	log.add(author, EditTitle{Title: "after rejection"})
	p, outcomes := log.reduce()

	assert.Equal(t, "after rejection", p.Title)
	assert.Empty(t, p.Labels)
	require.Len(t, outcomes, 3)
	var unauthorized *UnauthorizedError
	assert.ErrorAs(t, outcomes[1].Err, &unauthorized)
	assert.True(t, outcomes[2].Applied())
}

func TestReduceMalformedPayload(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.addRaw(author, `{"type":"status","status":"no-such-status"}`)
	log.addRaw(author, `{"type":"wormhole"}`)
	log.addRaw(author, `not json at all`)
	p, outcomes := log.reduce()

	assert.Equal(t, StatusDraft, p.Status)
	require.Len(t, outcomes, 4)
	for _, out := range outcomes[1:] {
		var malformed *MalformedError
		assert.ErrorAs(t, out.Err, &malformed)
	}
}

func TestReduceLastWriterWins(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(author, EditTitle{Title: "first"})
	log.add(delegate, EditTitle{Title: "second"})
	log.add(author, SetStatus{Status: StatusApproved})
	log.add(delegate, SetStatus{Status: StatusInProgress})
	p, _ := log.reduce()

	assert.Equal(t, "second", p.Title)
	assert.Equal(t, StatusInProgress, p.Status)
}

func TestReduceRepeatedOpenRewrites(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(author, Open{Title: "t2", Description: "d2"})
	p, outcomes := log.reduce()

	assert.Equal(t, "t2", p.Title)
	assert.Equal(t, "d2", p.Description)
	assert.Equal(t, author, p.Author)
	assert.True(t, outcomes[1].Applied())

	root, _ := p.Thread.Root()
	assert.Equal(t, "d2", root.Body)
}

func TestReducePartialTaskEdit(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	taskID := log.add(author, AddTask{
		Subject:     "write docs",
		Description: strptr("user guide"),
		Estimate:    strptr("2d"),
	})
	log.add(author, EditTask{TaskID: taskID, Subject: strptr("write the docs")})
	p, _ := log.reduce()

	task, ok := p.Task(taskID)
	require.True(t, ok)
	assert.Equal(t, "write the docs", task.Subject)
	require.NotNil(t, task.Description)
	assert.Equal(t, "user guide", *task.Description)
	require.NotNil(t, task.Estimate)
	assert.Equal(t, "2d", *task.Estimate)
}

func TestReduceEditUnknownTask(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	ghost := object.Derive([]byte("ghost"))
	log.add(author, EditTask{TaskID: ghost, Subject: strptr("x")})
	_, outcomes := log.reduce()

	var unknown *UnknownTaskError
	require.ErrorAs(t, outcomes[1].Err, &unknown)
	assert.Equal(t, ghost, unknown.ID)
}

func TestReduceTaskStatusIsNoOp(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	taskID := log.add(author, AddTask{Subject: "s"})
	log.add(author, SetTaskStatus{TaskID: taskID, Status: "anything goes"})
	p, outcomes := log.reduce()

	assert.True(t, outcomes[2].Applied())
	task, _ := p.Task(taskID)
	assert.False(t, task.Done())
}

func TestReduceLinkCommitMarksDone(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	taskID := log.add(author, AddTask{Subject: "s"})
	first := object.Derive([]byte("c1"))
	second := object.Derive([]byte("c2"))
	log.add(author, LinkTaskCommit{TaskID: taskID, Commit: first})
	log.add(author, LinkTaskCommit{TaskID: taskID, Commit: second})
	p, _ := log.reduce()

	task, _ := p.Task(taskID)
	assert.True(t, task.Done())
	assert.Equal(t, second, *task.LinkedCommit)
}

func TestReduceBlockedByReplacesWholesale(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	t3 := log.add(author, AddTask{Subject: "three"})
	log.add(author, SetTaskBlockedBy{TaskID: t3, BlockedBy: []object.ID{t1}})
	log.add(author, SetTaskBlockedBy{TaskID: t3, BlockedBy: []object.ID{t2}})
	p, _ := log.reduce()

	task, _ := p.Task(t3)
	assert.Equal(t, []object.ID{t2}, task.BlockedBy)
}

func TestReduceBlockedByUnknownDep(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	ghost := object.Derive([]byte("ghost"))
	log.add(author, SetTaskBlockedBy{TaskID: t1, BlockedBy: []object.ID{ghost}})
	_, outcomes := log.reduce()

	var unknown *UnknownTaskError
	require.ErrorAs(t, outcomes[2].Err, &unknown)
	assert.Equal(t, ghost, unknown.ID)
}

func TestReduceBlockedByRemovedTaskRejected(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	log.add(author, RemoveTask{TaskID: t1})
	log.add(author, SetTaskBlockedBy{TaskID: t2, BlockedBy: []object.ID{t1}})
	p, outcomes := log.reduce()

	var unknown *UnknownTaskError
	require.ErrorAs(t, outcomes[4].Err, &unknown)
	task, _ := p.Task(t2)
	assert.Empty(t, task.BlockedBy)
}

func TestReduceCycleRejected(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	t3 := log.add(author, AddTask{Subject: "three"})
	log.add(author, SetTaskBlockedBy{TaskID: t2, BlockedBy: []object.ID{t1}})
	log.add(author, SetTaskBlockedBy{TaskID: t3, BlockedBy: []object.ID{t2}})

	// t1 -> t3 closes the loop t1 -> t3 -> t2 -> t1.
	log.add(author, SetTaskBlockedBy{TaskID: t1, BlockedBy: []object.ID{t3}})
	// Self-dependency is the smallest cycle.
	log.add(author, SetTaskBlockedBy{TaskID: t1, BlockedBy: []object.ID{t1}})
	p, outcomes := log.reduce()

	var cyclic *CyclicDependencyError
	require.ErrorAs(t, outcomes[6].Err, &cyclic)
	assert.Equal(t, t1, cyclic.TaskID)
	require.ErrorAs(t, outcomes[7].Err, &cyclic)

	task, _ := p.Task(t1)
	assert.Empty(t, task.BlockedBy)
}

func TestReduceCycleCheckAllowsRewrite(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	log.add(author, SetTaskBlockedBy{TaskID: t2, BlockedBy: []object.ID{t1}})

	// Replacing t2's deps drops the old edge, so t2 -> t1 becoming
	// t2 -> nothing plus t1 -> nothing is fine; and flipping the edge
	// direction in one update must consider the replacement, not the
	// union.
	log.add(author, SetTaskBlockedBy{TaskID: t2, BlockedBy: nil})
	log.add(author, SetTaskBlockedBy{TaskID: t1, BlockedBy: []object.ID{t2}})
	p, outcomes := log.reduce()

	for _, out := range outcomes {
		assert.True(t, out.Applied(), "op %s: %v", out.Op.Short(), out.Err)
	}
	task, _ := p.Task(t1)
	assert.Equal(t, []object.ID{t2}, task.BlockedBy)
}

func TestReduceReorder(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	t3 := log.add(author, AddTask{Subject: "three"})
	log.add(author, ReorderTasks{Order: []object.ID{t3, t1, t2}})
	p, _ := log.reduce()

	require.Len(t, p.Tasks, 3)
	assert.Equal(t, []object.ID{t3, t1, t2}, taskIDs(p))
}

func TestReduceReorderOmittedKeepPriorOrder(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	t3 := log.add(author, AddTask{Subject: "three"})
	t4 := log.add(author, AddTask{Subject: "four"})
	log.add(author, ReorderTasks{Order: []object.ID{t3}})
	p, _ := log.reduce()

	assert.Equal(t, []object.ID{t3, t1, t2, t4}, taskIDs(p))
}

func TestReduceReorderInvalid(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	ghost := object.Derive([]byte("ghost"))
	log.add(author, ReorderTasks{Order: []object.ID{ghost}})
	log.add(author, ReorderTasks{Order: []object.ID{t1, t1}})
	p, outcomes := log.reduce()

	var invalid *InvalidReorderError
	require.ErrorAs(t, outcomes[2].Err, &invalid)
	assert.Equal(t, ghost, invalid.ID)
	require.ErrorAs(t, outcomes[3].Err, &invalid)
	assert.Equal(t, t1, invalid.ID)
	assert.Equal(t, []object.ID{t1}, taskIDs(p))
}

func TestReduceRemoveTaskLeavesDanglingBlocker(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	t1 := log.add(author, AddTask{Subject: "one"})
	t2 := log.add(author, AddTask{Subject: "two"})
	log.add(author, SetTaskBlockedBy{TaskID: t2, BlockedBy: []object.ID{t1}})
	log.add(author, RemoveTask{TaskID: t1})
	log.add(author, RemoveTask{TaskID: t1})
	p, outcomes := log.reduce()

	var unknown *UnknownTaskError
	require.ErrorAs(t, outcomes[5].Err, &unknown)

	// The dangling reference stays, so t2 can never become unblocked.
	task, _ := p.Task(t2)
	assert.Equal(t, []object.ID{t1}, task.BlockedBy)
	for _, u := range p.UnblockedTasks() {
		assert.NotEqual(t, t2, u.ID)
	}
}

func TestReduceLinkSets(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	issue := object.Derive([]byte("issue"))
	patch := object.Derive([]byte("patch"))
	log.add(author, LinkIssue{IssueID: issue})
	log.add(author, LinkIssue{IssueID: issue})
	log.add(author, LinkPatch{PatchID: patch})
	log.add(author, AddCriticalFile{Path: "internal/core/fold.go"})
	log.add(author, AddCriticalFile{Path: "api/schema.json"})
	// Removing an absent member applies as a no-op.
	log.add(author, UnlinkPatch{PatchID: object.Derive([]byte("other"))})
	p, outcomes := log.reduce()

	for _, out := range outcomes {
		assert.True(t, out.Applied())
	}
	assert.Equal(t, []object.ID{issue}, p.RelatedIssues)
	assert.Equal(t, []object.ID{patch}, p.RelatedPatches)
	assert.Equal(t, []string{"api/schema.json", "internal/core/fold.go"}, p.CriticalFiles)

	log.add(author, UnlinkIssue{IssueID: issue})
	log.add(author, RemoveCriticalFile{Path: "api/schema.json"})
	p, _ = log.reduce()
	assert.Empty(t, p.RelatedIssues)
	assert.Equal(t, []string{"internal/core/fold.go"}, p.CriticalFiles)
}

func TestReduceLinkTaskIssue(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	taskID := log.add(author, AddTask{Subject: "s"})
	issue := object.Derive([]byte("issue"))
	log.add(author, LinkTaskIssue{TaskID: taskID, IssueID: issue})
	p, _ := log.reduce()

	task, _ := p.Task(taskID)
	require.NotNil(t, task.LinkedIssue)
	assert.Equal(t, issue, *task.LinkedIssue)
}

func TestReduceLabelsAndAssignees(t *testing.T) {
	log := newLog(t)
	log.add(author, Open{Title: "t", Description: "d"})
	log.add(delegate, SetLabels{Labels: []string{"infra", "bug", "infra"}})
	log.add(delegate, SetAssignees{Assignees: []identity.Identity{outsider, author, outsider}})
	p, _ := log.reduce()

	assert.Equal(t, []string{"bug", "infra"}, p.Labels)
	assert.Equal(t, []identity.Identity{author, outsider}, p.Assignees)

	// A later set replaces wholesale, it does not merge.
	log.add(delegate, SetLabels{Labels: []string{"docs"}})
	p, _ = log.reduce()
	assert.Equal(t, []string{"docs"}, p.Labels)
}

func taskIDs(p *Plan) []object.ID {
	ids := make([]object.ID, len(p.Tasks))
	for i := range p.Tasks {
		ids[i] = p.Tasks[i].ID
	}
	return ids
}
