package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/oplog"
	"github.com/planweave/planweave/pkg/cerr"
	"github.com/planweave/planweave/pkg/storage"
)

func newRepo(t *testing.T) *YAMLRepository {
	t.Helper()
	s, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return NewYAMLRepository(s)
}

func TestCreateAppendList(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	root := oplog.NewOp("", "did:key:alice", time.Unix(1000, 0), []byte(`{"type":"open","title":"t","description":"d"}`))
	require.NoError(t, repo.Create(ctx, root))

	next := oplog.NewOp(root.ID, "did:key:alice", time.Unix(2000, 0), []byte(`{"type":"status","status":"approved"}`))
	require.NoError(t, repo.Append(ctx, root.ID, next))

	ops, err := repo.List(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, root.ID, ops[0].ID)
	assert.Equal(t, next.ID, ops[1].ID)
	assert.Equal(t, root.Payload, ops[0].Payload)
}

func TestCreateTwiceFails(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	root := oplog.NewOp("", "did:key:alice", time.Unix(1000, 0), []byte(`{"type":"open"}`))
	require.NoError(t, repo.Create(ctx, root))
	err := repo.Create(ctx, root)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestListUnknownPlan(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.List(ctx, "deadbeef00000000000000000000000000000000000000000000000000000000")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestPlans(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	a := oplog.NewOp("", "did:key:alice", time.Unix(1000, 0), []byte(`{"type":"open","title":"a"}`))
	b := oplog.NewOp("", "did:key:bob", time.Unix(2000, 0), []byte(`{"type":"open","title":"b"}`))
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	ids, err := repo.Plans(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []object.ID{a.ID, b.ID}, ids)
}
