package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/planweave/planweave/internal/event"
	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/oplog"
	"github.com/planweave/planweave/pkg/cerr"
)

// Service ties the operation log, the identity document and the reducer
// together. Mutations are staged: the new operation is folded over the
// stored log first, and only an applied outcome is persisted, so the log
// never accumulates operations this replica already knows are rejected.
// Operations arriving from other replicas still go through the fold and may
// be rejected there.
type Service struct {
	ops        oplog.Repository
	identities identity.Repository
	bus        *event.Bus
	now        func() time.Time
}

func NewService(ops oplog.Repository, identities identity.Repository, bus *event.Bus) *Service {
	return &Service{
		ops:        ops,
		identities: identities,
		bus:        bus,
		now:        time.Now,
	}
}

// Item is a plan together with its id and the outcomes of its fold.
type Item struct {
	ID       object.ID `json:"id"`
	Plan     *Plan     `json:"plan"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

func (s *Service) oracle(ctx context.Context) (Oracle, error) {
	doc, err := s.identities.Get(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to load identity document", err)
	}
	return DocOracle{Doc: doc}, nil
}

// Open creates a new plan. The plan's id is the id of its root operation.
func (s *Service) Open(ctx context.Context, actor identity.Identity, act Open) (*Item, error) {
	oracle, err := s.oracle(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeAction(act)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "failed to encode action", err)
	}
	op := oplog.NewOp("", actor, s.now(), payload)
	p, outcomes := Reduce(nil, []oplog.Op{op}, oracle)
	if last := outcomes[len(outcomes)-1]; last.Err != nil {
		return nil, rejectionError(last.Err)
	}
	if err := s.ops.Create(ctx, op); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.PublishNew(event.TypePlanCreated, op.ID)
	}
	return &Item{ID: op.ID, Plan: p, Outcomes: outcomes}, nil
}

// Apply stages one action against the plan matching prefix and persists it
// if the fold accepts it. The returned item reflects the post-apply state.
func (s *Service) Apply(ctx context.Context, prefix string, actor identity.Identity, act Action) (*Item, error) {
	oracle, err := s.oracle(ctx)
	if err != nil {
		return nil, err
	}
	planID, err := s.Resolve(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ops, err := s.ops.List(ctx, planID)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeAction(act)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "failed to encode action", err)
	}
	prev := object.ID("")
	if len(ops) > 0 {
		prev = ops[len(ops)-1].ID
	}
	op := oplog.NewOp(prev, actor, s.now(), payload)
	staged := append(append([]oplog.Op(nil), ops...), op)
	p, outcomes := Reduce(nil, staged, oracle)
	if last := outcomes[len(outcomes)-1]; last.Err != nil {
		return nil, rejectionError(last.Err)
	}
	if err := s.ops.Append(ctx, planID, op); err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.PublishNew(event.TypePlanUpdated, planID)
	}
	return &Item{ID: planID, Plan: p, Outcomes: outcomes}, nil
}

// Get folds the plan matching prefix.
func (s *Service) Get(ctx context.Context, prefix string) (*Item, error) {
	planID, err := s.Resolve(ctx, prefix)
	if err != nil {
		return nil, err
	}
	item, err := s.load(ctx, planID)
	if err != nil {
		return nil, err
	}
	if item.Plan == nil {
		return nil, brokenRootError(item)
	}
	return item, nil
}

// Outcomes folds the plan matching prefix without requiring the fold to
// produce a plan, so the rejections of a log whose root operation failed
// remain inspectable. Item.Plan may be nil.
func (s *Service) Outcomes(ctx context.Context, prefix string) (*Item, error) {
	planID, err := s.Resolve(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, planID)
}

// List folds every stored plan, concurrently, and returns them ordered by
// creation time.
func (s *Service) List(ctx context.Context) ([]*Item, error) {
	ids, err := s.ops.Plans(ctx)
	if err != nil {
		return nil, err
	}
	p := pool.NewWithResults[*Item]().WithContext(ctx)
	for _, id := range ids {
		id := id
		p.Go(func(ctx context.Context) (*Item, error) {
			return s.load(ctx, id)
		})
	}
	all, err := p.Wait()
	if err != nil {
		return nil, err
	}
	// A log whose root operation was rejected folds to no plan at all, for
	// example when another replica wrote it. Such logs are skipped rather
	// than failing the whole listing.
	items := all[:0]
	for _, item := range all {
		if item.Plan == nil {
			slog.WarnContext(ctx, "skipping plan with no applied root operation", "plan", item.ID.Short())
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Plan.CreatedAt.Equal(b.Plan.CreatedAt) {
			return a.Plan.CreatedAt.Before(b.Plan.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items, nil
}

// Remove deletes a plan's log. Only delegates may remove plans.
func (s *Service) Remove(ctx context.Context, prefix string, actor identity.Identity) error {
	doc, err := s.identities.Get(ctx)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to load identity document", err)
	}
	if !doc.IsDelegate(actor) {
		return cerr.NewError(cerr.PermissionDenied, fmt.Sprintf("%s is not a delegate", actor), nil)
	}
	planID, err := s.Resolve(ctx, prefix)
	if err != nil {
		return err
	}
	if err := s.ops.Delete(ctx, planID); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.PublishNew(event.TypePlanDeleted, planID)
	}
	return nil
}

// Resolve matches an id prefix against the stored plan ids.
func (s *Service) Resolve(ctx context.Context, prefix string) (object.ID, error) {
	ids, err := s.ops.Plans(ctx)
	if err != nil {
		return "", err
	}
	id, err := object.Resolve(prefix, ids)
	if err != nil {
		return "", resolveError(prefix, err)
	}
	return id, nil
}

// ResolveTask matches an id prefix against the plan's live task ids.
func ResolveTask(p *Plan, prefix string) (object.ID, error) {
	ids := make([]object.ID, len(p.Tasks))
	for i := range p.Tasks {
		ids[i] = p.Tasks[i].ID
	}
	id, err := object.Resolve(prefix, ids)
	if err != nil {
		return "", resolveError(prefix, err)
	}
	return id, nil
}

// ResolveComment matches an id prefix against the plan's live comment ids.
func ResolveComment(p *Plan, prefix string) (object.ID, error) {
	ids := make([]object.ID, len(p.Thread.Comments))
	for i := range p.Thread.Comments {
		ids[i] = p.Thread.Comments[i].ID
	}
	id, err := object.Resolve(prefix, ids)
	if err != nil {
		return "", resolveError(prefix, err)
	}
	return id, nil
}

func (s *Service) load(ctx context.Context, planID object.ID) (*Item, error) {
	oracle, err := s.oracle(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := s.ops.List(ctx, planID)
	if err != nil {
		return nil, err
	}
	p, outcomes := Reduce(nil, ops, oracle)
	return &Item{ID: planID, Plan: p, Outcomes: outcomes}, nil
}

// brokenRootError reports a stored log that folds to no plan, which happens
// when the root operation was rejected. The first rejection is the cause.
func brokenRootError(item *Item) error {
	var cause error
	for _, o := range item.Outcomes {
		if o.Err != nil {
			cause = o.Err
			break
		}
	}
	return cerr.NewError(cerr.FailedPrecondition,
		fmt.Sprintf("plan %s has no applied root operation", item.ID.Short()), cause)
}

func resolveError(prefix string, err error) error {
	var ambiguous *object.AmbiguousError
	switch {
	case errors.Is(err, object.ErrNotFound):
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("no object matches %s", prefix), err)
	case errors.As(err, &ambiguous):
		return cerr.NewError(cerr.FailedPrecondition, err.Error(), err)
	default:
		return cerr.NewError(cerr.InvalidArgument, err.Error(), err)
	}
}

// rejectionError maps a fold rejection onto a transport error code.
func rejectionError(err error) error {
	var (
		unauthorized *UnauthorizedError
		unknownTask  *UnknownTaskError
		unknownCmt   *UnknownCommentError
		malformed    *MalformedError
	)
	switch {
	case errors.As(err, &unauthorized):
		return cerr.NewError(cerr.PermissionDenied, err.Error(), err)
	case errors.As(err, &unknownTask), errors.As(err, &unknownCmt):
		return cerr.NewError(cerr.NotFound, err.Error(), err)
	case errors.As(err, &malformed):
		return cerr.NewError(cerr.InvalidArgument, err.Error(), err)
	default:
		// Uninitialized plan, cycles and invalid reorders.
		return cerr.NewError(cerr.FailedPrecondition, err.Error(), err)
	}
}
