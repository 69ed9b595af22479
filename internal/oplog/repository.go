package oplog

import (
	"context"

	"github.com/planweave/planweave/internal/object"
)

// Repository persists per-plan operation logs. A plan's id is the id of its
// root operation.
type Repository interface {
	// Create starts a new log whose first operation is root.
	Create(ctx context.Context, root Op) error
	// Append adds an operation to an existing log.
	Append(ctx context.Context, planID object.ID, op Op) error
	// List returns a plan's operations in log order.
	List(ctx context.Context, planID object.ID) ([]Op, error)
	// Plans returns the ids of all stored plans.
	Plans(ctx context.Context) ([]object.ID, error)
	// Delete removes a plan's log.
	Delete(ctx context.Context, planID object.ID) error
}
