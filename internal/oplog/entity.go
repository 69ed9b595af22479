// Package oplog stores the append-only operation log of each plan. The order
// of operations in a plan's log is the total order the reducer consumes;
// producing that order across replicas is the storage layer's concern, not
// this package's.
package oplog

import (
	"strconv"
	"time"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/internal/object"
)

// Op is one authored, timestamped operation. Payload carries the
// JSON-encoded action; it stays opaque here and is decoded by the reducer's
// caller.
type Op struct {
	ID        object.ID         `yaml:"id"`
	Author    identity.Identity `yaml:"author"`
	Timestamp time.Time         `yaml:"timestamp"`
	Payload   string            `yaml:"payload"`
}

// NewOp derives the op id from the previous op's id, the author, the
// timestamp and the payload, so ids are content-addressed and stay inside the
// hexadecimal id space the resolution contract expects.
func NewOp(prev object.ID, author identity.Identity, ts time.Time, payload []byte) Op {
	id := object.Derive(
		[]byte(prev),
		[]byte(author),
		[]byte(strconv.FormatInt(ts.UnixMilli(), 10)),
		payload,
	)
	return Op{
		ID:        id,
		Author:    author,
		Timestamp: ts.UTC(),
		Payload:   string(payload),
	}
}
