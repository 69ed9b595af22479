package identity

import "context"

// Repository loads and stores the delegate document.
type Repository interface {
	Get(ctx context.Context) (*Doc, error)
	Put(ctx context.Context, doc *Doc) error
}
