package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/internal/identity"
	"github.com/planweave/planweave/pkg/cerr"
	"github.com/planweave/planweave/pkg/storage"
)

const docKey = "identity/doc.yaml"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

// Get returns the delegate document, or an empty one when none is stored yet.
func (r *YAMLRepository) Get(ctx context.Context) (*identity.Doc, error) {
	data, err := r.storage.Read(ctx, docKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &identity.Doc{}, nil
		}
		return nil, cerr.WrapStorageReadError("identity doc", err)
	}
	var doc identity.Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal identity doc: %w", err))
	}
	return &doc, nil
}

func (r *YAMLRepository) Put(ctx context.Context, doc *identity.Doc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal identity doc: %w", err))
	}
	if err := r.storage.Write(ctx, docKey, data); err != nil {
		return cerr.WrapStorageWriteError("identity doc", err)
	}
	return nil
}
