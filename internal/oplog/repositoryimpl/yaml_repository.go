package repositoryimpl

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/internal/object"
	"github.com/planweave/planweave/internal/oplog"
	"github.com/planweave/planweave/pkg/cerr"
	"github.com/planweave/planweave/pkg/storage"
)

const plansPrefix = "plans"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func key(id object.ID) string {
	return fmt.Sprintf("%s/%s.yaml", plansPrefix, id)
}

type logFile struct {
	Ops []oplog.Op `yaml:"ops"`
}

func (r *YAMLRepository) Create(ctx context.Context, root oplog.Op) error {
	exists, err := r.storage.Exists(ctx, key(root.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("plan log", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "plan already exists", nil)
	}
	return r.write(ctx, root.ID, &logFile{Ops: []oplog.Op{root}})
}

func (r *YAMLRepository) Append(ctx context.Context, planID object.ID, op oplog.Op) error {
	log, err := r.read(ctx, planID)
	if err != nil {
		return err
	}
	log.Ops = append(log.Ops, op)
	return r.write(ctx, planID, log)
}

func (r *YAMLRepository) List(ctx context.Context, planID object.ID) ([]oplog.Op, error) {
	log, err := r.read(ctx, planID)
	if err != nil {
		return nil, err
	}
	return log.Ops, nil
}

func (r *YAMLRepository) Plans(ctx context.Context) ([]object.ID, error) {
	keys, err := r.storage.List(ctx, plansPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("plan logs", err)
	}
	var ids []object.ID
	for _, k := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(k, plansPrefix+"/"), ".yaml")
		id, err := object.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, planID object.ID) error {
	if err := r.storage.Delete(ctx, key(planID)); err != nil {
		return cerr.WrapStorageDeleteError("plan log", err)
	}
	return nil
}

func (r *YAMLRepository) read(ctx context.Context, planID object.ID) (*logFile, error) {
	data, err := r.storage.Read(ctx, key(planID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("plan log", err)
	}
	var log logFile
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal plan log: %w", err))
	}
	return &log, nil
}

func (r *YAMLRepository) write(ctx context.Context, planID object.ID, log *logFile) error {
	data, err := yaml.Marshal(log)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal plan log: %w", err))
	}
	if err := r.storage.Write(ctx, key(planID), data); err != nil {
		return cerr.WrapStorageWriteError("plan log", err)
	}
	return nil
}
