package repositoryimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/pkg/cerr"
	"github.com/changepilot/changepilot/pkg/storage"
)

const (
	tasksPrefix   = "tasks"
	archivePrefix = "tasks/archive"
)

// JSONRepository persists one JSON document per task. Active tasks live
// under tasks/, terminally resolved ones under tasks/archive/.
type JSONRepository struct {
	storage storage.Storage
}

func NewJSONRepository(s storage.Storage) *JSONRepository {
	return &JSONRepository{storage: s}
}

func activePath(id string) string {
	return fmt.Sprintf("%s/%s.json", tasksPrefix, id)
}

func archivePath(id string) string {
	return fmt.Sprintf("%s/%s.json", archivePrefix, id)
}

func (r *JSONRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, activePath(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, activePath(t.ID), t)
}

func (r *JSONRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := r.read(ctx, activePath(id))
	if err == nil {
		return t, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	return r.read(ctx, archivePath(id))
}

func (r *JSONRepository) List(ctx context.Context, status task.Status) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}

	// IDs are ULIDs, so the reverse lexical order of the file names is
	// newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	tasks := make([]*task.Task, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

func (r *JSONRepository) UpdateStatus(ctx context.Context, id string, status task.Status, result *task.Result) (*task.Task, error) {
	if !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid status: %s", status), nil)
	}

	t, err := r.read(ctx, activePath(id))
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			if archived, aerr := r.read(ctx, archivePath(id)); aerr == nil {
				return nil, cerr.NewError(cerr.FailedPrecondition,
					fmt.Sprintf("task %s is archived with status %s", id, archived.Status), nil)
			}
		}
		return nil, err
	}

	if !task.CanTransition(t.Status, status) {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("cannot transition task %s from %s to %s", id, t.Status, status), nil)
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = &now
	if status.Terminal() {
		if result == nil {
			result = &task.Result{Status: status}
		}
		result.Status = status
		t.Result = result
	}

	if err := r.write(ctx, activePath(id), t); err != nil {
		return nil, err
	}
	if status.Terminal() {
		if err := r.storage.Rename(ctx, activePath(id), archivePath(id)); err != nil {
			return nil, cerr.WrapStorageWriteError("task", err)
		}
	}
	return t, nil
}

func (r *JSONRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, activePath(id)); err != nil {
		return cerr.WrapStorageDeleteError("task", err)
	}
	return nil
}

func (r *JSONRepository) read(ctx context.Context, path string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}

func (r *JSONRepository) write(ctx context.Context, path string, t *task.Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path, data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}
