package task

import "context"

type Repository interface {
	Create(ctx context.Context, t *Task) error
	// Get returns the task whether it is active or already archived.
	Get(ctx context.Context, id string) (*Task, error)
	// List returns active tasks, newest first, optionally filtered by status.
	List(ctx context.Context, status Status) ([]*Task, error)
	// UpdateStatus applies a status transition. Terminal transitions record
	// the result and move the task to the archive.
	UpdateStatus(ctx context.Context, id string, status Status, result *Result) (*Task, error)
	// Delete removes an active task. Archived tasks are immutable.
	Delete(ctx context.Context, id string) error
}
