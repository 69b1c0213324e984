package driver

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc/pool"

	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/pkg/panicerr"
)

// Driver consumes pending tasks: it claims each one, renders the instruction
// block, seeds the editor environment, and commits the scoped files once the
// completion callback resolves the task as a success.
type Driver struct {
	repo      task.Repository
	eventBus  *eventbus.Bus
	editor    Editor
	committer Committer
	markers   *Markers
	tasksDir  string
	poll      time.Duration
}

func New(
	repo task.Repository,
	eventBus *eventbus.Bus,
	editor Editor,
	committer Committer,
	markers *Markers,
	tasksDir string,
	poll time.Duration,
) *Driver {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Driver{
		repo:      repo,
		eventBus:  eventBus,
		editor:    editor,
		committer: committer,
		markers:   markers,
		tasksDir:  tasksDir,
		poll:      poll,
	}
}

// Run blocks until the context is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(d.watchLoop))
	p.Go(panicerr.SafeContext(d.resolveLoop))
	return p.Wait()
}

// watchLoop discovers pending tasks through filesystem events on the tasks
// directory, with a poll ticker as a safety net for missed notifications.
func (d *Driver) watchLoop(ctx context.Context) error {
	if err := os.MkdirAll(d.tasksDir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(d.tasksDir); err != nil {
		return err
	}

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	d.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				d.scan(ctx)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "task watcher error", "error", err.Error())
		case <-ticker.C:
			d.scan(ctx)
		}
	}
}

// scan claims every pending task not yet seen, oldest first.
func (d *Driver) scan(ctx context.Context) {
	pending, err := d.repo.List(ctx, task.StatusPending)
	if err != nil {
		slog.WarnContext(ctx, "failed to list pending tasks", "error", err.Error())
		return
	}
	// List is newest first; process in creation order.
	for i := len(pending) - 1; i >= 0; i-- {
		d.process(ctx, pending[i])
	}
}

func (d *Driver) process(ctx context.Context, t *task.Task) {
	won, err := d.markers.MarkIfNew(t.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark task as seen", "task_id", t.ID, "error", err.Error())
		return
	}
	if !won {
		return
	}

	if _, err := d.repo.UpdateStatus(ctx, t.ID, task.StatusProcessing, nil); err != nil {
		slog.ErrorContext(ctx, "failed to claim task", "task_id", t.ID, "error", err.Error())
		return
	}
	d.eventBus.PublishNew(eventbus.TypeTaskStatusChanged, t.ID, map[string]string{"status": string(task.StatusProcessing)})

	slog.InfoContext(ctx, "claimed task",
		"task_id", t.ID,
		"type", t.Type,
		"description", t.Description,
	)

	if err := d.editor.Open(ctx, t.Scope, RenderPrompt(t)); err != nil {
		slog.WarnContext(ctx, "failed to seed editor", "task_id", t.ID, "error", err.Error())
	}
}

// resolveLoop watches for terminal transitions and commits the scoped files
// for auto-committable successes. A commit failure is reported but does not
// revert the task's resolution.
func (d *Driver) resolveLoop(ctx context.Context) error {
	id, events := d.eventBus.Subscribe(16)
	defer d.eventBus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.TypeTaskStatusChanged || ev.Metadata["status"] != string(task.StatusSuccess) {
				continue
			}
			t, err := d.repo.Get(ctx, ev.ResourceID)
			if err != nil {
				slog.WarnContext(ctx, "failed to load resolved task", "task_id", ev.ResourceID, "error", err.Error())
				continue
			}
			if !t.AutoCommit {
				continue
			}
			if err := d.committer.Commit(ctx, t); err != nil {
				slog.ErrorContext(ctx, "auto-commit failed", "task_id", t.ID, "error", err.Error())
				continue
			}
			slog.InfoContext(ctx, "auto-committed task changes", "task_id", t.ID)
		}
	}
}
