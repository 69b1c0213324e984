package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/pkg/shellformat"
)

// Committer pushes a successful task's changes to version control.
type Committer interface {
	Commit(ctx context.Context, t *task.Task) error
}

// GitCommitter stages exactly the files in the task's scope, commits with a
// message embedding the task id and type, and pushes.
type GitCommitter struct {
	repoDir string
}

func NewGitCommitter(repoDir string) *GitCommitter {
	if repoDir == "" {
		repoDir = "."
	}
	return &GitCommitter{repoDir: repoDir}
}

func (c *GitCommitter) Commit(ctx context.Context, t *task.Task) error {
	commands := make([][]string, 0, len(t.Scope)+2)
	for _, f := range t.Scope {
		commands = append(commands, []string{"git", "add", f})
	}
	message := fmt.Sprintf("🤖 Auto: %s\n\nTask ID: %s\nType: %s", t.Description, t.ID, t.Type)
	commands = append(commands,
		[]string{"git", "commit", "-m", message},
		[]string{"git", "push"},
	)

	slog.InfoContext(ctx, "committing task changes",
		"task_id", t.ID,
		"script", shellformat.Script(commands),
	)

	for _, argv := range commands {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = c.repoDir
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s failed: %w: %s",
				shellformat.Command(argv), err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// NoopCommitter is used when auto-commit is disabled for the deployment.
type NoopCommitter struct{}

func (NoopCommitter) Commit(ctx context.Context, t *task.Task) error {
	slog.InfoContext(ctx, "auto-commit disabled, leaving changes unstaged", "task_id", t.ID)
	return nil
}
