package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Editor seeds an external environment with the task's scoped files and the
// rendered instruction block.
type Editor interface {
	Open(ctx context.Context, scope []string, prompt string) error
}

// VSCode copies the prompt to the clipboard and opens the scoped files with
// the `code` CLI, mirroring a human paste-into-Copilot workflow.
type VSCode struct {
	repoDir string
}

func NewVSCode(repoDir string) *VSCode {
	if repoDir == "" {
		repoDir = "."
	}
	return &VSCode{repoDir: repoDir}
}

func (v *VSCode) Open(ctx context.Context, scope []string, prompt string) error {
	if err := copyToClipboard(ctx, prompt); err != nil {
		slog.WarnContext(ctx, "failed to copy prompt to clipboard", "error", err.Error())
	}

	var paths []string
	for _, f := range scope {
		full := filepath.Join(v.repoDir, f)
		if _, err := os.Stat(full); err != nil {
			slog.WarnContext(ctx, "scoped file not found", "file", f)
			continue
		}
		paths = append(paths, full)
	}
	if len(paths) == 0 {
		return fmt.Errorf("none of the scoped files exist under %s", v.repoDir)
	}

	cmd := exec.CommandContext(ctx, "code", paths...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open editor: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func copyToClipboard(ctx context.Context, text string) error {
	var argv []string
	switch runtime.GOOS {
	case "darwin":
		argv = []string{"pbcopy"}
	default:
		argv = []string{"xclip", "-selection", "clipboard"}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// LogEditor is the headless fallback: it logs the prompt instead of opening
// anything, leaving the handoff to an out-of-band watcher.
type LogEditor struct{}

func (LogEditor) Open(ctx context.Context, scope []string, prompt string) error {
	slog.InfoContext(ctx, "task ready for an external agent",
		"scope", strings.Join(scope, ","),
		"prompt", prompt,
	)
	return nil
}
