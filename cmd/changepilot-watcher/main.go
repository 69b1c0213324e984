package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"

	"github.com/changepilot/changepilot/internal/driver"
	"github.com/changepilot/changepilot/internal/task"
	taskrepo "github.com/changepilot/changepilot/internal/task/repositoryimpl"
	"github.com/changepilot/changepilot/pkg/storage"
)

// changepilot-watcher is the interactive companion to the server: it claims
// pending tasks, seeds the editor, and asks the operator for the outcome.

var (
	app      = kingpin.New("changepilot-watcher", "Interactive watcher for pending change tasks")
	dataDir  = app.Flag("data-dir", "Task storage directory").Default(".changepilot/data").String()
	repoDir  = app.Flag("repo", "Target repository working copy").Default(".").String()
	noEditor = app.Flag("no-editor", "Skip opening files in the editor").Bool()

	watchCmd      = app.Command("watch", "Watch for pending tasks and process them as they arrive")
	watchInterval = watchCmd.Flag("interval", "Poll interval").Default("2s").Duration()

	processCmd = app.Command("process", "Process a single task by id")
	processID  = processCmd.Arg("id", "Task ID").Required().String()

	listCmd = app.Command("list", "List active tasks")
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	success  = color.New(color.FgGreen)
	failure  = color.New(color.FgRed)
	warning  = color.New(color.FgYellow)
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	store, err := storage.NewLocalStorage(*dataDir)
	if err != nil {
		failure.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		os.Exit(1)
	}
	repo := taskrepo.NewJSONRepository(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &watcher{
		repo:      repo,
		committer: driver.NewGitCommitter(*repoDir),
		stdin:     bufio.NewReader(os.Stdin),
	}
	if !*noEditor {
		w.editor = driver.NewVSCode(*repoDir)
	}
	markers, err := driver.LoadMarkers(filepath.Join(*dataDir, "tasks", ".processed"))
	if err != nil {
		failure.Fprintf(os.Stderr, "Error loading markers: %v\n", err)
		os.Exit(1)
	}
	w.markers = markers

	switch command {
	case watchCmd.FullCommand():
		err = w.watch(ctx, *watchInterval)
	case processCmd.FullCommand():
		err = w.processByID(ctx, *processID)
	case listCmd.FullCommand():
		err = w.list(ctx)
	}
	if err != nil && ctx.Err() == nil {
		failure.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type watcher struct {
	repo      task.Repository
	editor    driver.Editor
	committer driver.Committer
	markers   *driver.Markers
	stdin     *bufio.Reader
}

func (w *watcher) watch(ctx context.Context, interval time.Duration) error {
	headline.Println("👀 Watching for pending tasks...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pending, err := w.repo.List(ctx, task.StatusPending)
		if err != nil {
			return err
		}
		for i := len(pending) - 1; i >= 0; i-- {
			t := pending[i]
			won, err := w.markers.MarkIfNew(t.ID)
			if err != nil {
				return err
			}
			if !won {
				continue
			}
			if err := w.process(ctx, t); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *watcher) processByID(ctx context.Context, id string) error {
	t, err := w.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusPending {
		warning.Printf("⏭️  Skipping %s (status: %s)\n", t.ID, t.Status)
		return nil
	}
	return w.process(ctx, t)
}

func (w *watcher) list(ctx context.Context) error {
	tasks, err := w.repo.List(ctx, "")
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No active tasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s  %-13s %-15s %s\n", t.ID, t.Status, t.Type, t.Description)
	}
	return nil
}

func (w *watcher) process(ctx context.Context, t *task.Task) error {
	headline.Printf("\n📋 Processing: %s\n", t.ID)
	fmt.Printf("  📝 %s\n", t.Description)
	fmt.Printf("  🎯 Type: %s\n", t.Type)
	fmt.Printf("  📁 Scope: %s\n", strings.Join(t.Scope, ", "))

	if _, err := w.repo.UpdateStatus(ctx, t.ID, task.StatusProcessing, nil); err != nil {
		return err
	}

	prompt := driver.RenderPrompt(t)
	if w.editor != nil {
		if err := w.editor.Open(ctx, t.Scope, prompt); err != nil {
			warning.Printf("  ⚠️  %v\n", err)
			fmt.Println(prompt)
		} else {
			fmt.Println("  📋 Prompt copied to clipboard, files opened in the editor.")
		}
	} else {
		fmt.Println(prompt)
	}

	return w.resolve(ctx, t)
}

func (w *watcher) resolve(ctx context.Context, t *task.Task) error {
	for {
		fmt.Print("\n✅ Done? (y=success / n=failed / m=manual review): ")
		line, err := w.stdin.ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y":
			if _, err := w.repo.UpdateStatus(ctx, t.ID, task.StatusSuccess, &task.Result{Details: "Completed via watcher"}); err != nil {
				return err
			}
			success.Println("  ✅ Task marked as success")
			if t.AutoCommit {
				if err := w.offerCommit(ctx, t); err != nil {
					failure.Printf("  ❌ Git error: %v\n", err)
				}
			}
			return nil
		case "n":
			if _, err := w.repo.UpdateStatus(ctx, t.ID, task.StatusFailed, &task.Result{Details: "Failed via watcher"}); err != nil {
				return err
			}
			failure.Println("  ❌ Task marked as failed")
			return nil
		case "m":
			if _, err := w.repo.UpdateStatus(ctx, t.ID, task.StatusManualReview, &task.Result{Details: "Requires manual review"}); err != nil {
				return err
			}
			warning.Println("  ⚠️  Task marked for manual review")
			return nil
		}
	}
}

func (w *watcher) offerCommit(ctx context.Context, t *task.Task) error {
	fmt.Print("🔄 Auto-commit? (y/n): ")
	line, err := w.stdin.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.ToLower(strings.TrimSpace(line)) != "y" {
		return nil
	}
	if err := w.committer.Commit(ctx, t); err != nil {
		return err
	}
	success.Println("  ✅ Changes pushed!")
	return nil
}
