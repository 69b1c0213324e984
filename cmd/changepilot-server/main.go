package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/changepilot/changepilot/internal/config"
	"github.com/changepilot/changepilot/internal/driver"
	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/intent"
	"github.com/changepilot/changepilot/internal/message"
	messagerepo "github.com/changepilot/changepilot/internal/message/repositoryimpl"
	"github.com/changepilot/changepilot/internal/remote"
	"github.com/changepilot/changepilot/internal/task"
	taskrepo "github.com/changepilot/changepilot/internal/task/repositoryimpl"
	"github.com/changepilot/changepilot/internal/transcribe"
	"github.com/changepilot/changepilot/internal/webhook"
	"github.com/changepilot/changepilot/pkg/clog"
	"github.com/changepilot/changepilot/pkg/sentinel"
	"github.com/changepilot/changepilot/pkg/storage"

	server "github.com/changepilot/changepilot/internal"
)

func main() {
	// "sentinel" supervises a "serve" child, restarting it on crash or
	// when the binary is replaced by a deploy.
	if len(os.Args) > 1 && os.Args[1] == "sentinel" {
		sentinel.Run("serve")
		return
	}

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup classifier
	classifierCfg := intent.DefaultConfig()
	if env.ClassifierEnv.ConfigPath != "" {
		classifierCfg, err = intent.LoadConfig(env.ClassifierEnv.ConfigPath)
		if err != nil {
			slog.Error("failed to load classifier config", "error", err)
			os.Exit(1)
		}
	}
	var classifier intent.Classifier = intent.NewHeuristic(classifierCfg)
	if env.ClassifierEnv.OpenAIAPIKey != "" {
		classifier = intent.NewOpenAI(env.ClassifierEnv.OpenAIAPIKey, env.ClassifierEnv.OpenAIModel, env.ClassifierEnv.Timeout, classifierCfg)
	}

	// Setup transcriber
	var transcriber transcribe.Transcriber = transcribe.Disabled{}
	if env.ClassifierEnv.OpenAIAPIKey != "" {
		transcriber = transcribe.NewWhisper(
			env.ClassifierEnv.OpenAIAPIKey,
			env.TranscriberEnv.MediaAccountSID,
			env.TranscriberEnv.MediaAuthToken,
			env.TranscriberEnv.Timeout,
		)
	}

	// Setup remote record mirror
	var recordWriter remote.RecordWriter = remote.Noop{}
	if env.RemoteEnv.GitHubToken != "" && env.RemoteEnv.GitHubRepo != "" {
		recordWriter = remote.NewGitHub(env.RemoteEnv.GitHubToken, env.RemoteEnv.GitHubRepo, env.RemoteEnv.GitHubBranch)
	}

	bus := eventbus.New()
	taskRepo := taskrepo.NewJSONRepository(store)
	messageRepo := messagerepo.NewJSONLog(store)

	taskServer := task.NewServer(taskRepo, classifierCfg, bus)
	messageServer := message.NewServer(messageRepo)
	webhookServer := webhook.NewServer(classifier, taskRepo, messageRepo, transcriber, recordWriter, bus)

	srv := server.NewServer(env, taskServer, messageServer, webhookServer)

	// Setup workflow driver. Filesystem discovery needs the local task
	// files; with remote storage the poll ticker does the discovery alone.
	markers, err := driver.LoadMarkers(filepath.Join(env.StorageEnv.BaseDir, "tasks", ".processed"))
	if err != nil {
		slog.Error("failed to load processed markers", "error", err)
		os.Exit(1)
	}
	var editor driver.Editor = driver.LogEditor{}
	if env.DriverEnv.Editor == "vscode" {
		editor = driver.NewVSCode(env.DriverEnv.TargetRepo)
	}
	var committer driver.Committer = driver.NoopCommitter{}
	if env.DriverEnv.AutoCommit {
		committer = driver.NewGitCommitter(env.DriverEnv.TargetRepo)
	}
	drv := driver.New(
		taskRepo,
		bus,
		editor,
		committer,
		markers,
		filepath.Join(env.StorageEnv.BaseDir, "tasks"),
		env.DriverEnv.PollInterval,
	)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := drv.Run(ctx); err != nil {
			slog.Error("driver error", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
