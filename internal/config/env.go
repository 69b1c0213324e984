package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	// Optional shared secret for the task and message APIs. The messaging
	// webhook stays open; the channel provider cannot send custom headers.
	APIKey string `envconfig:"API_KEY"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".changepilot/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"changepilot/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type ClassifierEnv struct {
	// OpenAI settings for the enhanced classification path. When APIKey is
	// empty the heuristic classifier runs alone.
	OpenAIAPIKey string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout      time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"10s"`
	// Optional YAML file overriding the built-in keyword and scope maps.
	ConfigPath string `envconfig:"CLASSIFIER_CONFIG"`
}

type TranscriberEnv struct {
	// Media downloads from the messaging channel require basic auth.
	MediaAccountSID string        `envconfig:"TWILIO_ACCOUNT_SID"`
	MediaAuthToken  string        `envconfig:"TWILIO_AUTH_TOKEN"`
	Timeout         time.Duration `envconfig:"TRANSCRIBER_TIMEOUT" default:"30s"`
}

type RemoteEnv struct {
	// GitHub contents API settings for mirroring task records to an
	// external repository. Disabled when Token or Repo is empty.
	GitHubToken  string `envconfig:"GITHUB_TOKEN"`
	GitHubRepo   string `envconfig:"GITHUB_REPO"`
	GitHubBranch string `envconfig:"GITHUB_BRANCH" default:"main"`
}

type DriverEnv struct {
	TargetRepo   string        `envconfig:"TARGET_REPO" default:"."`
	PollInterval time.Duration `envconfig:"DRIVER_POLL_INTERVAL" default:"2s"`
	// Editor selects the handoff environment: "vscode" opens the scoped
	// files with the code CLI, "log" just logs the rendered prompt.
	Editor string `envconfig:"DRIVER_EDITOR" default:"log"`
	// AutoCommit gates the git commit+push step on successful tasks.
	AutoCommit bool `envconfig:"DRIVER_AUTO_COMMIT" default:"true"`
}

type Env struct {
	BaseEnv
	StorageEnv
	ClassifierEnv
	TranscriberEnv
	RemoteEnv
	DriverEnv
}

const namespace = "CHANGEPILOT"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
