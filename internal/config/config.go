// Package config builds the immutable runtime configuration once at
// startup. Values come from the environment, optionally seeded from a
// .env file, and are passed explicitly into every component constructor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBranch       = "main"
	defaultBranchPrefix = "auto"
	defaultPollInterval = 5 * time.Second
	defaultStageTimeout = 120 * time.Second
	defaultStateDir     = ".forge"
)

// Config holds every tunable the pipeline reads. It is constructed by
// Load and never mutated afterwards.
type Config struct {
	// RepoPath is the working copy the pipeline operates on.
	RepoPath      string
	DefaultBranch string
	BranchPrefix  string

	// BuildCmd and TestCmd are shell commands run after a commit.
	// Empty means the corresponding check is skipped.
	BuildCmd string
	TestCmd  string

	PollInterval time.Duration
	StageTimeout time.Duration

	// StateDir roots the durable pipeline state: task partitions,
	// integration artifacts, history database and logs.
	StateDir     string
	TasksDir     string
	ArtifactsDir string
	HistoryDB    string
	LogDir       string

	OpenAIKey        string
	PlannerModel     string
	ImplementerModel string
	// PlanningEnabled gates the plan stage; when false a fallback plan
	// is substituted, never skipped.
	PlanningEnabled bool

	TelegramToken  string
	TelegramChatID string
}

// Load reads configuration from the environment. A .env file in the
// current directory is loaded first when present; existing environment
// variables win, matching the original deployment convention.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone may be complete.
	_ = godotenv.Load()

	cfg := &Config{
		RepoPath:         envOr("REPO_PATH", "."),
		DefaultBranch:    envOr("DEFAULT_BRANCH", defaultBranch),
		BranchPrefix:     envOr("BRANCH_PREFIX", defaultBranchPrefix),
		BuildCmd:         os.Getenv("BUILD_CMD"),
		TestCmd:          os.Getenv("TEST_CMD"),
		StateDir:         envOr("FORGE_STATE_DIR", defaultStateDir),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		PlannerModel:     envOr("PLANNER_MODEL", "gpt-4o"),
		ImplementerModel: envOr("IMPLEMENTER_MODEL", "gpt-4o"),
		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	var err error
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL_SEC", defaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.StageTimeout, err = envDuration("STAGE_TIMEOUT_SEC", defaultStageTimeout); err != nil {
		return nil, err
	}

	cfg.TasksDir = filepath.Join(cfg.StateDir, "tasks")
	cfg.ArtifactsDir = filepath.Join(cfg.StateDir, "artifacts")
	cfg.HistoryDB = filepath.Join(cfg.StateDir, "history.db")
	cfg.LogDir = filepath.Join(cfg.StateDir, "logs")

	cfg.PlanningEnabled = cfg.OpenAIKey != "" && envBool("DISABLE_PLANNING") == false

	return cfg, cfg.Validate()
}

// Validate checks the invariants every component relies on.
func (c *Config) Validate() error {
	if c.RepoPath == "" {
		return fmt.Errorf("config: REPO_PATH must not be empty")
	}
	if c.DefaultBranch == "" {
		return fmt.Errorf("config: DEFAULT_BRANCH must not be empty")
	}
	if c.BranchPrefix == "" {
		return fmt.Errorf("config: BRANCH_PREFIX must not be empty")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("config: poll interval must not be negative")
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("config: stage timeout must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}
