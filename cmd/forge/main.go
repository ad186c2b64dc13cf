package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ldi/forge/internal/buildcheck"
	"github.com/ldi/forge/internal/command"
	"github.com/ldi/forge/internal/config"
	"github.com/ldi/forge/internal/history"
	"github.com/ldi/forge/internal/llm"
	"github.com/ldi/forge/internal/logging"
	"github.com/ldi/forge/internal/notify"
	"github.com/ldi/forge/internal/pipeline"
	"github.com/ldi/forge/internal/stage"
	"github.com/ldi/forge/internal/taskstore"
	"github.com/ldi/forge/internal/ui"
	"github.com/ldi/forge/internal/workspace"
	"github.com/ldi/forge/pkg/models"
)

var verbose bool

func main() {
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	var cmd string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		cmd = selected
	} else {
		cmd = flag.Arg(0)
		args = flag.Args()[1:]
	}

	var err error
	switch cmd {
	case "init":
		err = runInit(args)
	case "task":
		err = runTask(args)
	case "note":
		err = runNote(args)
	case "run":
		err = runPipeline(args)
	case "list":
		err = runList(args)
	case "status":
		err = runStatus(args)
	case "history":
		err = runHistory(args)
	case "archive":
		err = runArchive(args)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := logging.New(logging.Options{Verbose: verbose, LogDir: cfg.LogDir})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

func runInit(args []string) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if _, err := taskstore.New(cfg.TasksDir, logger); err != nil {
		return err
	}
	fmt.Printf("✓ Created task partitions under %s\n", cfg.TasksDir)

	if err := os.MkdirAll(cfg.ArtifactsDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	fmt.Printf("✓ Created artifacts directory at %s\n", cfg.ArtifactsDir)

	gitignorePath := filepath.Join(cfg.StateDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitignorePath, []byte("history.db*\nlogs/\nevents.jsonl\n"), 0644); err != nil {
			return fmt.Errorf("failed to create .gitignore: %w", err)
		}
		fmt.Printf("✓ Created %s\n", gitignorePath)
	}

	ledger, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer ledger.Close()
	if err := ledger.Init(context.Background()); err != nil {
		return err
	}
	fmt.Printf("✓ Initialized history ledger at %s\n", cfg.HistoryDB)

	fmt.Println("✓ Forge initialized successfully")
	return nil
}

func runTask(args []string) error {
	taskFlags := flag.NewFlagSet("task", flag.ContinueOnError)
	owner := taskFlags.String("owner", "", "Who filed the task")
	attach := taskFlags.String("attach", "", "Comma-separated attachment paths")
	if err := taskFlags.Parse(args); err != nil {
		return err
	}
	text := strings.TrimSpace(strings.Join(taskFlags.Args(), " "))
	if text == "" {
		return fmt.Errorf("usage: forge task [flags] <directive text>")
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	rec := &models.TaskRecord{Kind: models.TaskKindTask, Text: text, Owner: *owner}
	if *attach != "" {
		for _, a := range strings.Split(*attach, ",") {
			if a = strings.TrimSpace(a); a != "" {
				rec.Attachments = append(rec.Attachments, a)
			}
		}
	}
	if err := store.Enqueue(rec); err != nil {
		return err
	}
	fmt.Printf("✓ Queued task %s\n", rec.ID)
	return nil
}

func runNote(args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("usage: forge note <note text>")
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	// Attach the note to the newest queued task; with nothing queued,
	// keep it as a standalone note record.
	if rec, err := store.AppendToLatest(text); err == nil {
		fmt.Printf("✓ Note appended to task %s\n", rec.ID)
		return nil
	}

	rec := &models.TaskRecord{Kind: models.TaskKindNote, Text: text}
	if err := store.Enqueue(rec); err != nil {
		return err
	}
	fmt.Printf("✓ Queued standalone note %s\n", rec.ID)
	return nil
}

func runPipeline(args []string) error {
	runFlags := flag.NewFlagSet("run", flag.ContinueOnError)
	noTUI := runFlags.Bool("no-tui", false, "Stream plain output instead of the TUI")
	once := runFlags.Bool("once", false, "Drain the queue and exit instead of polling")
	if err := runFlags.Parse(args); err != nil {
		return err
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required to run the pipeline")
	}
	if *once {
		cfg.PollInterval = 0
	}

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	ledger, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledger.Init(ctx); err != nil {
		return err
	}

	ws := workspace.New(cfg.RepoPath, cfg.DefaultBranch, command.ExecRunner{}, logger)
	checker := buildcheck.New(cfg.RepoPath, cfg.BuildCmd, cfg.TestCmd, command.ExecRunner{}, logger)

	var planCompleter llm.Completer
	if cfg.PlanningEnabled {
		planCompleter = llm.NewOpenAICompleter(cfg.OpenAIKey, cfg.PlannerModel, logger)
	}
	implementCompleter := llm.NewOpenAICompleter(cfg.OpenAIKey, cfg.ImplementerModel, logger)

	stages := []stage.Runner{
		stage.NewPlanner(planCompleter, logger),
		stage.NewImplementer(implementCompleter, logger),
		stage.NewIntegrator(cfg.ArtifactsDir, logger),
	}

	var notifier notify.Notifier
	telegram := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if telegram.Configured() {
		notifier = telegram
	} else {
		notifier = notify.NewLogNotifier(logger)
	}
	events := notify.NewEventLog(filepath.Join(cfg.StateDir, "events.jsonl"), logger)

	p := pipeline.New(store, ws, stages, checker, ledger, notifier, events, cfg, logger)
	p.NoTUI = *noTUI

	return p.Run(ctx)
}

func runList(args []string) error {
	listFlags := flag.NewFlagSet("list", flag.ContinueOnError)
	partition := listFlags.String("partition", "queued", "Partition to list (queued, processing, done, failed)")
	if err := listFlags.Parse(args); err != nil {
		return err
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	records, err := store.List(taskstore.Partition(*partition))
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-6s %-19s %s\n", "ID", "KIND", "CREATED", "DIRECTIVE")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range records {
		directive := strings.ReplaceAll(truncate(r.Text, 40), "\n", " ")
		fmt.Printf("%-36s %-6s %-19s %s\n", r.ID, r.Kind, r.CreatedAt.Format("2006-01-02 15:04:05"), directive)
	}
	return nil
}

func runStatus(args []string) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	fmt.Println("Forge Queue Status")
	fmt.Println("==================")
	for _, p := range []taskstore.Partition{
		taskstore.PartitionQueued,
		taskstore.PartitionProcessing,
		taskstore.PartitionDone,
		taskstore.PartitionFailed,
	} {
		n, err := store.Count(p)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %d\n", p+":", n)
	}

	ledger, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil // no ledger yet, queue counts are enough
	}
	defer ledger.Close()

	ctx := context.Background()
	if err := ledger.Init(ctx); err != nil {
		return err
	}
	counts, err := ledger.CountByOutcome(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\nAttempt History:")
	fmt.Printf("  Success: %d\n", counts[models.OutcomeSuccess])
	fmt.Printf("  Failed:  %d\n", counts[models.OutcomeFailed])
	fmt.Printf("  Skipped: %d\n", counts[models.OutcomeSkipped])
	return nil
}

func runHistory(args []string) error {
	histFlags := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := histFlags.Int("limit", 20, "Number of attempts to show")
	if err := histFlags.Parse(args); err != nil {
		return err
	}

	cfg, _, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	ledger, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := context.Background()
	if err := ledger.Init(ctx); err != nil {
		return err
	}

	runs, err := ledger.ListRecent(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-8s %-16s %-19s %s\n", "TASK", "OUTCOME", "BRANCH", "FINISHED", "ERROR")
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range runs {
		errText := truncate(r.Error, 30)
		fmt.Printf("%-36s %-8s %-16s %-19s %s\n", r.TaskID, r.Outcome, r.Branch, r.FinishedAt.Format("2006-01-02 15:04:05"), errText)
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with an
// ellipsis. Rune-based so multi-byte text is never split mid-character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func runArchive(args []string) error {
	archiveFlags := flag.NewFlagSet("archive", flag.ContinueOnError)
	partition := archiveFlags.String("partition", "done", "Partition to archive (done or failed)")
	if err := archiveFlags.Parse(args); err != nil {
		return err
	}

	p := taskstore.Partition(*partition)
	if p != taskstore.PartitionDone && p != taskstore.PartitionFailed {
		return fmt.Errorf("only done and failed partitions can be archived")
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := taskstore.New(cfg.TasksDir, logger)
	if err != nil {
		return err
	}

	dir, moved, err := store.Archive(p)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Archived %d records to %s\n", moved, dir)
	return nil
}
