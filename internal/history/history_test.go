package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ldi/forge/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Now().UTC().Add(-time.Minute)

	reports := []*models.Report{
		{TaskID: "a", Outcome: models.OutcomeSuccess, Branch: "auto/aaa", Build: models.CheckResult{ExitCode: 0}, Tests: models.CheckResult{Skipped: true}},
		{TaskID: "b", Outcome: models.OutcomeFailed, Err: "empty patch", Build: models.CheckResult{Skipped: true}, Tests: models.CheckResult{Skipped: true}},
	}
	for _, r := range reports {
		if err := db.RecordRun(ctx, r, "directive for "+r.TaskID, started); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.TaskID, err)
		}
	}

	runs, err := db.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].TaskID != "b" {
		t.Errorf("first run = %s, want b", runs[0].TaskID)
	}
	if runs[0].Outcome != models.OutcomeFailed || runs[0].Error != "empty patch" {
		t.Errorf("run = %+v", runs[0])
	}
	if runs[0].BuildExit.Valid {
		t.Error("skipped build recorded a valid exit code")
	}
	if runs[1].Branch != "auto/aaa" || !runs[1].BuildExit.Valid || runs[1].BuildExit.Int64 != 0 {
		t.Errorf("run = %+v", runs[1])
	}
}

func TestListRecentLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := &models.Report{TaskID: "t", Outcome: models.OutcomeSuccess,
			Build: models.CheckResult{Skipped: true}, Tests: models.CheckResult{Skipped: true}}
		if err := db.RecordRun(ctx, r, "", time.Now().UTC()); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRecent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("runs = %d, want 3", len(runs))
	}
}

func TestCountByOutcome(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	outcomes := []models.Outcome{models.OutcomeSuccess, models.OutcomeSuccess, models.OutcomeFailed, models.OutcomeSkipped}
	for _, o := range outcomes {
		r := &models.Report{TaskID: "t", Outcome: o,
			Build: models.CheckResult{Skipped: true}, Tests: models.CheckResult{Skipped: true}}
		if err := db.RecordRun(ctx, r, "", time.Now().UTC()); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := db.CountByOutcome(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.OutcomeSuccess] != 2 || counts[models.OutcomeFailed] != 1 || counts[models.OutcomeSkipped] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
