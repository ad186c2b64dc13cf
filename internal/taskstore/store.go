// Package taskstore persists task records as one JSON file per record
// inside state-named partition directories. A record's status field is
// authoritative; the file's partition mirrors it and every transition is
// a single atomic rename, so two claimants can never observe the same
// record.
package taskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/forge/pkg/models"
)

// Partition names a queue state directory.
type Partition string

const (
	PartitionQueued     Partition = "queued"
	PartitionProcessing Partition = "processing"
	PartitionDone       Partition = "done"
	PartitionFailed     Partition = "failed"
)

const archiveDir = "archive"

// Store is a durable, crash-safe task queue rooted at a directory.
// It supports many producers and exactly one consumer; the atomic
// rename in ClaimNext is the only synchronization required.
type Store struct {
	root   string
	logger *slog.Logger
}

// Handle identifies a claimed record until Complete is called.
type Handle struct {
	id string
}

// ID returns the claimed record's id.
func (h *Handle) ID() string { return h.id }

// New creates the partition layout under root if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	for _, p := range []Partition{PartitionQueued, PartitionProcessing, PartitionDone, PartitionFailed} {
		if err := os.MkdirAll(filepath.Join(root, string(p)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create partition %s: %w", p, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, archiveDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Enqueue writes a new record into the queued partition. Missing id,
// timestamp and status are filled in.
func (s *Store) Enqueue(rec *models.TaskRecord) error {
	if rec.Text == "" {
		return fmt.Errorf("task text must not be empty")
	}
	if rec.Kind != models.TaskKindTask && rec.Kind != models.TaskKindNote {
		return fmt.Errorf("unknown task kind: %q", rec.Kind)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Attachments == nil {
		rec.Attachments = []string{}
	}
	rec.Status = models.TaskStatusQueued

	if err := s.write(PartitionQueued, rec); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", rec.ID, err)
	}
	return nil
}

// ClaimNext atomically moves the oldest queued record into processing
// and returns it with a handle. It returns (nil, nil, nil) if the queue
// is empty. A record that cannot be read is logged and skipped for this
// cycle, never deleted.
func (s *Store) ClaimNext() (*Handle, *models.TaskRecord, error) {
	records, err := s.List(PartitionQueued)
	if err != nil {
		return nil, nil, err
	}

	for _, rec := range records {
		src := s.path(PartitionQueued, rec.ID)
		dst := s.path(PartitionProcessing, rec.ID)

		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Lost the race to another claimant; try the next record.
				continue
			}
			return nil, nil, fmt.Errorf("failed to claim task %s: %w", rec.ID, err)
		}

		rec.Status = models.TaskStatusProcessing
		if err := s.write(PartitionProcessing, rec); err != nil {
			// The claim itself succeeded; a stale status field inside the
			// file is tolerable because the partition is authoritative for
			// recovery.
			s.logger.Warn("failed to rewrite claimed record", "id", rec.ID, "error", err)
		}
		return &Handle{id: rec.ID}, rec, nil
	}

	return nil, nil, nil
}

// Complete moves a claimed record to its terminal partition. It is
// idempotent: a missing processing-side file is treated as already
// completed.
func (s *Store) Complete(h *Handle, success bool) error {
	target := PartitionFailed
	status := models.TaskStatusFailed
	if success {
		target = PartitionDone
		status = models.TaskStatusDone
	}

	src := s.path(PartitionProcessing, h.id)
	dst := s.path(target, h.id)

	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to complete task %s: %w", h.id, err)
	}

	if rec, err := s.read(target, h.id); err == nil {
		rec.Status = status
		if err := s.write(target, rec); err != nil {
			s.logger.Warn("failed to rewrite completed record", "id", h.id, "error", err)
		}
	}
	return nil
}

// List returns the partition's records ordered oldest first. Unreadable
// records are logged and skipped.
func (s *Store) List(p Partition) ([]*models.TaskRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(p)))
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", p, err)
	}

	records := make([]*models.TaskRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := s.read(p, idFromName(e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable task record", "partition", p, "file", e.Name(), "error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Count returns the number of records in a partition.
func (s *Store) Count(p Partition) (int, error) {
	records, err := s.List(p)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Archive bulk-moves a partition's records into a timestamped directory
// under the archive root. Nothing is ever deleted. It returns the
// archive directory and the number of records moved.
func (s *Store) Archive(p Partition) (string, int, error) {
	target := filepath.Join(s.root, archiveDir, fmt.Sprintf("%s_%s", p, time.Now().Format("20060102_150405")))
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, string(p)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read partition %s: %w", p, err)
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(s.root, string(p), e.Name())
		if err := os.Rename(src, filepath.Join(target, e.Name())); err != nil {
			return target, moved, fmt.Errorf("failed to archive %s: %w", e.Name(), err)
		}
		moved++
	}
	return target, moved, nil
}

// AppendToLatest appends note text to the most recently created queued
// task record. Note records never enter the pipeline themselves.
func (s *Store) AppendToLatest(text string) (*models.TaskRecord, error) {
	records, err := s.List(PartitionQueued)
	if err != nil {
		return nil, err
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.Kind != models.TaskKindTask {
			continue
		}
		rec.Text = rec.Text + "\n\nNote: " + text
		if err := s.write(PartitionQueued, rec); err != nil {
			return nil, fmt.Errorf("failed to update task %s: %w", rec.ID, err)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("no queued task to annotate")
}

// RecoverProcessing re-queues records stranded in processing by an
// unclean shutdown. Called once at pipeline startup; recovered records
// get a fresh attempt from the planning stage.
func (s *Store) RecoverProcessing() (int, error) {
	records, err := s.List(PartitionProcessing)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, rec := range records {
		if err := os.Rename(s.path(PartitionProcessing, rec.ID), s.path(PartitionQueued, rec.ID)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return recovered, fmt.Errorf("failed to recover task %s: %w", rec.ID, err)
		}
		rec.Status = models.TaskStatusQueued
		if err := s.write(PartitionQueued, rec); err != nil {
			s.logger.Warn("failed to rewrite recovered record", "id", rec.ID, "error", err)
		}
		recovered++
	}
	return recovered, nil
}

func (s *Store) path(p Partition, id string) string {
	return filepath.Join(s.root, string(p), id+".json")
}

func (s *Store) read(p Partition, id string) (*models.TaskRecord, error) {
	data, err := os.ReadFile(s.path(p, id))
	if err != nil {
		return nil, err
	}
	rec := &models.TaskRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("corrupt record: %w", err)
	}
	return rec, nil
}

// write serializes a record into its partition via a temp file and
// rename so readers never observe a partial write.
func (s *Store) write(p Partition, rec *models.TaskRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, string(p)), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path(p, rec.ID)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func idFromName(name string) string {
	return name[:len(name)-len(".json")]
}
