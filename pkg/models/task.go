package models

import "time"

type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

type TaskKind string

const (
	TaskKindTask TaskKind = "task"
	TaskKindNote TaskKind = "note"
)

// TaskRecord is the unit of work representing one user directive.
// A record's ID never changes; its status is authoritative and the
// store's physical layout merely mirrors it.
type TaskRecord struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	Text        string     `json:"text"`
	Status      TaskStatus `json:"status"`
	Attachments []string   `json:"attachments"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
