package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new UUIDv7 string. v7 ids sort by creation time and
// compare as plain strings.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Project is the aggregate root for tasks. Tasks are embedded and owned
// exclusively by the project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is embedded in exactly one Project. Its position in Project.Tasks is
// not stable across mutations; always re-resolve it by id.
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Completed    bool       `json:"completed"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	Notes        []Note     `json:"notes"`
	Subtasks     []Subtask  `json:"subtasks"`
	ProjectID    string     `json:"projectId"`
	Attachments  []string   `json:"attachments"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Subtask is embedded in exactly one Task.
type Subtask struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Note is embedded in exactly one Task.
type Note struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTask builds an open task owned by projectID.
func NewTask(projectID, name string, now time.Time) Task {
	return Task{
		ID:          NewID(),
		Name:        name,
		ProjectID:   projectID,
		Notes:       []Note{},
		Subtasks:    []Subtask{},
		Attachments: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewSubtask builds an open subtask.
func NewSubtask(name string, now time.Time) Subtask {
	return Subtask{ID: NewID(), Name: name, CreatedAt: now, UpdatedAt: now}
}

// NewNote builds a note.
func NewNote(name string, now time.Time) Note {
	return Note{ID: NewID(), Name: name, CreatedAt: now, UpdatedAt: now}
}

// Normalize replaces nil collections with empty ones so the aggregate
// always serializes with arrays rather than nulls.
func (p *Project) Normalize() {
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.Notes == nil {
			t.Notes = []Note{}
		}
		if t.Subtasks == nil {
			t.Subtasks = []Subtask{}
		}
		if t.Attachments == nil {
			t.Attachments = []string{}
		}
	}
}

// AttachmentIDs returns every attachment id referenced by the project's
// tasks, in task order.
func (p *Project) AttachmentIDs() []string {
	var ids []string
	for _, t := range p.Tasks {
		ids = append(ids, t.Attachments...)
	}
	return ids
}

// Snapshot returns a deep copy of t. Productivity entries store snapshots so
// later edits to the live task never rewrite history.
func (t Task) Snapshot() Task {
	c := t
	c.Notes = append([]Note{}, t.Notes...)
	c.Subtasks = append([]Subtask{}, t.Subtasks...)
	c.Attachments = append([]string{}, t.Attachments...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.ReminderDate != nil {
		d := *t.ReminderDate
		c.ReminderDate = &d
	}
	return c
}
