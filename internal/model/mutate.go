package model

import (
	"slices"
	"time"
)

// The methods below are the aggregate mutators. Each one re-resolves its
// target by id immediately before changing it and stamps UpdatedAt on the
// touched task and on the project. They are meant to run inside a store
// transaction that loaded p.

func (p *Project) touch(ti int, now time.Time) {
	if ti >= 0 {
		p.Tasks[ti].UpdatedAt = now
	}
	p.UpdatedAt = now
}

// Rename sets the project name.
func (p *Project) Rename(name string, now time.Time) {
	p.Name = name
	p.touch(-1, now)
}

// SetCompleted sets the project's completed flag.
func (p *Project) SetCompleted(completed bool, now time.Time) {
	p.Completed = completed
	p.touch(-1, now)
}

// AddTask appends an open task owned by p and returns it.
func (p *Project) AddTask(name string, now time.Time) Task {
	t := NewTask(p.ID, name, now)
	p.Tasks = append(p.Tasks, t)
	p.touch(-1, now)
	return t
}

// RenameTask renames the task with the given id.
func (p *Project) RenameTask(taskID, name string, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].Name = name
	p.touch(ti, now)
	return nil
}

// CompleteTask sets a task's completed flag. Subtasks are left alone.
func (p *Project) CompleteTask(taskID string, completed bool, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].Completed = completed
	p.touch(ti, now)
	return nil
}

// SetDueDate sets or, with nil, clears a task's due date.
func (p *Project) SetDueDate(taskID string, due *time.Time, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].DueDate = utcPtr(due)
	p.touch(ti, now)
	return nil
}

// SetReminderDate sets or, with nil, clears a task's reminder date.
func (p *Project) SetReminderDate(taskID string, reminder *time.Time, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].ReminderDate = utcPtr(reminder)
	p.touch(ti, now)
	return nil
}

// DeleteTask removes the task with the given id. Remaining tasks keep
// their relative order.
func (p *Project) DeleteTask(taskID string, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks = slices.Delete(p.Tasks, ti, ti+1)
	p.touch(-1, now)
	return nil
}

// AddSubtask appends an open subtask to the given task.
func (p *Project) AddSubtask(taskID, name string, now time.Time) (Subtask, error) {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return Subtask{}, err
	}
	s := NewSubtask(name, now)
	p.Tasks[ti].Subtasks = append(p.Tasks[ti].Subtasks, s)
	p.touch(ti, now)
	return s, nil
}

// RenameSubtask renames one subtask.
func (p *Project) RenameSubtask(taskID, subtaskID, name string, now time.Time) error {
	ti, si, err := p.LocateSubtask(taskID, subtaskID)
	if err != nil {
		return err
	}
	s := &p.Tasks[ti].Subtasks[si]
	s.Name = name
	s.UpdatedAt = now
	p.touch(ti, now)
	return nil
}

// CompleteSubtask sets one subtask's completed flag. The owning task's
// flag is independent.
func (p *Project) CompleteSubtask(taskID, subtaskID string, completed bool, now time.Time) error {
	ti, si, err := p.LocateSubtask(taskID, subtaskID)
	if err != nil {
		return err
	}
	s := &p.Tasks[ti].Subtasks[si]
	s.Completed = completed
	s.UpdatedAt = now
	p.touch(ti, now)
	return nil
}

// DeleteSubtask removes one subtask.
func (p *Project) DeleteSubtask(taskID, subtaskID string, now time.Time) error {
	ti, si, err := p.LocateSubtask(taskID, subtaskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].Subtasks = slices.Delete(p.Tasks[ti].Subtasks, si, si+1)
	p.touch(ti, now)
	return nil
}

// AddNote appends a note to the given task.
func (p *Project) AddNote(taskID, name string, now time.Time) (Note, error) {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return Note{}, err
	}
	n := NewNote(name, now)
	p.Tasks[ti].Notes = append(p.Tasks[ti].Notes, n)
	p.touch(ti, now)
	return n, nil
}

// RenameNote replaces a note's text.
func (p *Project) RenameNote(taskID, noteID, name string, now time.Time) error {
	ti, ni, err := p.LocateNote(taskID, noteID)
	if err != nil {
		return err
	}
	n := &p.Tasks[ti].Notes[ni]
	n.Name = name
	n.UpdatedAt = now
	p.touch(ti, now)
	return nil
}

// DeleteNote removes one note.
func (p *Project) DeleteNote(taskID, noteID string, now time.Time) error {
	ti, ni, err := p.LocateNote(taskID, noteID)
	if err != nil {
		return err
	}
	p.Tasks[ti].Notes = slices.Delete(p.Tasks[ti].Notes, ni, ni+1)
	p.touch(ti, now)
	return nil
}

// AttachFiles appends attachment ids to a task in the given order.
func (p *Project) AttachFiles(taskID string, ids []string, now time.Time) error {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return err
	}
	p.Tasks[ti].Attachments = append(p.Tasks[ti].Attachments, ids...)
	p.touch(ti, now)
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
