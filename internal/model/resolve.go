package model

import "github.com/nhle/todoplus/internal/apperr"

// locate scans items for id and returns the first matching index together
// with the number of matches. Callers treat matches > 1 as corrupt data.
func locate[T any](items []T, id string, idOf func(*T) string) (index, matches int) {
	index = -1
	for i := range items {
		if idOf(&items[i]) != id {
			continue
		}
		if index < 0 {
			index = i
		}
		matches++
	}
	return index, matches
}

func taskID(t *Task) string       { return t.ID }
func subtaskID(s *Subtask) string { return s.ID }
func noteID(n *Note) string       { return n.ID }

// LocateTask returns the position of the task with the given id.
func (p *Project) LocateTask(id string) (int, error) {
	i, n := locate(p.Tasks, id, taskID)
	switch {
	case n == 0:
		return -1, apperr.NotFound("task %s not found in project %s", id, p.ID)
	case n > 1:
		return -1, apperr.Integrity("task id %s appears %d times in project %s", id, n, p.ID)
	}
	return i, nil
}

// LocateSubtask returns the task position and the subtask position within
// that task.
func (p *Project) LocateSubtask(taskID, id string) (int, int, error) {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return -1, -1, err
	}
	si, n := locate(p.Tasks[ti].Subtasks, id, subtaskID)
	switch {
	case n == 0:
		return -1, -1, apperr.NotFound("subtask %s not found in task %s", id, taskID)
	case n > 1:
		return -1, -1, apperr.Integrity("subtask id %s appears %d times in task %s", id, n, taskID)
	}
	return ti, si, nil
}

// LocateNote returns the task position and the note position within that
// task.
func (p *Project) LocateNote(taskID, id string) (int, int, error) {
	ti, err := p.LocateTask(taskID)
	if err != nil {
		return -1, -1, err
	}
	ni, n := locate(p.Tasks[ti].Notes, id, noteID)
	switch {
	case n == 0:
		return -1, -1, apperr.NotFound("note %s not found in task %s", id, taskID)
	case n > 1:
		return -1, -1, apperr.Integrity("note id %s appears %d times in task %s", id, n, taskID)
	}
	return ti, ni, nil
}
