package service

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/todoplus/internal/attachment"
	"github.com/nhle/todoplus/internal/model"
)

// mutate runs fn against the stored project in one transaction and returns
// the populated result.
func (s *Service) mutate(
	ctx context.Context,
	projectID string,
	fn func(p *model.Project, now time.Time) error,
) (*model.PopulatedProject, error) {
	now := s.now().UTC()
	p, err := s.store.MutateProject(ctx, projectID, func(p *model.Project) error {
		return fn(p, now)
	})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, *p)
}

// GetPopulatedProject fetches a project with its attachments expanded.
func (s *Service) GetPopulatedProject(ctx context.Context, projectID string) (*model.PopulatedProject, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, *p)
}

// AddProject creates a project and links it to the user. The two writes
// are separate; if linking fails the new project is deleted again, and
// anything a crash leaves behind is removed by Reconcile.
func (s *Service) AddProject(ctx context.Context, userID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := model.Project{ID: model.NewID(), Name: name, Tasks: []model.Task{}, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	if err := s.store.LinkProject(ctx, userID, p.ID); err != nil {
		// Detached context: the request may already be cancelled.
		if derr := s.store.DeleteProject(context.WithoutCancel(ctx), p.ID); derr != nil {
			s.logger.WarnContext(ctx, "compensating project delete failed",
				"project_id", p.ID, "error", derr)
		} else {
			s.logger.InfoContext(ctx, "unlinked project removed", "project_id", p.ID)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "project created", "project_id", p.ID, "user_id", userID)
	return s.populate(ctx, p)
}

// RenameProject sets the project name.
func (s *Service) RenameProject(ctx context.Context, projectID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		p.Rename(name, now)
		return nil
	})
}

// CompleteProject sets the project's completed flag.
func (s *Service) CompleteProject(ctx context.Context, projectID string, completed bool) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		p.SetCompleted(completed, now)
		return nil
	})
}

// DeleteProject removes the project and detaches it from its user.
// Attachments of its tasks are left for Reconcile.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "project deleted", "project_id", projectID)
	return nil
}

func (s *Service) AddTask(ctx context.Context, projectID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		p.AddTask(name, now)
		return nil
	})
}

func (s *Service) RenameTask(ctx context.Context, projectID, taskID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.RenameTask(taskID, name, now)
	})
}

func (s *Service) CompleteTask(ctx context.Context, projectID, taskID string, completed bool) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.CompleteTask(taskID, completed, now)
	})
}

// SetDueDate sets the task's due date; nil clears it.
func (s *Service) SetDueDate(ctx context.Context, projectID, taskID string, due *time.Time) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.SetDueDate(taskID, due, now)
	})
}

// SetReminderDate sets the task's reminder date; nil clears it.
func (s *Service) SetReminderDate(ctx context.Context, projectID, taskID string, at *time.Time) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.SetReminderDate(taskID, at, now)
	})
}

func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.DeleteTask(taskID, now)
	})
}

func (s *Service) AddSubtask(ctx context.Context, projectID, taskID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		_, err := p.AddSubtask(taskID, name, now)
		return err
	})
}

func (s *Service) RenameSubtask(ctx context.Context, projectID, taskID, subtaskID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.RenameSubtask(taskID, subtaskID, name, now)
	})
}

func (s *Service) CompleteSubtask(
	ctx context.Context,
	projectID, taskID, subtaskID string,
	completed bool,
) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.CompleteSubtask(taskID, subtaskID, completed, now)
	})
}

func (s *Service) DeleteSubtask(ctx context.Context, projectID, taskID, subtaskID string) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.DeleteSubtask(taskID, subtaskID, now)
	})
}

func (s *Service) AddNote(ctx context.Context, projectID, taskID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		_, err := p.AddNote(taskID, name, now)
		return err
	})
}

func (s *Service) RenameNote(ctx context.Context, projectID, taskID, noteID, name string) (*model.PopulatedProject, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.RenameNote(taskID, noteID, name, now)
	})
}

func (s *Service) DeleteNote(ctx context.Context, projectID, taskID, noteID string) (*model.PopulatedProject, error) {
	return s.mutate(ctx, projectID, func(p *model.Project, now time.Time) error {
		return p.DeleteNote(taskID, noteID, now)
	})
}

// SaveAttachments decodes every upload before writing anything, stores each
// attachment, then appends all new ids to the task in one update. When the
// append fails the stored attachments are deleted again.
func (s *Service) SaveAttachments(
	ctx context.Context,
	projectID, taskID string,
	uploads []attachment.Upload,
) (*model.PopulatedProject, error) {
	if len(uploads) == 0 {
		return nil, invalidField("attachments", "min", "at least one attachment is required")
	}
	files, err := attachment.DecodeAll(uploads)
	if err != nil {
		return nil, err
	}

	// Fail fast before phase 1 when the target does not exist.
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := p.LocateTask(taskID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ids := make([]string, 0, len(files))
	var total int
	for _, f := range files {
		a := model.Attachment{
			ID:          model.NewID(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
			CreatedAt:   now,
		}
		if err := s.store.CreateAttachment(ctx, a); err != nil {
			s.discardAttachments(ctx, ids)
			return nil, err
		}
		ids = append(ids, a.ID)
		total += len(f.Data)
	}

	linked, err := s.store.MutateProject(ctx, projectID, func(p *model.Project) error {
		return p.AttachFiles(taskID, ids, now)
	})
	if err != nil {
		s.discardAttachments(ctx, ids)
		return nil, err
	}

	s.logger.InfoContext(ctx, "attachments saved",
		"project_id", projectID, "task_id", taskID,
		"count", len(ids), "size", humanize.Bytes(uint64(total)))

	// The task references the attachments from here on; a failed read must
	// not discard them.
	return s.populate(ctx, *linked)
}

// discardAttachments is the compensating delete for SaveAttachments.
// Whatever it cannot remove is swept by Reconcile.
func (s *Service) discardAttachments(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.store.DeleteAttachments(context.WithoutCancel(ctx), ids); err != nil {
		s.logger.WarnContext(ctx, "compensating attachment delete failed",
			"count", len(ids), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "unlinked attachments removed", "count", len(ids))
}
