package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/model"
)

type projectRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Completed int    `db:"completed"`
	Tasks     string `db:"tasks"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

const projectColumns = "id, name, completed, tasks, created_at, updated_at"

func (r projectRow) toModel() (*model.Project, error) {
	p := &model.Project{ID: r.ID, Name: r.Name, Completed: r.Completed != 0}
	if err := json.Unmarshal([]byte(r.Tasks), &p.Tasks); err != nil {
		return nil, fmt.Errorf("decoding tasks of project %s: %w", r.ID, err)
	}
	var err error
	if p.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}

func encodeTasks(p *model.Project) (string, error) {
	p.Normalize()
	b, err := json.Marshal(p.Tasks)
	if err != nil {
		return "", fmt.Errorf("encoding tasks of project %s: %w", p.ID, err)
	}
	return string(b), nil
}

// CreateProject inserts a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project model.Project) error {
	tasks, err := encodeTasks(&project)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, completed, tasks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, boolToInt(project.Completed), tasks,
		formatTime(project.CreatedAt), formatTime(project.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating project %s: %w", project.ID, err)
	}
	return nil
}

// GetProject retrieves a single project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Project, error) {
	var row projectRow
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	return row.toModel()
}

// DeleteProject removes a project. The user_projects foreign key cascades,
// so no user keeps a dangling reference.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("project %s not found", id)
	}
	return nil
}

// MutateProject applies fn to the stored project inside one transaction.
// Nothing is written when fn fails.
func (s *SQLiteStore) MutateProject(
	ctx context.Context,
	id string,
	fn ProjectMutation,
) (*model.Project, error) {
	var out *model.Project
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, err := getProject(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		p.ID = id

		tasks, err := encodeTasks(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE projects SET name = ?, completed = ?, tasks = ?, updated_at = ?
			WHERE id = ?`,
			p.Name, boolToInt(p.Completed), tasks, formatTime(p.UpdatedAt), id,
		)
		if err != nil {
			return fmt.Errorf("updating project %s: %w", id, err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
