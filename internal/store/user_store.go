package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/model"
)

type userRow struct {
	ID                     string `db:"id"`
	Email                  string `db:"email"`
	WeeklyProductivityGoal int64  `db:"weekly_productivity_goal"`
	CreatedAt              string `db:"created_at"`
}

// GetOrCreateUser returns the user registered under email, inserting it on
// first sight.
func (s *SQLiteStore) GetOrCreateUser(
	ctx context.Context,
	email string,
	now time.Time,
) (*model.User, bool, error) {
	var (
		user    *model.User
		created bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, weekly_productivity_goal, created_at)
			VALUES (?, ?, 0, ?)
			ON CONFLICT(email) DO NOTHING`,
			model.NewID(), email, formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("creating user %s: %w", email, err)
		}
		rows, _ := result.RowsAffected()
		created = rows > 0

		var row userRow
		if err := tx.GetContext(ctx, &row,
			"SELECT id, email, weekly_productivity_goal, created_at FROM users WHERE email = ?",
			email); err != nil {
			return fmt.Errorf("getting user %s: %w", email, err)
		}
		user, err = loadUser(ctx, tx, row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// GetUser retrieves a user with its project and record id lists.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q sqlx.QueryerContext, id string) (*model.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT id, email, weekly_productivity_goal, created_at FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return loadUser(ctx, q, row)
}

func loadUser(ctx context.Context, q sqlx.QueryerContext, row userRow) (*model.User, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:                     row.ID,
		Email:                  row.Email,
		WeeklyProductivityGoal: row.WeeklyProductivityGoal,
		CreatedAt:              createdAt,
		Projects:               []string{},
		ProductivityRecords:    []string{},
	}

	if err := sqlx.SelectContext(ctx, q, &u.Projects,
		"SELECT project_id FROM user_projects WHERE user_id = ? ORDER BY position", row.ID); err != nil {
		return nil, fmt.Errorf("listing projects of user %s: %w", row.ID, err)
	}
	if err := sqlx.SelectContext(ctx, q, &u.ProductivityRecords,
		"SELECT record_id FROM user_productivity_records WHERE user_id = ? ORDER BY position",
		row.ID); err != nil {
		return nil, fmt.Errorf("listing records of user %s: %w", row.ID, err)
	}
	return u, nil
}

// SetWeeklyGoal sets the user's weekly productivity goal in seconds.
func (s *SQLiteStore) SetWeeklyGoal(ctx context.Context, userID string, goal int64) error {
	if goal < 0 {
		return apperr.Invalid("weekly productivity goal must not be negative")
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET weekly_productivity_goal = ? WHERE id = ?", goal, userID)
	if err != nil {
		return fmt.Errorf("setting weekly goal of user %s: %w", userID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("user %s not found", userID)
	}
	return nil
}

// LinkProject appends projectID to the user's project list.
func (s *SQLiteStore) LinkProject(ctx context.Context, userID, projectID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireRow(ctx, tx, "users", userID); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, "projects", projectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_projects (user_id, project_id, position)
			SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM user_projects WHERE user_id = ?
			ON CONFLICT(user_id, project_id) DO NOTHING`,
			userID, projectID, userID,
		)
		if err != nil {
			return fmt.Errorf("linking project %s to user %s: %w", projectID, userID, err)
		}
		return nil
	})
}

// ListUserProjects returns the user's projects in link order.
func (s *SQLiteStore) ListUserProjects(ctx context.Context, userID string) ([]model.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.name, p.completed, p.tasks, p.created_at, p.updated_at
		FROM projects p
		JOIN user_projects up ON up.project_id = p.id
		WHERE up.user_id = ?
		ORDER BY up.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects of user %s: %w", userID, err)
	}

	projects := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// requireRow returns NOT_FOUND unless table has a row with the given id.
// table is always a constant from this package.
func requireRow(ctx context.Context, q sqlx.QueryerContext, table, id string) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n,
		"SELECT COUNT(*) FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("checking %s %s: %w", table, id, err)
	}
	if n == 0 {
		return apperr.NotFound("%s %s not found", singular(table), id)
	}
	return nil
}

func singular(table string) string {
	switch table {
	case "users":
		return "user"
	case "projects":
		return "project"
	case "productivity_records":
		return "productivity record"
	default:
		return table
	}
}
