package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoplus/internal/model"
)

// DeleteOrphanProjects removes projects older than cutoff with no user link.
// These are left behind when addProject fails between its two writes.
func (s *SQLiteStore) DeleteOrphanProjects(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &ids, `
			SELECT id FROM projects
			WHERE created_at < ?
			  AND id NOT IN (SELECT project_id FROM user_projects)
			ORDER BY created_at`, formatTime(cutoff)); err != nil {
			return fmt.Errorf("finding orphan projects: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		query, args, err := sqlx.In("DELETE FROM projects WHERE id IN (?)", ids)
		if err != nil {
			return fmt.Errorf("building project delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("deleting orphan projects: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteOrphanAttachments removes attachments older than cutoff that no
// task references. References live inside the projects' task documents, so
// the referenced set is collected in Go.
func (s *SQLiteStore) DeleteOrphanAttachments(ctx context.Context, cutoff time.Time) ([]string, error) {
	var orphans []string
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var candidates []string
		if err := tx.SelectContext(ctx, &candidates,
			"SELECT id FROM attachments WHERE created_at < ? ORDER BY created_at",
			formatTime(cutoff)); err != nil {
			return fmt.Errorf("finding old attachments: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		referenced, err := referencedAttachments(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range candidates {
			if _, ok := referenced[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) == 0 {
			return nil
		}

		query, args, err := sqlx.In("DELETE FROM attachments WHERE id IN (?)", orphans)
		if err != nil {
			return fmt.Errorf("building attachment delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("deleting orphan attachments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}

func referencedAttachments(ctx context.Context, tx *sqlx.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryxContext(ctx, "SELECT id, tasks FROM projects")
	if err != nil {
		return nil, fmt.Errorf("scanning project tasks: %w", err)
	}
	defer rows.Close()

	referenced := make(map[string]struct{})
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		var tasks []model.Task
		if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
			return nil, fmt.Errorf("decoding tasks of project %s: %w", id, err)
		}
		for _, t := range tasks {
			for _, a := range t.Attachments {
				referenced[a] = struct{}{}
			}
		}
	}
	return referenced, rows.Err()
}
