package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoplus/internal/model"
)

type attachmentRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	ContentType string `db:"content_type"`
	Data        []byte `db:"data"`
	CreatedAt   string `db:"created_at"`
}

// CreateAttachment inserts one attachment.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, a model.Attachment) error {
	data := a.Data
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, name, content_type, data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.ContentType, data, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating attachment %s: %w", a.ID, err)
	}
	return nil
}

// GetAttachments loads the attachments among ids. Missing ids are skipped.
func (s *SQLiteStore) GetAttachments(
	ctx context.Context,
	ids []string,
) (map[string]model.Attachment, error) {
	out := make(map[string]model.Attachment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, name, content_type, data, created_at FROM attachments WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("building attachment query: %w", err)
	}

	var rows []attachmentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	for _, r := range rows {
		createdAt, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, err
		}
		out[r.ID] = model.Attachment{
			ID:          r.ID,
			Name:        r.Name,
			ContentType: r.ContentType,
			Data:        r.Data,
			CreatedAt:   createdAt,
		}
	}
	return out, nil
}

// DeleteAttachments removes the attachments with the given ids.
func (s *SQLiteStore) DeleteAttachments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM attachments WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("building attachment delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting attachments: %w", err)
	}
	return nil
}
