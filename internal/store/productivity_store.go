package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/model"
)

type recordRow struct {
	ID                   string `db:"id"`
	ProductivityGoal     int64  `db:"productivity_goal"`
	ProductivityAchieved int64  `db:"productivity_achieved"`
	Entries              string `db:"entries"`
	CreatedAt            string `db:"created_at"`
}

const recordColumns = "r.id, r.productivity_goal, r.productivity_achieved, r.entries, r.created_at"

func (r recordRow) toModel() (*model.ProductivityRecord, error) {
	rec := &model.ProductivityRecord{
		ID:                   r.ID,
		ProductivityGoal:     r.ProductivityGoal,
		ProductivityAchieved: r.ProductivityAchieved,
	}
	if err := json.Unmarshal([]byte(r.Entries), &rec.Entries); err != nil {
		return nil, fmt.Errorf("decoding entries of record %s: %w", r.ID, err)
	}
	if rec.Entries == nil {
		rec.Entries = []model.Entry{}
	}
	var err error
	if rec.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeEntries(rec *model.ProductivityRecord) (string, error) {
	if rec.Entries == nil {
		rec.Entries = []model.Entry{}
	}
	b, err := json.Marshal(rec.Entries)
	if err != nil {
		return "", fmt.Errorf("encoding entries of record %s: %w", rec.ID, err)
	}
	return string(b), nil
}

func recordsFromRows(rows []recordRow) ([]model.ProductivityRecord, error) {
	out := make([]model.ProductivityRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// EnsureRecord finds the user's most recent record created in [from, to).
// When there is none it inserts fresh and links it, all in one transaction,
// so concurrent callers on the same day end up with a single record.
func (s *SQLiteStore) EnsureRecord(
	ctx context.Context,
	userID string,
	from, to time.Time,
	fresh model.ProductivityRecord,
) (*model.ProductivityRecord, bool, error) {
	var (
		rec     *model.ProductivityRecord
		created bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireRow(ctx, tx, "users", userID); err != nil {
			return err
		}

		var row recordRow
		err := tx.GetContext(ctx, &row, `
			SELECT `+recordColumns+`
			FROM productivity_records r
			JOIN user_productivity_records ur ON ur.record_id = r.id
			WHERE ur.user_id = ? AND r.created_at >= ? AND r.created_at < ?
			ORDER BY r.created_at DESC
			LIMIT 1`,
			userID, formatTime(from), formatTime(to),
		)
		switch {
		case err == nil:
			rec, err = row.toModel()
			return err
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("finding record of user %s: %w", userID, err)
		}

		entries, err := encodeEntries(&fresh)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO productivity_records
				(id, productivity_goal, productivity_achieved, entries, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			fresh.ID, fresh.ProductivityGoal, fresh.ProductivityAchieved, entries,
			formatTime(fresh.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("creating record %s: %w", fresh.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_productivity_records (user_id, record_id, position)
			SELECT ?, ?, COALESCE(MAX(position), -1) + 1
			FROM user_productivity_records WHERE user_id = ?`,
			userID, fresh.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("linking record %s to user %s: %w", fresh.ID, userID, err)
		}

		rec = &fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, created, nil
}

// GetRecord retrieves one productivity record.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.ProductivityRecord, error) {
	return getRecord(ctx, s.db, id)
}

func getRecord(ctx context.Context, q sqlx.QueryerContext, id string) (*model.ProductivityRecord, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT "+recordColumns+" FROM productivity_records r WHERE r.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("productivity record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	return row.toModel()
}

// ListUserRecords returns all of the user's records in link order.
func (s *SQLiteStore) ListUserRecords(
	ctx context.Context,
	userID string,
) ([]model.ProductivityRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+recordColumns+`
		FROM productivity_records r
		JOIN user_productivity_records ur ON ur.record_id = r.id
		WHERE ur.user_id = ?
		ORDER BY ur.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing records of user %s: %w", userID, err)
	}
	return recordsFromRows(rows)
}

// ListUserRecordsBetween returns the user's records created in [from, to),
// oldest first.
func (s *SQLiteStore) ListUserRecordsBetween(
	ctx context.Context,
	userID string,
	from, to time.Time,
) ([]model.ProductivityRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+recordColumns+`
		FROM productivity_records r
		JOIN user_productivity_records ur ON ur.record_id = r.id
		WHERE ur.user_id = ? AND r.created_at >= ? AND r.created_at < ?
		ORDER BY r.created_at`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("listing records of user %s: %w", userID, err)
	}
	return recordsFromRows(rows)
}

// ListRecordIDs returns the id of every stored record.
func (s *SQLiteStore) ListRecordIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM productivity_records ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("listing record ids: %w", err)
	}
	return ids, nil
}

// MutateRecord applies fn to the stored record inside one transaction, so an
// appended entry and the matching total are written together.
func (s *SQLiteStore) MutateRecord(
	ctx context.Context,
	id string,
	fn RecordMutation,
) (*model.ProductivityRecord, error) {
	var out *model.ProductivityRecord
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		rec, err := getRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		if rec.ProductivityGoal < 0 {
			return apperr.Invalid("productivity goal must not be negative")
		}

		entries, err := encodeEntries(rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE productivity_records
			SET productivity_goal = ?, productivity_achieved = ?, entries = ?
			WHERE id = ?`,
			rec.ProductivityGoal, rec.ProductivityAchieved, entries, id,
		)
		if err != nil {
			return fmt.Errorf("updating record %s: %w", id, err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
