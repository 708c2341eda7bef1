package service

import (
	"context"
	"time"

	"github.com/nhle/todoplus/internal/model"
)

// MaxStatsDays bounds the stats window.
const MaxStatsDays = 366

// dayBounds returns [start, end) of the calendar day containing t.
func (s *Service) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// EnsureTodayRecord returns the user's record for today, creating and
// linking an empty one if needed. Repeated calls on one day return the
// same record.
func (s *Service) EnsureTodayRecord(ctx context.Context, userID string) (*model.ProductivityRecord, error) {
	now := s.now()
	from, to := s.dayBounds(now)

	fresh := model.ProductivityRecord{
		ID:        model.NewID(),
		Entries:   []model.Entry{},
		CreatedAt: now.UTC(),
	}
	rec, created, err := s.store.EnsureRecord(ctx, userID, from, to, fresh)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.InfoContext(ctx, "productivity record created",
			"user_id", userID, "record_id", rec.ID, "day", from.Format(time.DateOnly))
	}
	return rec, nil
}

// RecordSession credits one focus session on task to today's record.
func (s *Service) RecordSession(ctx context.Context, userID string, task model.Task) (*model.ProductivityRecord, error) {
	rec, err := s.EnsureTodayRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CreateProductivityEntry(ctx, rec.ID, task)
}

// CreateProductivityEntry appends a session entry holding a snapshot of task
// to the given record. The entry and the achieved total change together.
func (s *Service) CreateProductivityEntry(
	ctx context.Context,
	recordID string,
	task model.Task,
) (*model.ProductivityRecord, error) {
	entry := model.Entry{
		ID:             model.NewID(),
		Task:           task.Snapshot(),
		ProductiveTime: s.session,
		CreatedAt:      s.now().UTC(),
	}
	rec, err := s.store.MutateRecord(ctx, recordID, func(r *model.ProductivityRecord) error {
		r.AddEntry(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "session recorded",
		"record_id", recordID, "task_id", task.ID, "achieved", rec.ProductivityAchieved)
	return rec, nil
}

// RecomputeToday rewrites today's achieved total from its entries. A user
// with no record today gets an empty one.
func (s *Service) RecomputeToday(ctx context.Context, userID string) (*model.ProductivityRecord, error) {
	rec, err := s.EnsureTodayRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec, _, err = s.recompute(ctx, rec.ID)
	return rec, err
}

// recompute is the single repair path for a record's derived total.
func (s *Service) recompute(ctx context.Context, recordID string) (*model.ProductivityRecord, bool, error) {
	var drifted bool
	rec, err := s.store.MutateRecord(ctx, recordID, func(r *model.ProductivityRecord) error {
		drifted = r.Recompute()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if drifted {
		s.logger.WarnContext(ctx, "productivity total repaired",
			"record_id", recordID, "achieved", rec.ProductivityAchieved)
	}
	return rec, drifted, nil
}

// RecomputeAll repairs every stored record and returns how many had drifted.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListRecordIDs(ctx)
	if err != nil {
		return 0, err
	}
	var fixed int
	for _, id := range ids {
		_, drifted, err := s.recompute(ctx, id)
		if err != nil {
			return fixed, err
		}
		if drifted {
			fixed++
		}
	}
	s.logger.InfoContext(ctx, "productivity totals recomputed", "records", len(ids), "repaired", fixed)
	return fixed, nil
}

// SetGoal sets a record's daily goal in seconds.
func (s *Service) SetGoal(ctx context.Context, recordID string, goal int64) (*model.ProductivityRecord, error) {
	if goal < 0 {
		return nil, invalidField("productivityGoal", "min", "productivity goal must not be negative")
	}
	return s.store.MutateRecord(ctx, recordID, func(r *model.ProductivityRecord) error {
		r.ProductivityGoal = goal
		return nil
	})
}

// Stats returns one entry per calendar day for the last days days, oldest
// first and ending today. Days without a record have a nil Record.
func (s *Service) Stats(ctx context.Context, userID string, days int) ([]model.DayStat, error) {
	if days < 1 || days > MaxStatsDays {
		return nil, invalidField("range", "range", "range must be between 1 and 366 days")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	todayStart, todayEnd := s.dayBounds(s.now())
	from := todayStart.AddDate(0, 0, -(days - 1))

	records, err := s.store.ListUserRecordsBetween(ctx, userID, from, todayEnd)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]*model.ProductivityRecord, len(records))
	for i := range records {
		// ascending order, so the latest record of a day wins
		byDay[records[i].CreatedAt.In(s.loc).Format(time.DateOnly)] = &records[i]
	}

	stats := make([]model.DayStat, 0, days)
	for d := from; d.Before(todayEnd); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		stats = append(stats, model.DayStat{Date: key, Record: byDay[key]})
	}
	return stats, nil
}
