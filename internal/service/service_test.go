package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/attachment"
	"github.com/nhle/todoplus/internal/model"
	"github.com/nhle/todoplus/internal/service"
	"github.com/nhle/todoplus/internal/store"
	"github.com/nhle/todoplus/tests/testutil"
)

var start = time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *service.Service
	store store.Store
	clock *testutil.Clock
}

func newFixture(t *testing.T, wrap ...func(store.Store) store.Store) *fixture {
	t.Helper()
	var st store.Store = testutil.NewTestStore(t)
	for _, w := range wrap {
		st = w(st)
	}
	clock := testutil.NewClock(start)
	svc := service.New(st,
		service.WithClock(clock.Now),
		service.WithLocation(time.UTC),
		service.WithSessionLength(25*time.Minute),
	)
	return &fixture{svc: svc, store: st, clock: clock}
}

func (f *fixture) user(t *testing.T, email string) *model.UserData {
	t.Helper()
	u, err := f.svc.UserData(context.Background(), email)
	require.NoError(t, err)
	return u
}

func (f *fixture) project(t *testing.T, name string) (*model.UserData, *model.PopulatedProject) {
	t.Helper()
	u := f.user(t, "owner@example.com")
	p, err := f.svc.AddProject(context.Background(), u.ID, name)
	require.NoError(t, err)
	return u, p
}

func TestAddTaskThenGetProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")

	_, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)

	got, err := f.svc.GetPopulatedProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "T1", got.Tasks[0].Name)
	assert.Equal(t, p.ID, got.Tasks[0].ProjectID)
	assert.False(t, got.Tasks[0].Completed)
}

func TestAddTaskRequiresName(t *testing.T) {
	f := newFixture(t)
	_, p := f.project(t, "P")

	_, err := f.svc.AddTask(context.Background(), p.ID, "   ")
	assert.True(t, apperr.IsInvalid(err))
}

func TestDeleteTaskLeavesSiblingsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")

	var err error
	for _, name := range []string{"a", "b", "c", "d"} {
		p, err = f.svc.AddTask(ctx, p.ID, name)
		require.NoError(t, err)
	}
	p, err = f.svc.AddSubtask(ctx, p.ID, p.Tasks[3].ID, "sub")
	require.NoError(t, err)

	victim := p.Tasks[1].Task
	before := map[string]model.Task{}
	for _, task := range p.Tasks {
		if task.ID != victim.ID {
			before[task.ID] = task.Task
		}
	}

	f.clock.Advance(time.Minute)
	after, err := f.svc.DeleteTask(ctx, p.ID, victim.ID)
	require.NoError(t, err)

	got := map[string]model.Task{}
	for _, task := range after.Tasks {
		got[task.ID] = task.Task
	}
	assert.NotContains(t, got, victim.ID)
	assert.Len(t, got, len(before))
	for id, want := range before {
		assert.Equal(t, want.Name, got[id].Name)
		assert.Len(t, got[id].Subtasks, len(want.Subtasks))
		assert.True(t, want.UpdatedAt.Equal(got[id].UpdatedAt))
	}
}

func TestSubtaskCompletionIsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")

	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)
	taskID := p.Tasks[0].ID
	p, err = f.svc.AddSubtask(ctx, p.ID, taskID, "S1")
	require.NoError(t, err)
	_, err = f.svc.CompleteSubtask(ctx, p.ID, taskID, p.Tasks[0].Subtasks[0].ID, true)
	require.NoError(t, err)

	got, err := f.svc.GetPopulatedProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Tasks[0].Subtasks[0].Completed)
	assert.False(t, got.Tasks[0].Completed)
}

func TestSetDueDateRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)

	due := time.Date(2026, 6, 1, 17, 45, 12, 345, time.FixedZone("CEST", 2*60*60))
	_, err = f.svc.SetDueDate(ctx, p.ID, p.Tasks[0].ID, &due)
	require.NoError(t, err)
	reminder := due.Add(-time.Hour)
	_, err = f.svc.SetReminderDate(ctx, p.ID, p.Tasks[0].ID, &reminder)
	require.NoError(t, err)

	got, err := f.svc.GetPopulatedProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Tasks[0].DueDate)
	require.NotNil(t, got.Tasks[0].ReminderDate)
	assert.True(t, due.Truncate(time.Minute).Equal(got.Tasks[0].DueDate.Truncate(time.Minute)))
	assert.True(t, reminder.Truncate(time.Minute).Equal(got.Tasks[0].ReminderDate.Truncate(time.Minute)))
}

func TestNestedMutatorsReportNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)
	taskID := p.Tasks[0].ID

	_, err = f.svc.RenameTask(ctx, p.ID, "missing", "x")
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.RenameSubtask(ctx, p.ID, taskID, "missing", "x")
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.DeleteNote(ctx, p.ID, taskID, "missing")
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.AddTask(ctx, "no-such-project", "x")
	assert.True(t, apperr.IsNotFound(err))
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, p := f.project(t, "Draft")

	p, err := f.svc.RenameProject(ctx, p.ID, "Final")
	require.NoError(t, err)
	assert.Equal(t, "Final", p.Name)

	p, err = f.svc.CompleteProject(ctx, p.ID, true)
	require.NoError(t, err)
	assert.True(t, p.Completed)

	p, err = f.svc.AddTask(ctx, p.ID, "T")
	require.NoError(t, err)
	p, err = f.svc.AddNote(ctx, p.ID, p.Tasks[0].ID, "remember")
	require.NoError(t, err)
	p, err = f.svc.RenameNote(ctx, p.ID, p.Tasks[0].ID, p.Tasks[0].Notes[0].ID, "remembered")
	require.NoError(t, err)
	assert.Equal(t, "remembered", p.Tasks[0].Notes[0].Name)
	p, err = f.svc.CompleteTask(ctx, p.ID, p.Tasks[0].ID, true)
	require.NoError(t, err)
	assert.True(t, p.Tasks[0].Completed)

	require.NoError(t, f.svc.DeleteProject(ctx, p.ID))

	data, err := f.svc.UserData(ctx, u.Email)
	require.NoError(t, err)
	assert.Empty(t, data.Projects)
	assert.Empty(t, data.User.Projects)

	_, err = f.svc.GetPopulatedProject(ctx, p.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUserDataCreatesEmptyUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.UserData(ctx, "  E@X.com ")
	require.NoError(t, err)
	assert.Equal(t, "e@x.com", u.Email)
	assert.Zero(t, u.WeeklyProductivityGoal)
	assert.Empty(t, u.Projects)
	assert.Empty(t, u.ProductivityRecords)

	_, err = f.svc.RecordSession(ctx, u.ID, model.Task{ID: "t", Name: "focus"})
	require.NoError(t, err)

	again, err := f.svc.UserData(ctx, "e@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Len(t, again.ProductivityRecords, 1)
	assert.Len(t, again.User.ProductivityRecords, 1)

	_, err = f.svc.UserData(ctx, " ")
	assert.True(t, apperr.IsInvalid(err))
}

func TestRecordSessionIsAdditive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "focus@example.com")

	const n = 5
	var rec *model.ProductivityRecord
	var err error
	for i := 0; i < n; i++ {
		rec, err = f.svc.RecordSession(ctx, u.ID, model.Task{ID: model.NewID(), Name: "deep work"})
		require.NoError(t, err)
		f.clock.Advance(30 * time.Minute)
	}

	assert.Len(t, rec.Entries, n)
	assert.Equal(t, n*model.DefaultSessionSeconds, rec.ProductivityAchieved)
	assert.Equal(t, rec.SumEntries(), rec.ProductivityAchieved)
}

func TestRecordSessionConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "busy@example.com")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordSession(ctx, u.ID, model.Task{ID: model.NewID(), Name: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	records, err := f.store.ListUserRecords(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Entries, n)
	assert.Equal(t, n*model.DefaultSessionSeconds, records[0].ProductivityAchieved)
}

func TestEntrySnapshotIgnoresLaterEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "original")
	require.NoError(t, err)

	rec, err := f.svc.RecordSession(ctx, u.ID, p.Tasks[0].Task)
	require.NoError(t, err)
	_, err = f.svc.RenameTask(ctx, p.ID, p.Tasks[0].ID, "renamed")
	require.NoError(t, err)

	got, err := f.store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Entries[0].Task.Name)
}

func TestEnsureTodayRecordIsIdempotentPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "daily@example.com")

	first, err := f.svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Hour)
	second, err := f.svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	f.clock.Advance(5 * time.Hour) // now past midnight
	third, err := f.svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	records, err := f.store.ListUserRecords(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDayBoundaryFollowsLocation(t *testing.T) {
	st := testutil.NewTestStore(t)
	tokyo := time.FixedZone("JST", 9*60*60)
	// 23:30 UTC on the 10th is already the 11th in Tokyo.
	clock := testutil.NewClock(time.Date(2026, 4, 10, 23, 30, 0, 0, time.UTC))
	svc := service.New(st, service.WithClock(clock.Now), service.WithLocation(tokyo))
	ctx := context.Background()
	u, err := svc.UserData(ctx, "tokyo@example.com")
	require.NoError(t, err)

	first, err := svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)
	clock.Advance(time.Hour) // 00:30 UTC on the 11th, still the 11th in Tokyo
	second, err := svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRecomputeTodayRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "drift@example.com")

	rec, err := f.svc.RecordSession(ctx, u.ID, model.Task{ID: "t", Name: "x"})
	require.NoError(t, err)
	_, err = f.store.MutateRecord(ctx, rec.ID, func(r *model.ProductivityRecord) error {
		r.ProductivityAchieved = 7
		return nil
	})
	require.NoError(t, err)

	fixed, err := f.svc.RecomputeToday(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSessionSeconds, fixed.ProductivityAchieved)

	repaired, err := f.svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestGoals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "goals@example.com")
	rec, err := f.svc.EnsureTodayRecord(ctx, u.ID)
	require.NoError(t, err)

	rec, err = f.svc.SetGoal(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, rec.ProductivityGoal)
	rec, err = f.svc.SetGoal(ctx, rec.ID, 7200)
	require.NoError(t, err)
	assert.Equal(t, int64(7200), rec.ProductivityGoal)

	_, err = f.svc.SetGoal(ctx, rec.ID, -1)
	assert.True(t, apperr.IsInvalid(err))
	_, err = f.svc.SetGoal(ctx, "missing", 1)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, f.svc.SetWeeklyGoal(ctx, u.ID, 36000))
	assert.True(t, apperr.IsInvalid(f.svc.SetWeeklyGoal(ctx, u.ID, -1)))

	data, err := f.svc.UserData(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, int64(36000), data.WeeklyProductivityGoal)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "stats@example.com")

	_, err := f.svc.RecordSession(ctx, u.ID, model.Task{ID: "a"})
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.RecordSession(ctx, u.ID, model.Task{ID: "b"})
	require.NoError(t, err)
	_, err = f.svc.RecordSession(ctx, u.ID, model.Task{ID: "c"})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, u.ID, 3)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "2026-04-10", stats[0].Date)
	assert.Equal(t, "2026-04-11", stats[1].Date)
	assert.Equal(t, "2026-04-12", stats[2].Date)
	require.NotNil(t, stats[0].Record)
	assert.Equal(t, model.DefaultSessionSeconds, stats[0].Record.ProductivityAchieved)
	assert.Nil(t, stats[1].Record)
	require.NotNil(t, stats[2].Record)
	assert.Equal(t, 2*model.DefaultSessionSeconds, stats[2].Record.ProductivityAchieved)

	_, err = f.svc.Stats(ctx, u.ID, 0)
	assert.True(t, apperr.IsInvalid(err))
	_, err = f.svc.Stats(ctx, "nobody", 7)
	assert.True(t, apperr.IsNotFound(err))
}

func encode(s string) string {
	return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(s))
}

func TestSaveAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)
	taskID := p.Tasks[0].ID

	_, err = f.svc.SaveAttachments(ctx, p.ID, taskID, []attachment.Upload{
		{Name: "one.txt", Base64: encode("first file")},
	})
	require.NoError(t, err)

	got, err := f.svc.SaveAttachments(ctx, p.ID, taskID, []attachment.Upload{
		{Name: "two.txt", Base64: encode("second file")},
		{Name: "three.csv", Base64: base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n")), ContentType: "text/csv"},
	})
	require.NoError(t, err)
	require.Len(t, got.Tasks[0].Task.Attachments, 3)

	populated, err := f.svc.GetPopulatedProject(ctx, p.ID)
	require.NoError(t, err)
	files := populated.Tasks[0].Attachments
	require.Len(t, files, 3)
	assert.Equal(t, "two.txt", files[1].Name)
	assert.Equal(t, "text/plain", files[1].ContentType)
	assert.Equal(t, []byte("second file"), files[1].Data)
	assert.Equal(t, "three.csv", files[2].Name)
	assert.Equal(t, "text/csv", files[2].ContentType)
	assert.Equal(t, []byte("a,b\n1,2\n"), files[2].Data)
}

func TestSaveAttachmentsRejectsBadPayloadBeforeWriting(t *testing.T) {
	var created int
	f := newFixture(t, func(st store.Store) store.Store {
		return &countingStore{Store: st, created: &created}
	})
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)

	_, err = f.svc.SaveAttachments(ctx, p.ID, p.Tasks[0].ID, []attachment.Upload{
		{Name: "ok", Base64: encode("fine")},
		{Name: "bad", Base64: "%%%"},
	})
	assert.True(t, apperr.IsInvalid(err))
	assert.Zero(t, created)

	_, err = f.svc.SaveAttachments(ctx, p.ID, "missing-task", []attachment.Upload{{Name: "ok", Base64: encode("fine")}})
	assert.True(t, apperr.IsNotFound(err))
	assert.Zero(t, created)
}

func TestSaveAttachmentsCompensatesWhenLinkFails(t *testing.T) {
	var created int
	f := newFixture(t, func(st store.Store) store.Store {
		return &countingStore{Store: st, created: &created}
	})
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)

	f.store.(*countingStore).failMutate = errors.New("disk full")
	_, err = f.svc.SaveAttachments(ctx, p.ID, p.Tasks[0].ID, []attachment.Upload{
		{Name: "a", Base64: encode("a")},
		{Name: "b", Base64: encode("b")},
	})
	require.Error(t, err)
	assert.Equal(t, 2, created)

	f.clock.Advance(24 * time.Hour)
	res, err := f.svc.Reconcile(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, res.Attachments, "compensation should already have removed them")
}

func TestSaveAttachmentsKeepsLinkedFilesWhenReadFails(t *testing.T) {
	cs := &countingStore{}
	f := newFixture(t, func(st store.Store) store.Store {
		cs.Store = st
		return cs
	})
	ctx := context.Background()
	_, p := f.project(t, "P")
	p, err := f.svc.AddTask(ctx, p.ID, "T1")
	require.NoError(t, err)

	cs.failRead = errors.New("read failed")
	_, err = f.svc.SaveAttachments(ctx, p.ID, p.Tasks[0].ID, []attachment.Upload{{Name: "a", Base64: encode("a")}})
	require.Error(t, err)
	cs.failRead = nil

	stored, err := f.store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Tasks[0].Attachments, 1)
	found, err := f.store.GetAttachments(ctx, stored.Tasks[0].Attachments)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestAddProjectCompensatesWhenLinkFails(t *testing.T) {
	f := newFixture(t, func(st store.Store) store.Store {
		return &countingStore{Store: st, failLink: errors.New("link failed")}
	})
	ctx := context.Background()
	u := f.user(t, "owner@example.com")

	_, err := f.svc.AddProject(ctx, u.ID, "P")
	require.Error(t, err)

	f.clock.Advance(24 * time.Hour)
	res, err := f.svc.Reconcile(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, res.Projects)
}

func TestAddProjectUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddProject(context.Background(), "nobody", "P")
	assert.True(t, apperr.IsNotFound(err))
}

func TestReconcileSweepsLeftovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.project(t, "doomed")
	p, err := f.svc.AddTask(ctx, p.ID, "T")
	require.NoError(t, err)
	_, err = f.svc.SaveAttachments(ctx, p.ID, p.Tasks[0].ID, []attachment.Upload{{Name: "x", Base64: encode("x")}})
	require.NoError(t, err)

	// an unlinked project, as left by a crash inside AddProject
	stray := model.Project{ID: model.NewID(), Name: "stray", Tasks: []model.Task{}, CreatedAt: start, UpdatedAt: start}
	require.NoError(t, f.store.CreateProject(ctx, stray))

	require.NoError(t, f.svc.DeleteProject(ctx, p.ID))

	res, err := f.svc.Reconcile(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, res.Projects, "within grace period")
	assert.Empty(t, res.Attachments, "within grace period")

	f.clock.Advance(2 * time.Hour)
	res, err = f.svc.Reconcile(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stray.ID}, res.Projects)
	assert.Len(t, res.Attachments, 1)
}

// countingStore wraps a Store to count attachment writes and inject failures.
type countingStore struct {
	store.Store
	created    *int
	failLink   error
	failMutate error
	failRead   error
}

func (c *countingStore) GetAttachments(ctx context.Context, ids []string) (map[string]model.Attachment, error) {
	if c.failRead != nil {
		return nil, c.failRead
	}
	return c.Store.GetAttachments(ctx, ids)
}

func (c *countingStore) CreateAttachment(ctx context.Context, a model.Attachment) error {
	if c.created != nil {
		*c.created++
	}
	return c.Store.CreateAttachment(ctx, a)
}

func (c *countingStore) LinkProject(ctx context.Context, userID, projectID string) error {
	if c.failLink != nil {
		return c.failLink
	}
	return c.Store.LinkProject(ctx, userID, projectID)
}

func (c *countingStore) MutateProject(ctx context.Context, id string, fn store.ProjectMutation) (*model.Project, error) {
	if c.failMutate != nil {
		return nil, c.failMutate
	}
	return c.Store.MutateProject(ctx, id, fn)
}
