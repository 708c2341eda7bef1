// Package service implements the application operations on top of a Store:
// the aggregate mutators, the productivity aggregator and reconciliation.
// Every project mutator returns the populated project.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/todoplus/internal/apperr"
	"github.com/nhle/todoplus/internal/logging"
	"github.com/nhle/todoplus/internal/model"
	"github.com/nhle/todoplus/internal/store"
)

// Service coordinates store calls. It is safe for concurrent use.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
	session int64
}

type options struct {
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
	session time.Duration
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLocation sets the zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

// WithSessionLength sets the duration credited per focus session.
func WithSessionLength(d time.Duration) Option {
	return func(o *options) {
		o.session = d
	}
}

// New returns a Service backed by st.
func New(st store.Store, opts ...Option) *Service {
	o := &options{
		now:     time.Now,
		loc:     time.Local,
		session: time.Duration(model.DefaultSessionSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.session < time.Second {
		o.session = time.Duration(model.DefaultSessionSeconds) * time.Second
	}

	return &Service{
		store:   st,
		logger:  o.logger,
		now:     o.now,
		loc:     o.loc,
		session: int64(o.session / time.Second),
	}
}

// UserData returns the user registered under email with projects and
// productivity records expanded, creating the user on first sight.
func (s *Service) UserData(ctx context.Context, email string) (*model.UserData, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalidField("email", "required", "email is required")
	}

	user, created, err := s.store.GetOrCreateUser(ctx, email, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.InfoContext(ctx, "user created", "user_id", user.ID)
	}

	projects, err := s.store.ListUserProjects(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	populated, err := s.populateAll(ctx, projects)
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListUserRecords(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &model.UserData{User: *user, Projects: populated, ProductivityRecords: records}, nil
}

// SetWeeklyGoal sets the user's weekly goal in seconds.
func (s *Service) SetWeeklyGoal(ctx context.Context, userID string, goal int64) error {
	if goal < 0 {
		return invalidField("weeklyProductivityGoal", "min", "weekly productivity goal must not be negative")
	}
	return s.store.SetWeeklyGoal(ctx, userID, goal)
}

func (s *Service) populate(ctx context.Context, p model.Project) (*model.PopulatedProject, error) {
	byID, err := s.store.GetAttachments(ctx, p.AttachmentIDs())
	if err != nil {
		return nil, err
	}
	out := model.Populate(p, byID)
	return &out, nil
}

func (s *Service) populateAll(ctx context.Context, projects []model.Project) ([]model.PopulatedProject, error) {
	var ids []string
	for i := range projects {
		ids = append(ids, projects[i].AttachmentIDs()...)
	}
	byID, err := s.store.GetAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.PopulatedProject, 0, len(projects))
	for _, p := range projects {
		out = append(out, model.Populate(p, byID))
	}
	return out, nil
}

func invalidField(field, rule, message string) *apperr.Error {
	e := apperr.Invalid("%s", message)
	e.Fields = []apperr.FieldError{{Field: field, Rule: rule}}
	return e
}

func requireText(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalidField(field, "required", field+" is required")
	}
	return v, nil
}
