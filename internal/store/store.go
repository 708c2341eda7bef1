package store

import (
	"context"
	"time"

	"github.com/nhle/todoplus/internal/model"
)

// ProjectMutation changes a loaded project in place. Returning an error
// aborts the surrounding transaction.
type ProjectMutation func(p *model.Project) error

// RecordMutation changes a loaded productivity record in place.
type RecordMutation func(r *model.ProductivityRecord) error

// Store defines the persistence interface for users, projects, attachments
// and productivity records. Every method touching a single aggregate is
// atomic; methods spanning aggregates say so.
type Store interface {
	// === Users ===

	// GetOrCreateUser returns the user with the given email, creating it
	// when absent. created reports whether a row was inserted.
	GetOrCreateUser(ctx context.Context, email string, now time.Time) (user *model.User, created bool, err error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	SetWeeklyGoal(ctx context.Context, userID string, goal int64) error
	LinkProject(ctx context.Context, userID, projectID string) error
	ListUserProjects(ctx context.Context, userID string) ([]model.Project, error)

	// === Projects ===

	CreateProject(ctx context.Context, project model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	// DeleteProject removes the project and every user link to it.
	DeleteProject(ctx context.Context, id string) error
	// MutateProject loads the project, applies fn and writes it back in one
	// transaction.
	MutateProject(ctx context.Context, id string, fn ProjectMutation) (*model.Project, error)

	// === Attachments ===

	CreateAttachment(ctx context.Context, a model.Attachment) error
	// GetAttachments returns the attachments that exist among ids, keyed by id.
	GetAttachments(ctx context.Context, ids []string) (map[string]model.Attachment, error)
	DeleteAttachments(ctx context.Context, ids []string) error

	// === Productivity records ===

	// EnsureRecord returns the user's record created within [from, to),
	// inserting and linking fresh when there is none.
	EnsureRecord(
		ctx context.Context,
		userID string,
		from, to time.Time,
		fresh model.ProductivityRecord,
	) (record *model.ProductivityRecord, created bool, err error)
	GetRecord(ctx context.Context, id string) (*model.ProductivityRecord, error)
	ListUserRecords(ctx context.Context, userID string) ([]model.ProductivityRecord, error)
	ListUserRecordsBetween(ctx context.Context, userID string, from, to time.Time) ([]model.ProductivityRecord, error)
	ListRecordIDs(ctx context.Context) ([]string, error)
	MutateRecord(ctx context.Context, id string, fn RecordMutation) (*model.ProductivityRecord, error)

	// === Reconciliation ===

	// DeleteOrphanProjects removes projects created before cutoff that no
	// user links to, and returns their ids.
	DeleteOrphanProjects(ctx context.Context, cutoff time.Time) ([]string, error)
	// DeleteOrphanAttachments removes attachments created before cutoff that
	// no task references, and returns their ids.
	DeleteOrphanAttachments(ctx context.Context, cutoff time.Time) ([]string, error)

	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}
