package port

import (
	"context"
	"time"

	"github.com/garyjia/approvals/internal/domain/approval"
)

// AuditRecordStore persists audit records keyed by subject reference.
// Persistence failures are returned unchanged and never retried.
type AuditRecordStore interface {
	// Create always inserts a new record
	Create(ctx context.Context, record *approval.Record) (*approval.Record, error)

	// UpdateOrCreate overwrites the subject's single record, matched on the
	// subject reference alone, or inserts one when none exists
	UpdateOrCreate(ctx context.Context, record *approval.Record) (*approval.Record, error)

	// LatestFor returns the most recently created record, or nil
	LatestFor(ctx context.Context, subject approval.SubjectRef) (*approval.Record, error)

	// AllFor returns every record of the subject in insertion order
	AllFor(ctx context.Context, subject approval.SubjectRef) ([]*approval.Record, error)

	// DeleteAllFor removes every record of the subject
	DeleteAllFor(ctx context.Context, subject approval.SubjectRef) (int64, error)

	// CountBy counts records with the given status. Empty status or
	// subjectType means "any".
	CountBy(ctx context.Context, status approval.Status, subjectType string) (int, error)

	// ListBy lists records with the given status. Empty status or
	// subjectType means "any".
	ListBy(ctx context.Context, status approval.Status, subjectType string) ([]*approval.Record, error)

	// RejectionReasonCounts groups rejected records by reason, most frequent first
	RejectionReasonCounts(ctx context.Context, subjectType string) ([]approval.ReasonBreakdown, error)
}

// StatusFilter restricts subjects by the status of their latest record
type StatusFilter struct {
	// Statuses the latest record must have (or must not have, when Negate is set)
	Statuses []approval.Status
	Negate   bool
	// IncludeUnaudited lets subjects without any record pass
	IncludeUnaudited bool
}

// SubjectQuery selects registered subjects
type SubjectQuery struct {
	Type        string
	Filter      *StatusFilter
	AuditedOnly bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SubjectCatalog stores the subjects known to the engine
type SubjectCatalog interface {
	Register(ctx context.Context, subject *approval.Subject) error
	Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error)
	Delete(ctx context.Context, ref approval.SubjectRef) error
	Count(ctx context.Context, q SubjectQuery) (int, error)
	List(ctx context.Context, q SubjectQuery) ([]*approval.Subject, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
