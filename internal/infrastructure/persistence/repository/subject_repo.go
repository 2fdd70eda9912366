package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approvals/pkg/database"
)

// latestStatus is the status of a subject's most recent audit record
const latestStatus = `(SELECT r.status FROM approval_records r
	WHERE r.subject_type = s.subject_type AND r.subject_id = s.subject_id
	ORDER BY r.created_at DESC, r.id DESC LIMIT 1)`

var (
	QueryInsertSubject = database.DBQuery{
		ID:    "INSERT_SUBJECT",
		Query: `INSERT INTO subjects (subject_type, subject_id, owner_id, created_at) VALUES (?, ?, ?, ?)`,
	}

	QueryGetSubject = database.DBQuery{
		ID:    "GET_SUBJECT",
		Query: `SELECT subject_type, subject_id, owner_id, created_at FROM subjects WHERE subject_type = ? AND subject_id = ?`,
	}

	QueryDeleteSubject = database.DBQuery{
		ID:    "DELETE_SUBJECT",
		Query: `DELETE FROM subjects WHERE subject_type = ? AND subject_id = ?`,
	}
)

// SubjectRepository implements port.SubjectCatalog
type SubjectRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *sqldb.DB, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Register stores a subject. A zero CreatedAt is set to now.
func (r *SubjectRepository) Register(ctx context.Context, subject *approval.Subject) error {
	if subject.Type == "" {
		return &approval.MissingFieldError{Field: "subject_type"}
	}
	if subject.ID == "" {
		return &approval.MissingFieldError{Field: "subject_id"}
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = r.now()
	}
	subject.CreatedAt = subject.CreatedAt.UTC()

	_, err := r.db.Executor(ctx).ExecContext(ctx, QueryInsertSubject.GetQuery(r.db.Driver()),
		subject.Type,
		subject.ID,
		subject.OwnerID,
		subject.CreatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("subject %s: %w", subject.SubjectRef(), approval.ErrSubjectExists)
	}
	if err != nil {
		r.logger.Error("Failed to register subject",
			zap.String("subject", subject.SubjectRef().String()),
			zap.Error(err))
		return fmt.Errorf("failed to register subject: %w", err)
	}
	return nil
}

// Get returns a registered subject
func (r *SubjectRepository) Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error) {
	var subject approval.Subject
	err := sqlx.GetContext(ctx, r.db.Executor(ctx), &subject, QueryGetSubject.GetQuery(r.db.Driver()), ref.Type, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject %s: %w", ref, approval.ErrSubjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return &subject, nil
}

// Delete removes a subject. Its audit records are left to the caller.
func (r *SubjectRepository) Delete(ctx context.Context, ref approval.SubjectRef) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, QueryDeleteSubject.GetQuery(r.db.Driver()), ref.Type, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subject %s: %w", ref, approval.ErrSubjectNotFound)
	}
	return nil
}

// Count counts subjects matching q; paging is ignored
func (r *SubjectRepository) Count(ctx context.Context, q port.SubjectQuery) (int, error) {
	where, args := subjectConditions(q)

	var count int
	if err := sqlx.GetContext(ctx, r.db.Executor(ctx), &count, "SELECT COUNT(*) FROM subjects s"+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count subjects: %w", err)
	}
	return count, nil
}

// List returns subjects matching q, newest first
func (r *SubjectRepository) List(ctx context.Context, q port.SubjectQuery) ([]*approval.Subject, error) {
	where, args := subjectConditions(q)

	query := "SELECT s.subject_type, s.subject_id, s.owner_id, s.created_at FROM subjects s" + where +
		" ORDER BY s.created_at DESC, s.subject_id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
		if q.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, q.Offset)
		}
	}

	subjects := []*approval.Subject{}
	if err := sqlx.SelectContext(ctx, r.db.Executor(ctx), &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

func subjectConditions(q port.SubjectQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if q.Type != "" {
		conds = append(conds, "s.subject_type = ?")
		args = append(args, q.Type)
	}
	if q.CreatedFrom != nil {
		conds = append(conds, "s.created_at >= ?")
		args = append(args, q.CreatedFrom.UTC())
	}
	if q.CreatedTo != nil {
		conds = append(conds, "s.created_at <= ?")
		args = append(args, q.CreatedTo.UTC())
	}
	if q.AuditedOnly {
		conds = append(conds, latestStatus+" IS NOT NULL")
	}
	if f := q.Filter; f != nil {
		cond, fargs := statusCondition(f)
		conds = append(conds, cond)
		args = append(args, fargs...)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// statusCondition translates a filter on the latest record's status
func statusCondition(f *port.StatusFilter) (string, []interface{}) {
	var parts []string
	var args []interface{}

	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Statuses)), ", ")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
		if f.Negate {
			parts = append(parts, fmt.Sprintf("(%s IS NOT NULL AND %s NOT IN (%s))", latestStatus, latestStatus, placeholders))
		} else {
			parts = append(parts, fmt.Sprintf("%s IN (%s)", latestStatus, placeholders))
		}
	} else if f.Negate {
		// negating an empty set admits every audited subject
		parts = append(parts, latestStatus+" IS NOT NULL")
	}

	if f.IncludeUnaudited {
		parts = append(parts, latestStatus+" IS NULL")
	}

	if len(parts) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

var _ port.SubjectCatalog = (*SubjectRepository)(nil)
