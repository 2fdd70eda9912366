package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approvals/pkg/database"
)

const recordColumns = `id, subject_type, subject_id, status, rejection_reason, rejection_comment,
	actor_type, actor_id, responded_at, created_at, updated_at`

var (
	QueryInsertRecord = database.DBQuery{
		ID: "INSERT_APPROVAL_RECORD",
		Query: `INSERT INTO approval_records (
			subject_type, subject_id, status, rejection_reason, rejection_comment,
			actor_type, actor_id, responded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	}

	QueryFindRecordForUpdate = database.DBQuery{
		ID:         "FIND_APPROVAL_RECORD_FOR_UPDATE",
		Query:      `SELECT id FROM approval_records WHERE subject_type = ? AND subject_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		MySQLQuery: `SELECT id FROM approval_records WHERE subject_type = ? AND subject_id = ? ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`,
	}

	QueryUpdateRecord = database.DBQuery{
		ID: "UPDATE_APPROVAL_RECORD",
		Query: `UPDATE approval_records SET
			status = ?, rejection_reason = ?, rejection_comment = ?,
			actor_type = ?, actor_id = ?, responded_at = ?, updated_at = ?
		WHERE id = ?`,
	}

	QueryGetRecordByID = database.DBQuery{
		ID:    "GET_APPROVAL_RECORD_BY_ID",
		Query: `SELECT ` + recordColumns + ` FROM approval_records WHERE id = ?`,
	}

	QueryLatestRecord = database.DBQuery{
		ID: "GET_LATEST_APPROVAL_RECORD",
		Query: `SELECT ` + recordColumns + ` FROM approval_records
			WHERE subject_type = ? AND subject_id = ?
			ORDER BY created_at DESC, id DESC LIMIT 1`,
	}

	QueryAllRecords = database.DBQuery{
		ID: "LIST_APPROVAL_RECORDS_FOR_SUBJECT",
		Query: `SELECT ` + recordColumns + ` FROM approval_records
			WHERE subject_type = ? AND subject_id = ?
			ORDER BY created_at ASC, id ASC`,
	}

	QueryDeleteRecords = database.DBQuery{
		ID:    "DELETE_APPROVAL_RECORDS_FOR_SUBJECT",
		Query: `DELETE FROM approval_records WHERE subject_type = ? AND subject_id = ?`,
	}

	QueryRejectionReasonCounts = database.DBQuery{
		ID: "COUNT_REJECTION_REASONS",
		Query: `SELECT rejection_reason AS reason, COUNT(*) AS count FROM approval_records
			WHERE subject_type = ? AND status = 'rejected' AND rejection_reason IS NOT NULL
			GROUP BY rejection_reason
			ORDER BY count DESC, reason ASC`,
	}
)

// AuditRecordRepository implements port.AuditRecordStore
type AuditRecordRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditRecordRepository creates a new audit record repository
func NewAuditRecordRepository(db *sqldb.DB, logger *zap.Logger) *AuditRecordRepository {
	return &AuditRecordRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a new record and returns it as stored
func (r *AuditRecordRepository) Create(ctx context.Context, record *approval.Record) (*approval.Record, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return r.insert(ctx, r.db.Executor(ctx), record)
}

// UpdateOrCreate overwrites the subject's record, or inserts the first one.
// The lookup and the write share one transaction.
func (r *AuditRecordRepository) UpdateOrCreate(ctx context.Context, record *approval.Record) (*approval.Record, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	var stored *approval.Record
	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		var id int64
		err := sqlx.GetContext(txCtx, exec, &id, r.query(QueryFindRecordForUpdate), record.SubjectType, record.SubjectID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			stored, err = r.insert(txCtx, exec, record)
			return err
		case err != nil:
			return err
		}

		now := r.now().UTC()
		_, err = exec.ExecContext(txCtx, r.query(QueryUpdateRecord),
			record.Status,
			record.RejectionReason,
			record.RejectionComment,
			record.ActorType,
			record.ActorID,
			utcPtr(record.RespondedAt),
			now,
			id,
		)
		if err != nil {
			return err
		}

		stored, err = r.getByID(txCtx, exec, id)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to upsert approval record",
			zap.String("subject", record.Subject().String()),
			zap.Error(err))
		return nil, err
	}
	return stored, nil
}

func (r *AuditRecordRepository) insert(ctx context.Context, exec sqlx.ExtContext, record *approval.Record) (*approval.Record, error) {
	now := r.now().UTC()
	result, err := exec.ExecContext(ctx, r.query(QueryInsertRecord),
		record.SubjectType,
		record.SubjectID,
		record.Status,
		record.RejectionReason,
		record.RejectionComment,
		record.ActorType,
		record.ActorID,
		utcPtr(record.RespondedAt),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create approval record",
			zap.String("subject", record.Subject().String()),
			zap.Error(err))
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return r.getByID(ctx, exec, id)
}

func (r *AuditRecordRepository) getByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*approval.Record, error) {
	var record approval.Record
	if err := sqlx.GetContext(ctx, q, &record, r.query(QueryGetRecordByID), id); err != nil {
		return nil, err
	}
	return &record, nil
}

// LatestFor returns the most recently created record, or nil when there is none
func (r *AuditRecordRepository) LatestFor(ctx context.Context, subject approval.SubjectRef) (*approval.Record, error) {
	var record approval.Record
	err := sqlx.GetContext(ctx, r.db.Executor(ctx), &record, r.query(QueryLatestRecord), subject.Type, subject.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AllFor returns the subject's records oldest first
func (r *AuditRecordRepository) AllFor(ctx context.Context, subject approval.SubjectRef) ([]*approval.Record, error) {
	records := []*approval.Record{}
	if err := sqlx.SelectContext(ctx, r.db.Executor(ctx), &records, r.query(QueryAllRecords), subject.Type, subject.ID); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteAllFor removes the subject's records and returns how many were deleted
func (r *AuditRecordRepository) DeleteAllFor(ctx context.Context, subject approval.SubjectRef) (int64, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, r.query(QueryDeleteRecords), subject.Type, subject.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountBy counts records matching status and subject type; empty means any
func (r *AuditRecordRepository) CountBy(ctx context.Context, status approval.Status, subjectType string) (int, error) {
	where, args := recordConditions(status, subjectType)

	var count int
	if err := sqlx.GetContext(ctx, r.db.Executor(ctx), &count, "SELECT COUNT(*) FROM approval_records"+where, args...); err != nil {
		return 0, err
	}
	return count, nil
}

// ListBy lists records matching status and subject type, oldest first
func (r *AuditRecordRepository) ListBy(ctx context.Context, status approval.Status, subjectType string) ([]*approval.Record, error) {
	where, args := recordConditions(status, subjectType)

	records := []*approval.Record{}
	query := "SELECT " + recordColumns + " FROM approval_records" + where + " ORDER BY created_at ASC, id ASC"
	if err := sqlx.SelectContext(ctx, r.db.Executor(ctx), &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

// RejectionReasonCounts groups rejected records of a type by reason
func (r *AuditRecordRepository) RejectionReasonCounts(ctx context.Context, subjectType string) ([]approval.ReasonBreakdown, error) {
	counts := []approval.ReasonBreakdown{}
	if err := sqlx.SelectContext(ctx, r.db.Executor(ctx), &counts, r.query(QueryRejectionReasonCounts), subjectType); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *AuditRecordRepository) query(q database.DBQuery) string {
	return q.GetQuery(r.db.Driver())
}

func recordConditions(status approval.Status, subjectType string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if subjectType != "" {
		conds = append(conds, "subject_type = ?")
		args = append(args, subjectType)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ port.AuditRecordStore = (*AuditRecordRepository)(nil)
