package service

import (
	"context"
	"fmt"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/application/visibility"
	"github.com/garyjia/approvals/internal/domain/approval"
)

// Scopes turns visibility modes into status filters
type Scopes interface {
	Filter(subjectType string, mode visibility.Mode) (*port.StatusFilter, error)
	WithStatus(subjectType string, status approval.Status) (*port.StatusFilter, error)
}

// ListQuery selects subjects for a listing
type ListQuery struct {
	Type string
	Mode visibility.Mode
	// Status, when set, replaces Mode with a current-status match
	Status *approval.Status
	Limit  int
	Offset int
}

// SubjectService manages the subjects known to the engine
type SubjectService interface {
	// Register stores a new subject and runs the on-created hook. The
	// returned record is nil unless the type sets subjects pending on create.
	Register(ctx context.Context, subject *approval.Subject) (*approval.Record, error)
	Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error)
	// Delete removes the subject together with its audit trail
	Delete(ctx context.Context, ref approval.SubjectRef) error
	List(ctx context.Context, q ListQuery) ([]*approval.Subject, error)
}

type subjectServiceImpl struct {
	catalog   port.SubjectCatalog
	records   port.AuditRecordStore
	approvals ApprovalService
	scopes    Scopes
	txManager port.TransactionManager
	logger    Logger
}

// NewSubjectService creates a new SubjectService
func NewSubjectService(
	catalog port.SubjectCatalog,
	records port.AuditRecordStore,
	approvals ApprovalService,
	scopes Scopes,
	txManager port.TransactionManager,
	logger Logger,
) SubjectService {
	return &subjectServiceImpl{
		catalog:   catalog,
		records:   records,
		approvals: approvals,
		scopes:    scopes,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *subjectServiceImpl) Register(ctx context.Context, subject *approval.Subject) (*approval.Record, error) {
	if err := s.catalog.Register(ctx, subject); err != nil {
		s.logger.Error("Failed to register subject", "subject", subject.SubjectRef().String(), "error", err)
		return nil, err
	}
	s.logger.Info("Subject registered", "subject", subject.SubjectRef().String())

	record, err := s.approvals.OnSubjectCreated(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("set new subject pending: %w", err)
	}
	return record, nil
}

func (s *subjectServiceImpl) Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error) {
	return s.catalog.Get(ctx, ref)
}

func (s *subjectServiceImpl) Delete(ctx context.Context, ref approval.SubjectRef) error {
	var purged int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.catalog.Delete(txCtx, ref); err != nil {
			return err
		}
		n, err := s.records.DeleteAllFor(txCtx, ref)
		if err != nil {
			return fmt.Errorf("delete audit records: %w", err)
		}
		purged = n
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete subject", "subject", ref.String(), "error", err)
		return err
	}

	s.logger.Info("Subject deleted", "subject", ref.String(), "records_deleted", purged)
	return nil
}

func (s *subjectServiceImpl) List(ctx context.Context, q ListQuery) ([]*approval.Subject, error) {
	var (
		filter *port.StatusFilter
		err    error
	)
	if q.Status != nil {
		filter, err = s.scopes.WithStatus(q.Type, *q.Status)
	} else {
		filter, err = s.scopes.Filter(q.Type, q.Mode)
	}
	if err != nil {
		return nil, err
	}

	return s.catalog.List(ctx, port.SubjectQuery{
		Type:   q.Type,
		Filter: filter,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

var _ SubjectService = (*subjectServiceImpl)(nil)
