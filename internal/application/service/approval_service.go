package service

import (
	"context"
	"time"

	"github.com/garyjia/approvals/internal/application/dispatcher"
	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/application/validator"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Settings is the slice of the configuration resolver the orchestrator reads
type Settings interface {
	Bool(subjectType string, key settings.Key, fallback bool) bool
	Mode(subjectType string) (settings.Mode, error)
	UnauditedStatus(subjectType string) (*approval.Status, error)
	HasReason(subjectType, code string) bool
	ActorType(subjectType string) string
}

// TransitionRecorder receives transition outcomes
type TransitionRecorder interface {
	TransitionCompleted(subjectType, status string)
	TransitionFailed(subjectType, action, reason string)
}

type noopTransitionRecorder struct{}

func (noopTransitionRecorder) TransitionCompleted(string, string)      {}
func (noopTransitionRecorder) TransitionFailed(string, string, string) {}

// TransitionInput carries the optional arguments of a transition
type TransitionInput struct {
	// ActorID overrides the actor found in the context; nil falls back to it
	ActorID  *string
	Comment  *string
	Context  map[string]interface{}
	Metadata map[string]interface{}
}

// RejectInput adds the rejection reason, either a configured code or free text
type RejectInput struct {
	TransitionInput
	Reason *string
}

// ApprovalService moves subjects between pending, approved and rejected
type ApprovalService interface {
	Approve(ctx context.Context, subject approval.Approvable, in TransitionInput) (*approval.Record, error)
	Reject(ctx context.Context, subject approval.Approvable, in RejectInput) (*approval.Record, error)
	SetPending(ctx context.Context, subject approval.Approvable, in TransitionInput) (*approval.Record, error)

	// Status is the latest record's status, else the type's default for
	// unaudited subjects, which may be nil
	Status(ctx context.Context, subject approval.Approvable) (*approval.Status, error)
	IsApproved(ctx context.Context, subject approval.Approvable) (bool, error)
	IsPending(ctx context.Context, subject approval.Approvable) (bool, error)
	IsRejected(ctx context.Context, subject approval.Approvable) (bool, error)

	History(ctx context.Context, subject approval.Approvable) ([]*approval.Record, error)
	Latest(ctx context.Context, subject approval.Approvable) (*approval.Record, error)
	Purge(ctx context.Context, subject approval.Approvable) (int64, error)

	// OnSubjectCreated sets a new subject pending when its type has
	// auto_pending_on_create. It returns nil when nothing was recorded.
	OnSubjectCreated(ctx context.Context, subject approval.Approvable) (*approval.Record, error)
}

type approvalServiceImpl struct {
	store      port.AuditRecordStore
	settings   Settings
	dispatcher dispatcher.Dispatcher
	validator  validator.TransitionValidator
	actors     ActorResolver
	recorder   TransitionRecorder
	logger     Logger
	now        func() time.Time
}

// Option configures the approval service
type Option func(*approvalServiceImpl)

// WithValidator replaces the permissive default validator
func WithValidator(v validator.TransitionValidator) Option {
	return func(s *approvalServiceImpl) {
		s.validator = v
	}
}

// WithActorResolver replaces how the ambient actor is found
func WithActorResolver(r ActorResolver) Option {
	return func(s *approvalServiceImpl) {
		s.actors = r
	}
}

// WithTransitionRecorder reports transition outcomes to r
func WithTransitionRecorder(r TransitionRecorder) Option {
	return func(s *approvalServiceImpl) {
		s.recorder = r
	}
}

// WithClock sets the source of responded_at timestamps
func WithClock(now func() time.Time) Option {
	return func(s *approvalServiceImpl) {
		s.now = now
	}
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	store port.AuditRecordStore,
	cfg Settings,
	d dispatcher.Dispatcher,
	logger Logger,
	opts ...Option,
) ApprovalService {
	s := &approvalServiceImpl{
		store:      store,
		settings:   cfg,
		dispatcher: d,
		validator:  validator.Permissive{},
		actors:     ActorFromContext,
		recorder:   noopTransitionRecorder{},
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve records an approval
func (s *approvalServiceImpl) Approve(ctx context.Context, subject approval.Approvable, in TransitionInput) (*approval.Record, error) {
	return s.transition(ctx, approval.ActionApprove, subject, in, nil)
}

// Reject records a rejection. A reason that is not a configured code is
// recorded as "other" and prepended to the comment.
func (s *approvalServiceImpl) Reject(ctx context.Context, subject approval.Approvable, in RejectInput) (*approval.Record, error) {
	reason := in.Reason
	if reason != nil && *reason == "" {
		reason = nil
	}
	return s.transition(ctx, approval.ActionReject, subject, in.TransitionInput, reason)
}

// SetPending puts the subject back into review
func (s *approvalServiceImpl) SetPending(ctx context.Context, subject approval.Approvable, in TransitionInput) (*approval.Record, error) {
	return s.transition(ctx, approval.ActionSetPending, subject, in, nil)
}

func (s *approvalServiceImpl) transition(
	ctx context.Context,
	action approval.Action,
	subject approval.Approvable,
	in TransitionInput,
	reason *string,
) (*approval.Record, error) {
	ref, err := refOf(subject)
	if err != nil {
		return nil, err
	}

	actor := in.ActorID
	if actor == nil && s.actors != nil {
		actor = s.actors(ctx)
	}

	if !s.allowed(ctx, action, subject, actor, in.Comment, reason) {
		s.recorder.TransitionFailed(ref.Type, action.String(), "unauthorized")
		s.logger.Warn("Approval transition refused",
			"action", action.String(),
			"subject", ref.String(),
			"caused_by", actorString(actor),
		)
		return nil, approval.NewUnauthorized(action, actor)
	}

	base := event.NewBase(ref, actor, in.Comment)
	base.Context = in.Context
	base.Metadata = in.Metadata

	switch action {
	case approval.ActionApprove:
		s.publish(ctx, &event.Approving{Base: base})
	case approval.ActionReject:
		s.publish(ctx, &event.Rejecting{Base: base, Reason: reason})
	}

	now := s.now().UTC()
	record := &approval.Record{
		SubjectType:      ref.Type,
		SubjectID:        ref.ID,
		Status:           action.Target(),
		RejectionComment: in.Comment,
		RespondedAt:      &now,
	}
	if action == approval.ActionReject {
		record.RejectionReason, record.RejectionComment = s.normalizeRejection(ref.Type, reason, in.Comment)
	}
	if actor != nil {
		actorType := s.settings.ActorType(ref.Type)
		record.ActorType = &actorType
		record.ActorID = actor
	}

	stored, err := s.persist(ctx, record)
	if err != nil {
		s.recorder.TransitionFailed(ref.Type, action.String(), "persistence")
		s.logger.Error("Failed to persist approval record",
			"action", action.String(),
			"subject", ref.String(),
			"error", err,
		)
		return nil, err
	}
	s.recorder.TransitionCompleted(ref.Type, stored.Status.String())

	post := base.Related()
	post.Comment = stored.RejectionComment

	switch action {
	case approval.ActionApprove:
		s.publish(ctx, &event.Approved{Base: post, Record: stored})
	case approval.ActionReject:
		s.publish(ctx, &event.Rejected{Base: post, Reason: stored.RejectionReason, Record: stored})
	case approval.ActionSetPending:
		s.publish(ctx, &event.SettingPending{Base: post, Record: stored})
		s.publish(ctx, &event.Pending{Base: post.Related(), Record: stored})
	}

	s.logger.Info("Approval status changed",
		"subject", ref.String(),
		"status", stored.Status.String(),
		"approval_id", stored.ID,
		"caused_by", actorString(actor),
	)
	return stored, nil
}

func (s *approvalServiceImpl) allowed(
	ctx context.Context,
	action approval.Action,
	subject approval.Approvable,
	actor, comment, reason *string,
) bool {
	v := s.validator
	switch action {
	case approval.ActionApprove:
		return v.CanApprove(ctx, subject, actor) && v.ValidateApproval(ctx, subject, actor, comment)
	case approval.ActionReject:
		return v.CanReject(ctx, subject, actor) && v.ValidateRejection(ctx, subject, actor, reason, comment)
	default:
		return v.CanSetPending(ctx, subject, actor) && v.ValidatePending(ctx, subject, actor, comment)
	}
}

// normalizeRejection keeps a configured reason code as is and demotes free
// text into the comment under the "other" code
func (s *approvalServiceImpl) normalizeRejection(subjectType string, reason, comment *string) (*string, *string) {
	if reason == nil {
		return nil, comment
	}
	if s.settings.HasReason(subjectType, *reason) {
		return reason, comment
	}

	merged := *reason
	if comment != nil && *comment != "" {
		merged += " - " + *comment
	}
	other := approval.OtherReason
	return &other, &merged
}

func (s *approvalServiceImpl) persist(ctx context.Context, record *approval.Record) (*approval.Record, error) {
	mode, err := s.settings.Mode(record.SubjectType)
	if err != nil {
		return nil, err
	}
	if mode == settings.ModeUpsert {
		return s.store.UpdateOrCreate(ctx, record)
	}
	return s.store.Create(ctx, record)
}

// publish hands evt to the dispatcher. Listener failures never reach the caller.
func (s *approvalServiceImpl) publish(ctx context.Context, evt event.Event) {
	subjectType := evt.Envelope().Subject.Type
	if s.dispatcher == nil || !s.settings.Bool(subjectType, settings.KeyEventsEnabled, true) {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Warn("Approval event dispatch failed",
			"event", evt.Kind().String(),
			"event_id", evt.Envelope().ID,
			"subject", evt.Envelope().Subject.String(),
			"error", err,
		)
	}
}

// Status returns the current status, or the default for unaudited subjects
func (s *approvalServiceImpl) Status(ctx context.Context, subject approval.Approvable) (*approval.Status, error) {
	ref, err := refOf(subject)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestFor(ctx, ref)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		status := latest.Status
		return &status, nil
	}
	return s.settings.UnauditedStatus(ref.Type)
}

func (s *approvalServiceImpl) IsApproved(ctx context.Context, subject approval.Approvable) (bool, error) {
	return s.hasStatus(ctx, subject, approval.StatusApproved)
}

func (s *approvalServiceImpl) IsPending(ctx context.Context, subject approval.Approvable) (bool, error) {
	return s.hasStatus(ctx, subject, approval.StatusPending)
}

func (s *approvalServiceImpl) IsRejected(ctx context.Context, subject approval.Approvable) (bool, error) {
	return s.hasStatus(ctx, subject, approval.StatusRejected)
}

func (s *approvalServiceImpl) hasStatus(ctx context.Context, subject approval.Approvable, want approval.Status) (bool, error) {
	status, err := s.Status(ctx, subject)
	if err != nil {
		return false, err
	}
	return status != nil && *status == want, nil
}

// History returns every record of the subject, oldest first
func (s *approvalServiceImpl) History(ctx context.Context, subject approval.Approvable) ([]*approval.Record, error) {
	ref, err := refOf(subject)
	if err != nil {
		return nil, err
	}
	return s.store.AllFor(ctx, ref)
}

// Latest returns the most recent record, or nil
func (s *approvalServiceImpl) Latest(ctx context.Context, subject approval.Approvable) (*approval.Record, error) {
	ref, err := refOf(subject)
	if err != nil {
		return nil, err
	}
	return s.store.LatestFor(ctx, ref)
}

// Purge deletes the subject's audit trail. It is cleanup, not a transition,
// so no events are published.
func (s *approvalServiceImpl) Purge(ctx context.Context, subject approval.Approvable) (int64, error) {
	ref, err := refOf(subject)
	if err != nil {
		return 0, err
	}

	n, err := s.store.DeleteAllFor(ctx, ref)
	if err != nil {
		s.logger.Error("Failed to purge approval records", "subject", ref.String(), "error", err)
		return 0, err
	}

	s.logger.Info("Approval records purged", "subject", ref.String(), "deleted", n)
	return n, nil
}

func (s *approvalServiceImpl) OnSubjectCreated(ctx context.Context, subject approval.Approvable) (*approval.Record, error) {
	ref, err := refOf(subject)
	if err != nil {
		return nil, err
	}
	if !s.settings.Bool(ref.Type, settings.KeyAutoPendingOnCreate, false) {
		return nil, nil
	}
	return s.SetPending(ctx, subject, TransitionInput{})
}

func refOf(subject approval.Approvable) (approval.SubjectRef, error) {
	if subject == nil {
		return approval.SubjectRef{}, &approval.MissingFieldError{Field: "subject"}
	}
	ref := subject.SubjectRef()
	if ref.Type == "" {
		return ref, &approval.MissingFieldError{Field: "subject_type"}
	}
	if ref.ID == "" {
		return ref, &approval.MissingFieldError{Field: "subject_id"}
	}
	return ref, nil
}

func actorString(actor *string) string {
	if actor == nil {
		return "system"
	}
	return *actor
}

var _ ApprovalService = (*approvalServiceImpl)(nil)
