package validator

import (
	"context"
	"strconv"
	"strings"

	"github.com/garyjia/approvals/internal/domain/approval"
)

const (
	// MaxReasonLength bounds the rejection_reason column
	MaxReasonLength = 255
	// MaxCommentLength bounds the rejection_comment column
	MaxCommentLength = 65535
)

// ReasonPolicy exposes the rejection settings of a subject type
type ReasonPolicy interface {
	ReasonCodes(subjectType string) []string
	AllowsCustomReasons(subjectType string) bool
}

// Strict rejects malformed actors and reasons that the subject type does not
// list, unless custom reasons are allowed. Authorization stays open.
type Strict struct {
	Permissive
	Reasons ReasonPolicy
}

// NewStrict creates a Strict validator
func NewStrict(reasons ReasonPolicy) *Strict {
	return &Strict{Reasons: reasons}
}

func (s *Strict) ValidateApproval(_ context.Context, subject approval.Approvable, actorID, _ *string) bool {
	return validSubject(subject) && validActor(actorID)
}

func (s *Strict) ValidatePending(_ context.Context, subject approval.Approvable, actorID, _ *string) bool {
	return validSubject(subject) && validActor(actorID)
}

func (s *Strict) ValidateRejection(_ context.Context, subject approval.Approvable, actorID, reason, comment *string) bool {
	if !validSubject(subject) || !validActor(actorID) {
		return false
	}
	if comment != nil && len(*comment) > MaxCommentLength {
		return false
	}
	if reason == nil {
		return true
	}
	if len(*reason) > MaxReasonLength {
		return false
	}
	if s.Reasons == nil {
		return true
	}
	subjectType := subject.SubjectRef().Type
	if s.Reasons.AllowsCustomReasons(subjectType) {
		return true
	}
	codes := s.Reasons.ReasonCodes(subjectType)
	if len(codes) == 0 {
		return false
	}
	return ValidateRejectionReason(*reason, codes)
}

func validSubject(subject approval.Approvable) bool {
	return subject != nil && !subject.SubjectRef().IsZero()
}

// validActor accepts a missing actor, and otherwise any non-blank id that is
// not a non-positive number
func validActor(actorID *string) bool {
	if actorID == nil {
		return true
	}
	id := strings.TrimSpace(*actorID)
	if id == "" {
		return false
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n <= 0 {
		return false
	}
	return true
}

var _ TransitionValidator = (*Strict)(nil)
