// Package validator holds the authorization and business-rule hooks consulted
// before every approval transition.
package validator

import (
	"context"

	"github.com/garyjia/approvals/internal/domain/approval"
)

// TransitionValidator decides whether a transition may proceed. Can* hooks are
// permission checks; Validate* hooks are business rules. Either returning
// false aborts the transition.
type TransitionValidator interface {
	CanApprove(ctx context.Context, subject approval.Approvable, actorID *string) bool
	CanReject(ctx context.Context, subject approval.Approvable, actorID *string) bool
	CanSetPending(ctx context.Context, subject approval.Approvable, actorID *string) bool

	ValidateApproval(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool
	ValidateRejection(ctx context.Context, subject approval.Approvable, actorID, reason, comment *string) bool
	ValidatePending(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool
}

// Permissive allows every transition
type Permissive struct{}

func (Permissive) CanApprove(context.Context, approval.Approvable, *string) bool    { return true }
func (Permissive) CanReject(context.Context, approval.Approvable, *string) bool     { return true }
func (Permissive) CanSetPending(context.Context, approval.Approvable, *string) bool { return true }

func (Permissive) ValidateApproval(context.Context, approval.Approvable, *string, *string) bool {
	return true
}

func (Permissive) ValidateRejection(context.Context, approval.Approvable, *string, *string, *string) bool {
	return true
}

func (Permissive) ValidatePending(context.Context, approval.Approvable, *string, *string) bool {
	return true
}

// PermissionFunc is an authorization hook
type PermissionFunc func(ctx context.Context, subject approval.Approvable, actorID *string) bool

// Funcs adapts individual functions to TransitionValidator.
// A nil field allows the transition.
type Funcs struct {
	CanApproveFunc    PermissionFunc
	CanRejectFunc     PermissionFunc
	CanSetPendingFunc PermissionFunc

	ValidateApprovalFunc  func(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool
	ValidateRejectionFunc func(ctx context.Context, subject approval.Approvable, actorID, reason, comment *string) bool
	ValidatePendingFunc   func(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool
}

func (f Funcs) CanApprove(ctx context.Context, subject approval.Approvable, actorID *string) bool {
	if f.CanApproveFunc == nil {
		return true
	}
	return f.CanApproveFunc(ctx, subject, actorID)
}

func (f Funcs) CanReject(ctx context.Context, subject approval.Approvable, actorID *string) bool {
	if f.CanRejectFunc == nil {
		return true
	}
	return f.CanRejectFunc(ctx, subject, actorID)
}

func (f Funcs) CanSetPending(ctx context.Context, subject approval.Approvable, actorID *string) bool {
	if f.CanSetPendingFunc == nil {
		return true
	}
	return f.CanSetPendingFunc(ctx, subject, actorID)
}

func (f Funcs) ValidateApproval(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool {
	if f.ValidateApprovalFunc == nil {
		return true
	}
	return f.ValidateApprovalFunc(ctx, subject, actorID, comment)
}

func (f Funcs) ValidateRejection(ctx context.Context, subject approval.Approvable, actorID, reason, comment *string) bool {
	if f.ValidateRejectionFunc == nil {
		return true
	}
	return f.ValidateRejectionFunc(ctx, subject, actorID, reason, comment)
}

func (f Funcs) ValidatePending(ctx context.Context, subject approval.Approvable, actorID, comment *string) bool {
	if f.ValidatePendingFunc == nil {
		return true
	}
	return f.ValidatePendingFunc(ctx, subject, actorID, comment)
}

// ValidateRejectionReason reports whether reason is acceptable given the
// allowed codes. An empty allow-list accepts anything.
func ValidateRejectionReason(reason string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, code := range allowed {
		if code == reason {
			return true
		}
	}
	return false
}

var (
	_ TransitionValidator = Permissive{}
	_ TransitionValidator = Funcs{}
)
