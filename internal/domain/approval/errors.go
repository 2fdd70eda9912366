package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is matched by every UnauthorizedTransitionError
	ErrUnauthorized = errors.New("unauthorized approval transition")

	// ErrInvalidStatus is matched by every InvalidStatusError
	ErrInvalidStatus = errors.New("invalid approval status")

	// ErrConfig is matched by every ConfigError
	ErrConfig = errors.New("invalid approval configuration")

	// ErrInvalidInput is matched by every InputError
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingField is returned when a record lacks a required field
	ErrMissingField = errors.New("missing required field")

	// ErrSubjectNotFound is returned when a subject is not registered
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrSubjectExists is returned when registering a subject twice
	ErrSubjectExists = errors.New("subject already registered")
)

// Error codes carried by typed errors
const (
	CodeUnknownStatus = 1001
	CodeEmptyStatus   = 1002
	CodeNullStatus    = 1003

	CodeUnauthorized  = 2001
	CodeMissingActor  = 2002
	CodeInvalidActor  = 2003
	CodeSelfApproval  = 2004
	CodeForbiddenRole = 2005
)

// Action names a transition
type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionSetPending Action = "setPending"
)

func (a Action) String() string {
	return string(a)
}

// Target is the status an action moves a subject to
func (a Action) Target() Status {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	default:
		return StatusPending
	}
}

// UnauthorizedTransitionError is returned when an authorization or
// validation hook refuses an action
type UnauthorizedTransitionError struct {
	Action  Action
	ActorID *string
	Code    int
	Reason  string
}

func (e *UnauthorizedTransitionError) Error() string {
	actor := "system"
	if e.ActorID != nil {
		actor = *e.ActorID
	}
	if e.Reason != "" {
		return fmt.Sprintf("actor %s is not authorized to perform '%s': %s", actor, e.Action, e.Reason)
	}
	return fmt.Sprintf("actor %s is not authorized to perform '%s'", actor, e.Action)
}

func (e *UnauthorizedTransitionError) Is(target error) bool {
	return target == ErrUnauthorized
}

// NewUnauthorized builds the error for a refused action
func NewUnauthorized(action Action, actorID *string) *UnauthorizedTransitionError {
	return &UnauthorizedTransitionError{Action: action, ActorID: actorID, Code: CodeUnauthorized}
}

// InvalidStatusError is returned for an unrecognized status string or a
// configuration map with an inconsistent shape
type InvalidStatusError struct {
	Value string
	Code  int
	Err   error
}

func (e *InvalidStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid approval configuration: %v", e.Err)
	}
	switch e.Code {
	case CodeEmptyStatus:
		return "approval status cannot be empty"
	case CodeNullStatus:
		return "approval status cannot be null"
	}
	return fmt.Sprintf("invalid approval status '%s', valid statuses are: pending, approved, rejected", e.Value)
}

func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

func (e *InvalidStatusError) Unwrap() error {
	return e.Err
}

// ConfigError names a missing or invalid configuration key
type ConfigError struct {
	SubjectType string
	Key         string
	Reason      string
}

func (e *ConfigError) Error() string {
	if e.SubjectType != "" {
		return fmt.Sprintf("config key %q for %q: %s", e.Key, e.SubjectType, e.Reason)
	}
	return fmt.Sprintf("config key %q: %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// InputError reports a malformed caller argument such as a date string
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MissingFieldError names the absent field
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
