// Package visibility decides which subjects a listing may return based on the
// status of their latest audit record.
package visibility

import (
	"fmt"
	"strings"
	"sync"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/domain/approval"
)

// Mode selects how a listing treats unapproved subjects
type Mode string

const (
	// Default hides unapproved subjects only when the type opts in
	Default           Mode = "default"
	IncludeUnapproved Mode = "include_unapproved"
	OnlyUnapproved    Mode = "only_unapproved"
	OnlyApproved      Mode = "only_approved"
)

// ParseMode maps a query value to a Mode; empty means Default
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Default, nil
	case Default, IncludeUnapproved, OnlyUnapproved, OnlyApproved:
		return m, nil
	default:
		return "", &approval.InputError{Field: "scope", Value: s, Reason: "unknown visibility mode"}
	}
}

// Settings is the part of the resolver the scopes read
type Settings interface {
	Bool(subjectType string, key settings.Key, fallback bool) bool
	UnauditedStatus(subjectType string) (*approval.Status, error)
}

// Scopes tracks which subject types have the approval scope attached
type Scopes struct {
	settings Settings

	mu     sync.RWMutex
	manual map[string]bool
}

// NewScopes creates Scopes reading per-type settings from s
func NewScopes(s Settings) *Scopes {
	return &Scopes{settings: s, manual: make(map[string]bool)}
}

// Register attaches the scope to a type whose auto_scope is off
func (s *Scopes) Register(subjectType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual[strings.ToLower(subjectType)] = true
}

// Registered reports whether the type carries the scope
func (s *Scopes) Registered(subjectType string) bool {
	s.mu.RLock()
	manual := s.manual[strings.ToLower(subjectType)]
	s.mu.RUnlock()
	return manual || s.settings.Bool(subjectType, settings.KeyAutoScope, true)
}

// Filter returns the status predicate for a listing in the given mode.
// A nil filter means every subject is visible.
func (s *Scopes) Filter(subjectType string, mode Mode) (*port.StatusFilter, error) {
	switch mode {
	case Default, "":
		if s.Registered(subjectType) && s.settings.Bool(subjectType, settings.KeyShowOnlyApprovedByDefault, false) {
			return s.approvedOnly(subjectType)
		}
		return nil, nil
	case IncludeUnapproved:
		return nil, nil
	case OnlyApproved:
		return s.approvedOnly(subjectType)
	case OnlyUnapproved:
		return &port.StatusFilter{
			Statuses:         []approval.Status{approval.StatusApproved},
			Negate:           true,
			IncludeUnaudited: true,
		}, nil
	default:
		return nil, fmt.Errorf("visibility mode %q: %w", mode, approval.ErrInvalidInput)
	}
}

// WithStatus selects subjects whose current status is status. Subjects with
// no records match when the type's default-for-unaudited equals status.
func (s *Scopes) WithStatus(subjectType string, status approval.Status) (*port.StatusFilter, error) {
	if _, err := approval.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	unaudited, err := s.settings.UnauditedStatus(subjectType)
	if err != nil {
		return nil, err
	}
	return &port.StatusFilter{
		Statuses:         []approval.Status{status},
		IncludeUnaudited: unaudited != nil && *unaudited == status,
	}, nil
}

// approvedOnly keeps subjects whose latest record is approved, plus subjects
// with no records when the type treats unaudited as approved
func (s *Scopes) approvedOnly(subjectType string) (*port.StatusFilter, error) {
	return s.WithStatus(subjectType, approval.StatusApproved)
}
