package approval

import "strings"

// Status is the moderation state of a subject
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// Statuses returns every valid status in display order
func Statuses() []Status {
	return []Status{StatusApproved, StatusPending, StatusRejected}
}

// ParseStatus decodes the wire name of a status.
// Unknown, empty or differently-cased input is an error; it never falls back to pending.
func ParseStatus(s string) (Status, error) {
	if strings.TrimSpace(s) == "" {
		return "", &InvalidStatusError{Value: s, Code: CodeEmptyStatus}
	}
	status := Status(s)
	if !status.IsValid() {
		return "", &InvalidStatusError{Value: s, Code: CodeUnknownStatus}
	}
	return status, nil
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the three defined values
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// Label returns a human readable form of the status
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}
