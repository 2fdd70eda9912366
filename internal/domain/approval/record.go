package approval

import "time"

// DefaultActorType is recorded when the caller does not name one
const DefaultActorType = "user"

// OtherReason is the sentinel code for free-text rejection reasons
const OtherReason = "other"

// Record is one moderation decision on a subject
type Record struct {
	ID               int64      `db:"id" json:"id"`
	SubjectType      string     `db:"subject_type" json:"subject_type"`
	SubjectID        string     `db:"subject_id" json:"subject_id"`
	Status           Status     `db:"status" json:"status"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejection_reason"`
	RejectionComment *string    `db:"rejection_comment" json:"rejection_comment"`
	ActorType        *string    `db:"actor_type" json:"actor_type,omitempty"`
	ActorID          *string    `db:"actor_id" json:"actor_id,omitempty"`
	RespondedAt      *time.Time `db:"responded_at" json:"responded_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Subject returns the reference this record belongs to
func (r *Record) Subject() SubjectRef {
	return SubjectRef{Type: r.SubjectType, ID: r.SubjectID}
}

// Validate checks the fields every store requires
func (r *Record) Validate() error {
	if r.SubjectType == "" {
		return &MissingFieldError{Field: "subject_type"}
	}
	if r.SubjectID == "" {
		return &MissingFieldError{Field: "subject_id"}
	}
	if r.Status == "" {
		return &MissingFieldError{Field: "status"}
	}
	if !r.Status.IsValid() {
		return &InvalidStatusError{Value: string(r.Status), Code: CodeUnknownStatus}
	}
	return nil
}

// IsApproved is true when the record's status is approved
func (r *Record) IsApproved() bool {
	return r.Status == StatusApproved
}

// IsRejected is true when the record's status is rejected
func (r *Record) IsRejected() bool {
	return r.Status == StatusRejected
}

// IsPending is true when the record's status is pending
func (r *Record) IsPending() bool {
	return r.Status == StatusPending
}

// ReasonBreakdown is the number of rejections recorded with one reason code
type ReasonBreakdown struct {
	Reason string `db:"reason" json:"reason"`
	Count  int    `db:"count" json:"count"`
}

// StringPtr returns a pointer to s, or nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
