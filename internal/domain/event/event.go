package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/approvals/internal/domain/approval"
)

// Event is a lifecycle notification. The concrete types below form a closed set.
type Event interface {
	Kind() Kind
	Envelope() *Base
}

// Base carries the fields shared by every lifecycle event
type Base struct {
	ID            string                 `json:"id"`
	Subject       approval.SubjectRef    `json:"subject"`
	ActorID       *string                `json:"caused_by,omitempty"`
	Comment       *string                `json:"comment,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewBase creates the shared envelope with a fresh ID and timestamp
func NewBase(subject approval.SubjectRef, actorID, comment *string) Base {
	return Base{
		ID:            uuid.NewString(),
		Subject:       subject,
		ActorID:       actorID,
		Comment:       comment,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
}

// Envelope returns the shared fields
func (b *Base) Envelope() *Base {
	return b
}

// Related returns a copy of b with a new ID that keeps the correlation ID,
// so pre and post events of one transition can be linked
func (b Base) Related() Base {
	b.ID = uuid.NewString()
	b.OccurredAt = time.Now().UTC()
	return b
}

// Approving fires before an approval is persisted
type Approving struct {
	Base
}

func (e *Approving) Kind() Kind { return KindApproving }

// Approved fires after an approval is persisted
type Approved struct {
	Base
	Record *approval.Record `json:"approval"`
}

func (e *Approved) Kind() Kind { return KindApproved }

// Rejecting fires before a rejection is persisted
type Rejecting struct {
	Base
	Reason *string `json:"reason,omitempty"`
}

func (e *Rejecting) Kind() Kind { return KindRejecting }

// Rejected fires after a rejection is persisted
type Rejected struct {
	Base
	Reason *string          `json:"reason,omitempty"`
	Record *approval.Record `json:"approval"`
}

func (e *Rejected) Kind() Kind { return KindRejected }

// SettingPending fires after a pending record is persisted, before Pending
type SettingPending struct {
	Base
	Record *approval.Record `json:"approval"`
}

func (e *SettingPending) Kind() Kind { return KindSettingPending }

// Pending fires after a pending record is persisted
type Pending struct {
	Base
	Record *approval.Record `json:"approval"`
}

func (e *Pending) Kind() Kind { return KindPending }

// RecordOf returns the persisted record carried by evt, if any
func RecordOf(evt Event) *approval.Record {
	switch e := evt.(type) {
	case *Approved:
		return e.Record
	case *Rejected:
		return e.Record
	case *SettingPending:
		return e.Record
	case *Pending:
		return e.Record
	default:
		return nil
	}
}

// ReasonOf returns the rejection reason carried by evt, if any
func ReasonOf(evt Event) *string {
	switch e := evt.(type) {
	case *Rejecting:
		return e.Reason
	case *Rejected:
		return e.Reason
	default:
		return nil
	}
}

// Fields flattens the event into key/value pairs for structured logging
func Fields(evt Event) []interface{} {
	b := evt.Envelope()
	fields := []interface{}{
		"event", evt.Kind().String(),
		"event_id", b.ID,
		"subject_type", b.Subject.Type,
		"subject_id", b.Subject.ID,
	}
	if b.ActorID != nil {
		fields = append(fields, "caused_by", *b.ActorID)
	}
	if b.Comment != nil {
		fields = append(fields, "comment", *b.Comment)
	}
	if reason := ReasonOf(evt); reason != nil {
		fields = append(fields, "reason", *reason)
	}
	if rec := RecordOf(evt); rec != nil {
		fields = append(fields, "approval_id", rec.ID, "status", rec.Status.String())
	}
	if len(b.Context) > 0 {
		fields = append(fields, "context", b.Context)
	}
	if len(b.Metadata) > 0 {
		fields = append(fields, "metadata", b.Metadata)
	}
	return fields
}
