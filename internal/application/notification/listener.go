// Package notification tells people about moderation outcomes. Delivery is
// best-effort: only publication of the underlying event is guaranteed.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config selects which outcomes are announced and to whom
type Config struct {
	Enabled     bool
	OnApproved  bool
	OnRejected  bool
	OnPending   bool
	NotifyOwner bool
	AdminEmail  string
}

// DefaultConfig announces approvals and rejections, not pending
func DefaultConfig() Config {
	return Config{
		OnApproved:  true,
		OnRejected:  true,
		NotifyOwner: true,
	}
}

// Wants reports whether the event kind is announced
func (c Config) Wants(kind event.Kind) bool {
	if !c.Enabled {
		return false
	}
	switch kind {
	case event.KindApproved:
		return c.OnApproved
	case event.KindRejected:
		return c.OnRejected
	case event.KindPending:
		return c.OnPending
	default:
		return false
	}
}

// Owners finds the subject whose owner should hear about a decision
type Owners interface {
	Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error)
}

// Listener turns post-transition events into notifications
type Listener struct {
	cfg    Config
	owners Owners
	sender port.NotificationSender
	logger Logger
}

// NewListener creates a Listener. owners may be nil when NotifyOwner is off.
func NewListener(cfg Config, owners Owners, sender port.NotificationSender, logger Logger) *Listener {
	return &Listener{
		cfg:    cfg,
		owners: owners,
		sender: sender,
		logger: logger,
	}
}

func (l *Listener) Name() string { return "notifications" }

// Handle sends one message per recipient. Failures are logged and never returned.
func (l *Listener) Handle(ctx context.Context, evt event.Event) error {
	if !l.cfg.Wants(evt.Kind()) {
		return nil
	}

	recipients := l.recipients(ctx, evt.Envelope().Subject)
	if len(recipients) == 0 {
		return nil
	}

	msg := BuildMessage(evt)
	for _, to := range recipients {
		msg.To = to
		if err := l.sender.Send(ctx, msg); err != nil {
			l.logger.Warn("Failed to send approval notification",
				"to", to,
				"event", msg.Event,
				"subject", evt.Envelope().Subject.String(),
				"error", err,
			)
			continue
		}
		l.logger.Info("Approval notification sent", "to", to, "event", msg.Event)
	}
	return nil
}

func (l *Listener) recipients(ctx context.Context, ref approval.SubjectRef) []string {
	var out []string
	if l.cfg.NotifyOwner && l.owners != nil {
		subject, err := l.owners.Get(ctx, ref)
		switch {
		case errors.Is(err, approval.ErrSubjectNotFound):
		case err != nil:
			l.logger.Warn("Failed to look up subject owner", "subject", ref.String(), "error", err)
		case subject.OwnerID != nil && *subject.OwnerID != "":
			out = append(out, *subject.OwnerID)
		}
	}
	if admin := strings.TrimSpace(l.cfg.AdminEmail); admin != "" {
		out = append(out, admin)
	}
	return out
}

// BuildMessage renders the notification for a post-transition event.
// The recipient is left empty.
func BuildMessage(evt event.Event) port.Message {
	b := evt.Envelope()
	data := map[string]interface{}{
		"subject_type": b.Subject.Type,
		"subject_id":   b.Subject.ID,
	}

	verb := "is pending review"
	if rec := event.RecordOf(evt); rec != nil {
		data["status"] = rec.Status.String()
		data["approval_id"] = rec.ID
		switch rec.Status {
		case approval.StatusApproved:
			verb = "was approved"
		case approval.StatusRejected:
			verb = "was rejected"
		}
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s %s %s.", b.Subject.Type, b.Subject.ID, verb)
	if reason := event.ReasonOf(evt); reason != nil {
		data["reason"] = *reason
		fmt.Fprintf(&body, "\nReason: %s", *reason)
	}
	if b.Comment != nil && *b.Comment != "" {
		data["comment"] = *b.Comment
		fmt.Fprintf(&body, "\nComment: %s", *b.Comment)
	}

	return port.Message{
		Subject: fmt.Sprintf("[%s] %s %s", b.Subject.Type, b.Subject.ID, verb),
		Body:    body.String(),
		Event:   evt.Kind().String(),
		Data:    data,
	}
}
