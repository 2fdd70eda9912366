package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/domain/event"
)

// DefaultWebhookTimeout bounds each endpoint call
const DefaultWebhookTimeout = 30 * time.Second

// StatusError is reported for a non-2xx webhook response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
}

// WebhookListener posts events to the configured endpoints, one at a time
type WebhookListener struct {
	settings Settings
	poster   port.WebhookPoster
	logger   Logger
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time
}

// WebhookOption configures a WebhookListener
type WebhookOption func(*WebhookListener)

// WithTimeout overrides the per-endpoint timeout
func WithTimeout(d time.Duration) WebhookOption {
	return func(l *WebhookListener) {
		l.timeout = d
	}
}

// WithRecorder reports deliveries to r. A nil r is ignored.
func WithRecorder(r Recorder) WebhookOption {
	return func(l *WebhookListener) {
		if r != nil {
			l.recorder = r
		}
	}
}

// NewWebhookListener creates a WebhookListener
func NewWebhookListener(s Settings, poster port.WebhookPoster, logger Logger, opts ...WebhookOption) *WebhookListener {
	l := &WebhookListener{
		settings: s,
		poster:   poster,
		logger:   logger,
		recorder: noopRecorder{},
		timeout:  DefaultWebhookTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *WebhookListener) Name() string { return "webhooks" }

// Handle posts to every matching endpoint. Endpoint failures are logged and
// never returned.
func (l *WebhookListener) Handle(ctx context.Context, evt event.Event) error {
	subjectType := evt.Envelope().Subject.Type
	if !l.settings.Bool(subjectType, settings.KeyWebhooksEnabled, false) {
		return nil
	}

	eventName := evt.Kind().String()
	body, err := json.Marshal(BuildPayload(evt, l.now()))
	if err != nil {
		l.logger.Warn("Webhook payload could not be encoded",
			"event", eventName,
			"exception_message", err.Error(),
			"exception_class", fmt.Sprintf("%T", err),
		)
		return nil
	}

	// deliveries outlive the caller's cancellation
	deliveryCtx := context.WithoutCancel(ctx)

	for _, endpoint := range l.settings.Webhooks(subjectType) {
		if !endpoint.Accepts(eventName) {
			continue
		}
		l.send(deliveryCtx, endpoint, eventName, body)
	}
	return nil
}

func (l *WebhookListener) send(ctx context.Context, endpoint settings.Endpoint, eventName string, body []byte) {
	start := time.Now()
	err := l.post(ctx, endpoint, body)
	l.recorder.WebhookDelivered(eventName, err == nil, time.Since(start))

	if err != nil {
		l.logger.Warn("Webhook failed to dispatch.",
			"url", endpoint.URL,
			"event", eventName,
			"exception_message", err.Error(),
			"exception_class", fmt.Sprintf("%T", err),
		)
	}
}

func (l *WebhookListener) post(ctx context.Context, endpoint settings.Endpoint, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webhook panic: %v", r)
		}
	}()

	headers := make(map[string]string, len(endpoint.Headers)+1)
	for k, v := range endpoint.Headers {
		headers[k] = v
	}

	resp, err := l.poster.Post(ctx, endpoint.URL, headers, body, l.timeout)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		return &StatusError{StatusCode: code}
	}
	return nil
}

// ApprovalPayload is the nested record in a webhook body
type ApprovalPayload struct {
	ID               int64   `json:"id"`
	Status           string  `json:"status"`
	RejectionReason  *string `json:"rejection_reason"`
	RejectionComment *string `json:"rejection_comment"`
	RespondedAt      *string `json:"responded_at"`
}

// BuildPayload renders the JSON body sent to webhook endpoints
func BuildPayload(evt event.Event, now time.Time) map[string]interface{} {
	b := evt.Envelope()
	payload := map[string]interface{}{
		"event":        evt.Kind().String(),
		"model_class":  b.Subject.Type,
		"subject_type": b.Subject.Type,
		"model_id":     b.Subject.ID,
		"subject_id":   b.Subject.ID,
		"timestamp":    now.UTC().Format(time.RFC3339Nano),
	}

	if b.ActorID != nil {
		payload["caused_by"] = *b.ActorID
	}
	if reason := event.ReasonOf(evt); reason != nil {
		payload["reason"] = *reason
	}
	if b.Comment != nil {
		payload["comment"] = *b.Comment
	}
	if len(b.Context) > 0 {
		payload["context"] = b.Context
	}
	if len(b.Metadata) > 0 {
		payload["metadata"] = b.Metadata
	}

	if rec := event.RecordOf(evt); rec != nil {
		ap := ApprovalPayload{
			ID:               rec.ID,
			Status:           rec.Status.String(),
			RejectionReason:  rec.RejectionReason,
			RejectionComment: rec.RejectionComment,
		}
		if rec.RespondedAt != nil {
			ts := rec.RespondedAt.UTC().Format(time.RFC3339Nano)
			ap.RespondedAt = &ts
		}
		payload["approval"] = ap
	}

	return payload
}
