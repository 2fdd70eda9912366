package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/port"
)

const defaultTimeout = 10 * time.Second

type payload struct {
	To      string                 `json:"to"`
	Subject string                 `json:"subject"`
	Body    string                 `json:"body"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// HTTPSender hands notifications to a delivery service over HTTP
type HTTPSender struct {
	poster  port.WebhookPoster
	url     string
	headers map[string]string
	timeout time.Duration
}

// NewHTTPSender creates an HTTPSender posting to url. A zero timeout uses
// ten seconds.
func NewHTTPSender(poster port.WebhookPoster, url string, headers map[string]string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSender{
		poster:  poster,
		url:     url,
		headers: headers,
		timeout: timeout,
	}
}

// Send implements port.NotificationSender
func (s *HTTPSender) Send(ctx context.Context, msg port.Message) error {
	body, err := json.Marshal(payload{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		Event:   msg.Event,
		Data:    msg.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	resp, err := s.poster.Post(ctx, s.url, s.headers, body, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("notification endpoint responded with status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements port.NotificationSender
func (s *LogSender) Send(_ context.Context, msg port.Message) error {
	s.logger.Info("Notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("event", msg.Event),
		zap.String("body", msg.Body))
	return nil
}

var (
	_ port.NotificationSender = (*HTTPSender)(nil)
	_ port.NotificationSender = (*LogSender)(nil)
)
