package port

import (
	"context"
	"time"
)

// HTTPResponse is the part of a webhook response the engine looks at
type HTTPResponse struct {
	StatusCode int
}

// IsSuccess reports a 2xx status
func (r *HTTPResponse) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// WebhookPoster sends a JSON body to a URL. Network failures are returned as
// errors; non-2xx responses are returned with a nil error.
type WebhookPoster interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte, timeout time.Duration) (*HTTPResponse, error)
}

// Message is one outbound notification
type Message struct {
	To      string
	Subject string
	Body    string
	Event   string
	Data    map[string]interface{}
}

// NotificationSender delivers a notification to one recipient
type NotificationSender interface {
	Send(ctx context.Context, msg Message) error
}
