// Package listener contains the consumers subscribed to approval lifecycle
// events. Each one is best-effort: it logs its own failures and never lets
// them reach the transition that produced the event.
package listener

import (
	"context"
	"time"

	"github.com/garyjia/approvals/internal/application/dispatcher"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ChannelLogger can hand out a logger for a named channel
type ChannelLogger interface {
	Logger
	Channel(name string) Logger
}

// Settings is the slice of the configuration resolver listeners read
type Settings interface {
	Bool(subjectType string, key settings.Key, fallback bool) bool
	LoggingChannel(subjectType string) string
	Webhooks(subjectType string) []settings.Endpoint
	CustomActions(subjectType, eventName string) []string
}

// Recorder receives delivery measurements
type Recorder interface {
	EventDispatched(kind, subjectType string)
	WebhookDelivered(eventName string, success bool, elapsed time.Duration)
	CustomActionFailed(action string)
}

type noopRecorder struct{}

func (noopRecorder) EventDispatched(string, string)               {}
func (noopRecorder) WebhookDelivered(string, bool, time.Duration) {}
func (noopRecorder) CustomActionFailed(string)                    {}

// Listener consumes every lifecycle event
type Listener interface {
	Name() string
	Handle(ctx context.Context, evt event.Event) error
}

// Register subscribes each listener to all lifecycle kinds, in order
func Register(d dispatcher.Dispatcher, listeners ...Listener) {
	for _, l := range listeners {
		d.SubscribeAll(l.Name(), l.Handle)
	}
}
