package listener

import (
	"context"

	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/domain/event"
)

// LoggingListener writes one structured line per event when events_logging is on
type LoggingListener struct {
	settings Settings
	logger   ChannelLogger
}

// NewLoggingListener creates a LoggingListener
func NewLoggingListener(s Settings, logger ChannelLogger) *LoggingListener {
	return &LoggingListener{settings: s, logger: logger}
}

func (l *LoggingListener) Name() string { return "logging" }

func (l *LoggingListener) Handle(_ context.Context, evt event.Event) error {
	subjectType := evt.Envelope().Subject.Type
	if !l.settings.Bool(subjectType, settings.KeyEventsLogging, true) {
		return nil
	}

	var logger Logger = l.logger
	if channel := l.settings.LoggingChannel(subjectType); channel != "" {
		logger = l.logger.Channel(channel)
	}

	logger.Info("Approval event: "+evt.Kind().String(), event.Fields(evt)...)
	return nil
}
