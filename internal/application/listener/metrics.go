package listener

import (
	"context"

	"github.com/garyjia/approvals/internal/domain/event"
)

// MetricsListener counts events per kind and subject type
type MetricsListener struct {
	recorder Recorder
}

// NewMetricsListener creates a MetricsListener
func NewMetricsListener(r Recorder) *MetricsListener {
	return &MetricsListener{recorder: r}
}

func (l *MetricsListener) Name() string { return "metrics" }

func (l *MetricsListener) Handle(_ context.Context, evt event.Event) error {
	l.recorder.EventDispatched(evt.Kind().String(), evt.Envelope().Subject.Type)
	return nil
}
