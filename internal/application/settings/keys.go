package settings

// Key names a per-subject-type setting
type Key string

const (
	KeyMode                      Key = "mode"
	KeyAutoPendingOnCreate       Key = "auto_pending_on_create"
	KeyDefaultStatusForUnaudited Key = "default_status_for_unaudited"
	KeyShowOnlyApprovedByDefault Key = "show_only_approved_by_default"
	KeyAutoScope                 Key = "auto_scope"
	KeyEventsEnabled             Key = "events_enabled"
	KeyEventsLogging             Key = "events_logging"
	KeyEventsLoggingChannel      Key = "events_logging_channel"
	KeyWebhooksEnabled           Key = "events_webhooks_enabled"
	KeyWebhookEndpoints          Key = "events_webhooks_endpoints"
	KeyCustomActions             Key = "events_custom_actions"
	KeyRejectionReasons          Key = "rejection_reasons"
	KeyAllowCustomReasons        Key = "allow_custom_reasons"
	KeyActorType                 Key = "actor_type"
)

func (k Key) String() string {
	return string(k)
}

var boolKeys = []Key{
	KeyAutoPendingOnCreate,
	KeyShowOnlyApprovedByDefault,
	KeyAutoScope,
	KeyEventsEnabled,
	KeyEventsLogging,
	KeyWebhooksEnabled,
	KeyAllowCustomReasons,
}

// Mode is the audit record storage strategy
type Mode string

const (
	// ModeInsert appends a record per transition
	ModeInsert Mode = "insert"
	// ModeUpsert keeps one record per subject and overwrites it
	ModeUpsert Mode = "upsert"
)

func (m Mode) IsValid() bool {
	return m == ModeInsert || m == ModeUpsert
}

func (m Mode) String() string {
	return string(m)
}

// Reason is one allowed rejection reason
type Reason struct {
	Code  string `mapstructure:"code" json:"code"`
	Label string `mapstructure:"label" json:"label"`
}

// Endpoint is one webhook target
type Endpoint struct {
	URL     string            `mapstructure:"url" json:"url"`
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Events  []string          `mapstructure:"events" json:"events,omitempty"`
}

// Accepts reports whether the endpoint subscribes to the named event.
// An empty filter accepts everything.
func (e Endpoint) Accepts(event string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, name := range e.Events {
		if name == event {
			return true
		}
	}
	return false
}

// DefaultRejectionReasons is the built-in reason list
var DefaultRejectionReasons = []Reason{
	{Code: "inappropriate_content", Label: "Inappropriate Content"},
	{Code: "spam", Label: "Spam"},
	{Code: "duplicate", Label: "Duplicate"},
	{Code: "incomplete", Label: "Incomplete"},
	{Code: "other", Label: "Other"},
}

// DefaultValues returns the global defaults applied when the configuration
// file does not set a key
func DefaultValues() map[string]interface{} {
	reasons := make([]interface{}, 0, len(DefaultRejectionReasons))
	for _, r := range DefaultRejectionReasons {
		reasons = append(reasons, map[string]interface{}{"code": r.Code, "label": r.Label})
	}
	return map[string]interface{}{
		KeyMode.String():                      ModeInsert.String(),
		KeyAutoPendingOnCreate.String():       false,
		KeyShowOnlyApprovedByDefault.String(): false,
		KeyAutoScope.String():                 true,
		KeyEventsEnabled.String():             true,
		KeyEventsLogging.String():             true,
		KeyWebhooksEnabled.String():           false,
		KeyWebhookEndpoints.String():          []interface{}{},
		KeyAllowCustomReasons.String():        false,
		KeyRejectionReasons.String():          reasons,
	}
}
