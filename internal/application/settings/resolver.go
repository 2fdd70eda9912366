package settings

import (
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/garyjia/approvals/internal/domain/approval"
)

// Resolver looks up effective settings for a subject type: the type's own
// map first, then the global defaults, then the caller's fallback.
// It is read-only after construction.
type Resolver struct {
	defaults map[string]interface{}
	types    map[string]map[string]interface{}
}

// NewResolver snapshots the given maps. Subject type names are matched
// case-insensitively.
func NewResolver(defaults map[string]interface{}, types map[string]map[string]interface{}) *Resolver {
	r := &Resolver{
		defaults: copyMap(defaults),
		types:    make(map[string]map[string]interface{}, len(types)),
	}
	for name, values := range types {
		r.types[strings.ToLower(name)] = copyMap(values)
	}
	return r
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Resolve returns the effective value of key for subjectType
func (r *Resolver) Resolve(subjectType string, key Key, fallback interface{}) interface{} {
	if overrides, ok := r.types[strings.ToLower(subjectType)]; ok {
		if v, ok := overrides[key.String()]; ok {
			return v
		}
	}
	if v, ok := r.defaults[key.String()]; ok {
		return v
	}
	return fallback
}

// SubjectTypes returns the configured subject types in sorted order
func (r *Resolver) SubjectTypes() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsConfigured reports whether subjectType has its own settings block
func (r *Resolver) IsConfigured(subjectType string) bool {
	_, ok := r.types[strings.ToLower(subjectType)]
	return ok
}

// Bool resolves a flag. Values that cannot be read as a boolean yield fallback.
func (r *Resolver) Bool(subjectType string, key Key, fallback bool) bool {
	v := r.Resolve(subjectType, key, fallback)
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback
	}
	return b
}

// String resolves a string setting
func (r *Resolver) String(subjectType string, key Key, fallback string) string {
	v := r.Resolve(subjectType, key, nil)
	if v == nil {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return fallback
	}
	return s
}

// Mode resolves the storage strategy
func (r *Resolver) Mode(subjectType string) (Mode, error) {
	raw := r.String(subjectType, KeyMode, ModeInsert.String())
	mode := Mode(raw)
	if !mode.IsValid() {
		return "", &approval.InvalidStatusError{
			Value: raw,
			Code:  approval.CodeUnknownStatus,
			Err: &approval.ConfigError{
				SubjectType: subjectType,
				Key:         KeyMode.String(),
				Reason:      "must be insert or upsert",
			},
		}
	}
	return mode, nil
}

// UnauditedStatus resolves the status reported for subjects without records.
// A nil status means "no status".
func (r *Resolver) UnauditedStatus(subjectType string) (*approval.Status, error) {
	v := r.Resolve(subjectType, KeyDefaultStatusForUnaudited, nil)
	if v == nil {
		return nil, nil
	}
	raw, err := cast.ToStringE(v)
	if err != nil || raw == "" {
		return nil, nil
	}
	status, err := approval.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// RejectionReasons resolves the allowed reasons. A list keeps its order; a
// map is ordered by code.
func (r *Resolver) RejectionReasons(subjectType string) []Reason {
	reasons, err := decodeReasons(r.Resolve(subjectType, KeyRejectionReasons, nil))
	if err != nil {
		return nil
	}
	return reasons
}

// HasReason reports whether code is a configured reason key (exact match)
func (r *Resolver) HasReason(subjectType, code string) bool {
	for _, reason := range r.RejectionReasons(subjectType) {
		if reason.Code == code {
			return true
		}
	}
	return false
}

// ReasonCodes returns the configured reason keys in order
func (r *Resolver) ReasonCodes(subjectType string) []string {
	reasons := r.RejectionReasons(subjectType)
	codes := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		codes = append(codes, reason.Code)
	}
	return codes
}

// AllowsCustomReasons reports the allow_custom_reasons flag
func (r *Resolver) AllowsCustomReasons(subjectType string) bool {
	return r.Bool(subjectType, KeyAllowCustomReasons, false)
}

// Webhooks resolves the endpoint list. Malformed entries are skipped.
func (r *Resolver) Webhooks(subjectType string) []Endpoint {
	endpoints, _ := decodeEndpoints(r.Resolve(subjectType, KeyWebhookEndpoints, nil))
	return endpoints
}

// CustomActions returns the action names registered for an event name
func (r *Resolver) CustomActions(subjectType, eventName string) []string {
	v := r.Resolve(subjectType, KeyCustomActions, nil)
	actions, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	names, err := cast.ToStringSliceE(actions[strings.ToLower(eventName)])
	if err != nil {
		return nil
	}
	return names
}

// LoggingChannel returns the named log channel, or "" for the default one
func (r *Resolver) LoggingChannel(subjectType string) string {
	return r.String(subjectType, KeyEventsLoggingChannel, "")
}

// ActorType returns the discriminator recorded alongside actor ids
func (r *Resolver) ActorType(subjectType string) string {
	return r.String(subjectType, KeyActorType, approval.DefaultActorType)
}

func decodeReasons(v interface{}) ([]Reason, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []Reason:
		return val, nil
	case map[string]string:
		return reasonsFromMap(cast.ToStringMap(val))
	case map[string]interface{}:
		return reasonsFromMap(val)
	case []interface{}, []map[string]interface{}, []map[string]string:
		var reasons []Reason
		if err := mapstructure.Decode(val, &reasons); err != nil {
			return nil, err
		}
		for _, reason := range reasons {
			if reason.Code == "" {
				return nil, errEmptyReasonCode
			}
		}
		return reasons, nil
	default:
		return nil, errReasonsShape
	}
}

func reasonsFromMap(m map[string]interface{}) ([]Reason, error) {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	reasons := make([]Reason, 0, len(codes))
	for _, code := range codes {
		label, ok := m[code].(string)
		if !ok {
			return nil, errReasonsShape
		}
		reasons = append(reasons, Reason{Code: code, Label: label})
	}
	return reasons, nil
}

func decodeEndpoints(v interface{}) ([]Endpoint, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []Endpoint:
		return val, nil
	case []interface{}, []map[string]interface{}:
		var endpoints []Endpoint
		if err := mapstructure.Decode(val, &endpoints); err != nil {
			return nil, err
		}
		valid := endpoints[:0]
		var firstErr error
		for _, ep := range endpoints {
			if ep.URL == "" {
				if firstErr == nil {
					firstErr = errEndpointURL
				}
				continue
			}
			valid = append(valid, ep)
		}
		return valid, firstErr
	default:
		return nil, errEndpointsShape
	}
}
