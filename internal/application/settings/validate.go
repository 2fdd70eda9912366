package settings

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/garyjia/approvals/internal/domain/approval"
)

var (
	errReasonsShape    = errors.New("must map reason codes to string labels")
	errEmptyReasonCode = errors.New("reason code cannot be empty")
	errEndpointsShape  = errors.New("must be a list of endpoints")
	errEndpointURL     = errors.New("every endpoint needs a url")
)

// ValidateTypeConfig checks that the effective settings of subjectType have
// a consistent shape. Failures are InvalidStatusErrors wrapping a ConfigError
// that names the offending key.
func (r *Resolver) ValidateTypeConfig(subjectType string) error {
	fail := func(key Key, reason string) error {
		return &approval.InvalidStatusError{
			Code: approval.CodeUnknownStatus,
			Err:  &approval.ConfigError{SubjectType: subjectType, Key: key.String(), Reason: reason},
		}
	}

	if v := r.Resolve(subjectType, KeyMode, nil); v != nil {
		s, ok := v.(string)
		if !ok || !Mode(s).IsValid() {
			return fail(KeyMode, fmt.Sprintf("must be insert or upsert, got %v", v))
		}
	}

	for _, key := range boolKeys {
		if v := r.Resolve(subjectType, key, nil); v != nil {
			if _, ok := v.(bool); !ok {
				return fail(key, fmt.Sprintf("must be a boolean, got %T", v))
			}
		}
	}

	if v := r.Resolve(subjectType, KeyDefaultStatusForUnaudited, nil); v != nil {
		s, ok := v.(string)
		if !ok {
			return fail(KeyDefaultStatusForUnaudited, fmt.Sprintf("must be a status or null, got %T", v))
		}
		if s != "" {
			if _, err := approval.ParseStatus(s); err != nil {
				return fail(KeyDefaultStatusForUnaudited, err.Error())
			}
		}
	}

	if _, err := decodeReasons(r.Resolve(subjectType, KeyRejectionReasons, nil)); err != nil {
		return fail(KeyRejectionReasons, err.Error())
	}

	if _, err := decodeEndpoints(r.Resolve(subjectType, KeyWebhookEndpoints, nil)); err != nil {
		return fail(KeyWebhookEndpoints, err.Error())
	}

	if v := r.Resolve(subjectType, KeyCustomActions, nil); v != nil {
		actions, err := cast.ToStringMapE(v)
		if err != nil {
			return fail(KeyCustomActions, "must map event names to action lists")
		}
		for name, list := range actions {
			if list == nil {
				continue
			}
			if _, err := cast.ToStringSliceE(list); err != nil {
				return fail(KeyCustomActions, fmt.Sprintf("actions for %s must be a list of names", name))
			}
		}
	}

	return nil
}

// ValidateAll checks the defaults and every configured subject type
func (r *Resolver) ValidateAll() error {
	if err := r.ValidateTypeConfig(""); err != nil {
		return err
	}
	for _, name := range r.SubjectTypes() {
		if err := r.ValidateTypeConfig(name); err != nil {
			return err
		}
	}
	return nil
}
