package event

// Kind identifies a lifecycle event. The value is the wire name used in
// configuration (custom actions, webhook filters) and webhook bodies.
type Kind string

const (
	KindApproving      Kind = "model_approving"
	KindApproved       Kind = "model_approved"
	KindRejecting      Kind = "model_rejecting"
	KindRejected       Kind = "model_rejected"
	KindSettingPending Kind = "model_setting_pending"
	KindPending        Kind = "model_pending"
)

// Kinds returns all lifecycle kinds in emission order
func Kinds() []Kind {
	return []Kind{
		KindApproving,
		KindApproved,
		KindRejecting,
		KindRejected,
		KindSettingPending,
		KindPending,
	}
}

// String returns the string representation of the event kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the defined constants
func (k Kind) IsValid() bool {
	switch k {
	case KindApproving,
		KindApproved,
		KindRejecting,
		KindRejected,
		KindSettingPending,
		KindPending:
		return true
	default:
		return false
	}
}

// IsPre is true for events emitted before persistence
func (k Kind) IsPre() bool {
	return k == KindApproving || k == KindRejecting
}
