package access

// ReasonCode tells callers why the kernel denied an operation.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonNoStoreID         ReasonCode = "no-store-id"
	ReasonNotAuthenticated  ReasonCode = "not-authenticated"
	ReasonNoAccess          ReasonCode = "no-access"
	ReasonMissingPermission ReasonCode = "missing-permission"
)

// Decision is the kernel's answer for one check.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  ReasonCode `json:"reason,omitempty"`
	Detail  string     `json:"detail,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason ReasonCode, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}
