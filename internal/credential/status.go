package credential

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Status is the durable lifecycle state of a credential.
type Status int

const (
	StatusActive Status = iota + 1
	StatusUsed
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusUsed:
		return "used"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ParseStatus converts the stored form of a status.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "active":
		return StatusActive, nil
	case "used":
		return StatusUsed, nil
	case "expired":
		return StatusExpired, nil
	default:
		return 0, fmt.Errorf("unknown credential status %q", v)
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	switch s {
	case StatusActive, StatusUsed, StatusExpired:
		return s.String(), nil
	default:
		return nil, fmt.Errorf("invalid credential status %d", int(s))
	}
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into credential status", src)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NonceState is the state of a nonce in the ephemeral store.
type NonceState int

const (
	// NonceAbsent covers both never-issued and evicted nonces.
	NonceAbsent NonceState = iota
	NonceActive
	NonceUsed
)

func (n NonceState) String() string {
	switch n {
	case NonceActive:
		return "active"
	case NonceUsed:
		return "used"
	default:
		return "absent"
	}
}

// Record is the durable credential row.
type Record struct {
	ID        string
	TokenID   string
	SessionID string
	Payload   string
	Nonce     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Status    Status
}

// EffectiveStatus applies lazy expiry: once ExpiresAt has passed the
// credential is EXPIRED whatever the stored status says.
func (r Record) EffectiveStatus(now time.Time) Status {
	if !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// Rejection reasons surfaced to callers.
const (
	ReasonBadSignature       = "bad_signature"
	ReasonExpired            = "expired"
	ReasonUnknownOrExpired   = "unknown_or_expired"
	ReasonAlreadyUsed        = "already_used"
	ReasonNotFoundOrInactive = "not_found_or_inactive"
)
