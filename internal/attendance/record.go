package attendance

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Method says how a presence was captured.
type Method int

const (
	MethodCredential Method = iota + 1
	MethodManual
)

func (m Method) String() string {
	switch m {
	case MethodCredential:
		return "qrcode"
	case MethodManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseMethod converts the stored form of a method.
func ParseMethod(v string) (Method, error) {
	switch v {
	case "qrcode":
		return MethodCredential, nil
	case "manual":
		return MethodManual, nil
	default:
		return 0, fmt.Errorf("unknown attendance method %q", v)
	}
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Value implements driver.Valuer.
func (m Method) Value() (driver.Value, error) {
	switch m {
	case MethodCredential, MethodManual:
		return m.String(), nil
	default:
		return nil, fmt.Errorf("invalid attendance method %d", int(m))
	}
}

// Scan implements sql.Scanner.
func (m *Method) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into attendance method", src)
	}
	parsed, err := ParseMethod(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// GeoPoint is an optional device location reported at check-in.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Record is a registered presence. At most one exists per (session, student).
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Timestamp time.Time `json:"timestamp"`
	Method    Method    `json:"method"`
	DeviceID  *string   `json:"device_id,omitempty"`
	Geo       *GeoPoint `json:"geo,omitempty"`
}
