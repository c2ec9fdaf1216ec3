package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expiry is a refresh-token expiry as sent by identity-provider clients:
// either epoch seconds or an ISO-8601 / SQL datetime string. The zero value
// means "absent".
type Expiry struct{ time.Time }

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseExpiry normalizes a string expiry to UTC.
func ParseExpiry(s string) (Expiry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Expiry{}, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ExpiryFromUnix(sec), nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Expiry{t.UTC()}, nil
		}
	}
	return Expiry{}, fmt.Errorf("unrecognized expiry %q", s)
}

// ExpiryFromUnix converts epoch seconds.
func ExpiryFromUnix(sec int64) Expiry {
	if sec <= 0 {
		return Expiry{}
	}
	return Expiry{time.Unix(sec, 0).UTC()}
}

// UnmarshalJSON accepts a number, a string or null.
func (e *Expiry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = Expiry{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseExpiry(s)
		if err != nil {
			return err
		}
		*e = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("expiry: %w", err)
	}
	*e = ExpiryFromUnix(int64(f))
	return nil
}

// MarshalJSON renders RFC 3339 or null.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(e.Time.Format(time.RFC3339))
}

// Ptr returns nil for the zero value.
func (e Expiry) Ptr() *time.Time {
	if e.IsZero() {
		return nil
	}
	t := e.Time
	return &t
}
