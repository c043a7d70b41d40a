package transport

import (
	"encoding/json"
	"strings"
	"time"
)

// Date is a calendar day carried as "YYYY-MM-DD". Full RFC 3339 timestamps
// are accepted and truncated to their date.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, raw)
		if tsErr != nil {
			return err
		}
		parsed = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	d.Time = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// Ptr returns nil for a missing date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// DateOf wraps a stored date for responses.
func DateOf(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{Time: *t}
}
