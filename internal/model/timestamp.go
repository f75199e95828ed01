package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a time read from an upstream source.
//
// Zoned is false when the source text carried no zone designator, in which
// case the wall clock in Time is meant to be read as UTC.
type Timestamp struct {
	Time  time.Time
	Zoned bool
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

var unzonedLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO 8601 style timestamp with or without a zone.
func ParseTimestamp(text string) (Timestamp, error) {
	for _, layout := range zonedLayouts {
		if value, err := time.Parse(layout, text); err == nil {
			return Timestamp{Time: value, Zoned: true}, nil
		}
	}

	for _, layout := range unzonedLayouts {
		if value, err := time.Parse(layout, text); err == nil {
			return Timestamp{Time: value, Zoned: false}, nil
		}
	}

	return Timestamp{}, fmt.Errorf("invalid timestamp: %q", text)
}

// UnmarshalJSON reads a JSON string into a Timestamp.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var text string

	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}

	parsed, err := ParseTimestamp(text)

	if err != nil {
		return err
	}

	*ts = parsed

	return nil
}
