package neoapi

import (
	"fmt"
	"strings"
	"time"
)

// FiredLayout is how fire times are sent: naive ISO-8601 in the server's
// zone. The service discards any offset it is given.
const FiredLayout = "2006-01-02T15:04:05.000000"

// Layouts accepted by ParseTimestamp, tried in order. Those without a zone
// are read in the server's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTimestamp decodes a service timestamp. The service emits ISO-8601
// with or without an offset, or RFC 1123 depending on its JSON encoder;
// naive values are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("neoapi: empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("neoapi: unrecognised timestamp %q", s)
}

// FormatFired renders t for the railgun's "fired" field.
func FormatFired(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(FiredLayout)
}
