// Package trace implements the W3C traceparent header format used to
// correlate requests across the gateway and its upstreams.
package trace

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// traceparent: version "-" trace-id "-" parent-id "-" trace-flags
var traceparentRe = regexp.MustCompile(`^([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})$`)

// IsValidTraceparent reports whether s is a well-formed traceparent header.
// Version ff is reserved and all-zero trace or parent ids are invalid.
func IsValidTraceparent(s string) bool {
	m := traceparentRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	if m[1] == "ff" {
		return false
	}
	if m[2] == strings.Repeat("0", 32) || m[3] == strings.Repeat("0", 16) {
		return false
	}
	return true
}

// NewTraceparent generates a fresh sampled traceparent.
func NewTraceparent() string {
	return "00-" + randHex(32) + "-" + randHex(16) + "-01"
}

// TraceID extracts the 32-hex trace id from a traceparent, or "" if malformed.
func TraceID(traceparent string) string {
	m := traceparentRe.FindStringSubmatch(traceparent)
	if m == nil {
		return ""
	}
	return m[2]
}

// randHex returns n hex characters of UUID-sourced randomness. A v4 UUID
// yields 32 hex digits, enough for a trace id in one draw.
func randHex(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.New().String(), "-", ""))
	}
	return b.String()[:n]
}
