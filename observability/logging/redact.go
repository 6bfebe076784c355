package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces masked attribute values.
const RedactedValue = "[REDACTED]"

// Keys emitted as-is. Amounts, fees, stakes, handles and commitments stay
// masked.
var allowedKeys = func() map[string]struct{} {
	keys := []string{
		// envelope
		"service", "env", "message", "severity", "timestamp",
		"error", "reason", "component", "operation", "kind",
		// escrow events
		"event", "id", "buyer", "seller", "private", "outcome",
		"arbitrator", "disputer", "voter", "choice", "disposition", "recipient",
	}
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}()

func normaliseKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Allowlisted reports whether key is logged without masking.
func Allowlisted(key string) bool {
	_, ok := allowedKeys[normaliseKey(key)]
	return ok
}

// AllowedKeys returns the allowlist, sorted.
func AllowedKeys() []string {
	out := make([]string, 0, len(allowedKeys))
	for key := range allowedKeys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// MaskField builds a string attr, masking value unless key is allowlisted.
// Blank values pass through untouched.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) != "" && !Allowlisted(key) {
		value = RedactedValue
	}
	return slog.String(key, value)
}
