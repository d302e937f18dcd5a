package compiler

import (
	"regexp"
	"strings"
	"time"
)

// MySQL DATETIME rejects ISO-8601 strings, so incoming values that look
// like timestamps get rewritten to "YYYY-MM-DD HH:MM:SS" before binding.
// Anything that doesn't match passes through untouched.
var isoDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?Z?$`)

// NormalizeValue rewrites ISO-8601 timestamp strings (and time.Time
// values from in-process callers) into MySQL DATETIME literals. Sub-second
// precision is dropped.
func NormalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		if isoDateTimeRe.MatchString(t) {
			return strings.Replace(t[:19], "T", " ", 1)
		}
		return v
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

// prepareRecord normalizes every value of an insert/update record.
func prepareRecord(rec map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = NormalizeValue(v)
	}
	return out
}
