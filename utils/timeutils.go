package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ParseTimestamp attempts to parse a string using various common ISO 8601 and RFC 3339 formats.
func ParseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z07:00", // Basic ISO 8601
		"2006-01-02 15:04:05",       // Common DB format
		"2006-01-02T15:04:05",       // ISO 8601 without offset (assume UTC)
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp %q with any supported format", s)
}

// Server-side filenames embed a timestamp bracket, e.g.
// "SMW [2024-01-01 12-00-00-000].srm". Milliseconds are three digits.
var bracketRe = regexp.MustCompile(`\s*\[\d{4}-\d{2}-\d{2} \d{2}-\d{2}-\d{2}-\d{3}\]`)

// FormatBracket renders t in the filename-embedded layout (local time).
func FormatBracket(t time.Time) string {
	ms := t.Nanosecond() / int(time.Millisecond)
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02 15-04-05"), ms)
}

// StampFilename inserts a timestamp bracket before the extension:
// "SMW.srm" -> "SMW [2024-01-01 12-00-00-000].srm".
func StampFilename(name string, t time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	// Compound state extensions keep their full suffix.
	if strings.HasSuffix(strings.ToLower(name), ".state.auto") {
		base = name[:len(name)-len(".state.auto")]
		ext = name[len(base):]
	}
	return fmt.Sprintf("%s [%s]%s", base, FormatBracket(t), ext)
}

// StripBracket removes a timestamp bracket (and any whitespace before it) from a filename.
func StripBracket(name string) string {
	return bracketRe.ReplaceAllString(name, "")
}

// ParseBracket extracts the embedded timestamp from a filename, if present.
// The bracket is written in the uploader's local time.
func ParseBracket(name string) (time.Time, bool) {
	m := bracketRe.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	inner := strings.TrimSpace(m)
	inner = strings.TrimPrefix(inner, "[")
	inner = strings.TrimSuffix(inner, "]")

	// Milliseconds have no reference layout when dash-separated; split them off.
	const stampLen = len("2006-01-02 15-04-05")
	if len(inner) != stampLen+4 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15-04-05", inner[:stampLen], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	var ms int
	if _, err := fmt.Sscanf(inner[stampLen:], "-%03d", &ms); err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(ms) * time.Millisecond), true
}
