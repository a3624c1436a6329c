package splunk

import (
	"regexp"
	"strconv"
	"time"
)

// Splunk accepts a wide family of time specifiers. The patterns below cover
// the ones the tools generate or that operators type by hand.
var relativeTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^-\d+[smhdwMy]$`),
	regexp.MustCompile(`(?i)^-\d+[smhdwMy]@[smhdwMy]$`),
	regexp.MustCompile(`(?i)^now$`),
	regexp.MustCompile(`(?i)^earliest$`),
	regexp.MustCompile(`(?i)^latest$`),
	regexp.MustCompile(`(?i)^rt$`),
	regexp.MustCompile(`(?i)^rt-\d+[smh]$`),
}

var absoluteTimeFormats = []struct {
	pattern *regexp.Regexp
	layout  string
}{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`), "2006-01-02T15:04:05"},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z?$`), "2006-01-02T15:04:05.000"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}:\d{2}:\d{2}:\d{2}$`), "01/02/2006:15:04:05"},
}

// ValidTimeRange reports whether s is an acceptable Splunk time specifier:
// relative offsets (-24h, -1d@d), now/earliest/latest, real-time windows,
// absolute ISO or US timestamps, or epoch seconds.
func ValidTimeRange(s string) bool {
	if s == "" {
		return false
	}
	for _, p := range relativeTimePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	for _, f := range absoluteTimeFormats {
		if f.pattern.MatchString(s) {
			trimmed := s
			if len(trimmed) > 0 && trimmed[len(trimmed)-1] == 'Z' {
				trimmed = trimmed[:len(trimmed)-1]
			}
			if _, err := time.Parse(f.layout, trimmed); err == nil {
				return true
			}
			return false
		}
	}
	if epoch, err := strconv.ParseFloat(s, 64); err == nil {
		return epoch > 0 && epoch < 2147483647
	}
	return false
}

// CheckTimeRange validates a named time bound, returning a ValidationError
// suited for surfacing back through the RPC layer.
func CheckTimeRange(field, value string) error {
	if !ValidTimeRange(value) {
		return &ValidationError{Field: field, Reason: "unrecognized time format " + strconv.Quote(value)}
	}
	return nil
}
