package mailbox_tools

import (
	"fmt"
	"time"
)

const defaultMailbox = "INBOX"

// requireString extracts a mandatory non-empty string argument.
func requireString(args map[string]interface{}, name string) (string, error) {
	val, ok := args[name].(string)
	if !ok || val == "" {
		return "", fmt.Errorf("'%s' field is required", name)
	}
	return val, nil
}

// optionalString extracts a string argument, falling back to def when
// absent or empty.
func optionalString(args map[string]interface{}, name, def string) string {
	if val, ok := args[name].(string); ok && val != "" {
		return val
	}
	return def
}

// optionalFolder extracts a folder argument, defaulting to INBOX when
// absent. A folder that is present but empty is rejected rather than
// silently mapped to the default.
func optionalFolder(args map[string]interface{}, name string) (string, error) {
	val, present := args[name]
	if !present {
		return defaultMailbox, nil
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("'%s' must be a non-empty string when provided", name)
	}
	return s, nil
}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(name, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' must be an ISO 8601 timestamp or YYYY-MM-DD date, got %q", name, value)
	}
	return t, nil
}

// parseLimit extracts a positive result limit; zero means unset.
func parseLimit(args map[string]interface{}) (int, error) {
	val, ok := args["limit"]
	if !ok {
		return 0, nil
	}
	f, ok := val.(float64)
	if !ok {
		return 0, fmt.Errorf("'limit' must be a number")
	}
	limit := int(f)
	if limit <= 0 {
		return 0, fmt.Errorf("'limit' must be positive, got %d", limit)
	}
	return limit, nil
}
