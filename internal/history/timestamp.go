package history

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the directory name format of a history record. All
// fields are zero-padded so string order equals chronological order.
const TimestampLayout = "2006-01-02_15-04-05"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`)

// FormatTimestamp encodes t in local time at one-second resolution.
func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

// ParseTimestamp decodes a record timestamp in local time.
func ParseTimestamp(s string) (time.Time, error) {
	if !ValidTimestamp(s) {
		return time.Time{}, fmt.Errorf("%w: malformed timestamp %q", ErrInvalidInput, s)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parsing timestamp %q: %v", ErrInvalidInput, s, err)
	}
	return t, nil
}

// ValidTimestamp reports whether s has the exact fixed-width layout.
func ValidTimestamp(s string) bool {
	return timestampPattern.MatchString(s)
}

// ValidateName rejects empty and "null" names and anything that could
// climb out of a history root.
func ValidateName(name string) error {
	if name == "" || name == "null" {
		return fmt.Errorf("%w: missing name", ErrInvalidInput)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid directory name because of '..': %s", ErrInvalidInput, name)
	}
	return nil
}

// CheckParameters gates disk access keyed by a user-supplied name and
// timestamp. A null name or a malformed timestamp yields false; a
// traversal attempt yields ErrInvalidInput.
func CheckParameters(name, timestamp string) (bool, error) {
	if name == "" || name == "null" || !ValidTimestamp(timestamp) {
		return false, nil
	}
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return true, nil
}
