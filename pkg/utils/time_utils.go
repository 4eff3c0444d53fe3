package utils

import (
	"fmt"
	"strconv"
	"time"
)

// TimeToMillis converts time.Time to milliseconds since epoch
func TimeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ParseTimestamp reads a query timestamp given either as epoch milliseconds
// or as an RFC 3339 string, and returns epoch milliseconds.
func ParseTimestamp(value string) (int64, error) {
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		if millis < 0 {
			return 0, fmt.Errorf("timestamp must not be negative: %d", millis)
		}
		return millis, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("timestamp must be epoch milliseconds or RFC 3339: %q", value)
	}
	return TimeToMillis(t), nil
}
