package util

import (
	"time"

	"github.com/golang/protobuf/ptypes/timestamp"
)

// ValidStartBackdate is subtracted from the local clock when stamping a
// transaction, so that a node whose clock lags slightly still accepts it.
const ValidStartBackdate = 10 * time.Second

// TimestampToTime converts *timestamp.Timestamp to time.Time. A nil or zero
// timestamp yields the zero time.
func TimestampToTime(t *timestamp.Timestamp) time.Time {
	if t == nil || (t.Seconds == 0 && t.Nanos == 0) {
		return time.Time{}
	}
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// TimeToTimestamp converts time.Time to *timestamp.Timestamp.
func TimeToTimestamp(t time.Time) *timestamp.Timestamp {
	if t.IsZero() {
		return &timestamp.Timestamp{}
	}
	return &timestamp.Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ValidStart returns the valid-start timestamp for a transaction created at now.
func ValidStart(now time.Time) *timestamp.Timestamp {
	return TimeToTimestamp(now.Add(-ValidStartBackdate))
}
