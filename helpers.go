// Copyright (c) 2025 Neomantra Corp

package rangebar

import (
	"os"
	"time"
)

// TimestampUsToTime converts a microseconds-since-epoch timestamp (the
// engine's native time unit, §3.2) to a time.Time.
func TimestampUsToTime(timestampUs int64) time.Time {
	return time.UnixMicro(timestampUs).UTC()
}

// TimeToTimestampUs converts a time.Time to microseconds since epoch.
func TimeToTimestampUs(t time.Time) int64 {
	return t.UnixMicro()
}

// TimeToYMD returns the YYYYMMDD for the time.Time in UTC. A zero time
// returns 0.
func TimeToYMD(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	t = t.UTC()
	return uint32(10000*t.Year() + 100*int(t.Month()) + t.Day())
}

// renameFile atomically replaces `dst` with `src`, used by
// WriteCheckpointFile to avoid a reader ever observing a partial write.
func renameFile(src, dst string) error {
	return os.Rename(src, dst)
}
