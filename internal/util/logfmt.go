// Package util holds small helpers for keeping secrets and provider
// payloads out of the logs.
package util

import "fmt"

// DefaultLogMaxLen caps how much of a Discord error body ends up in a log line.
const DefaultLogMaxLen = 512

// TruncateLog truncates long strings for logging.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is TruncateLog for response bodies, using DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}

// MaskToken keeps only the tail of a credential so log lines stay correlatable.
func MaskToken(t string) string {
	if len(t) < 20 {
		return "***"
	}
	return "..." + t[len(t)-8:]
}
