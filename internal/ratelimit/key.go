package ratelimit

import "fmt"

// KeyForDecision builds the generation limiter key for a user.
func KeyForDecision(userID uint64, decision Decision) string {
	if userID == 0 || decision.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf("gen:u:%d", userID)
}

// windowIndex returns the index of the fixed window containing unix second sec.
func windowIndex(sec int64, window int64) int64 {
	if window <= 0 {
		window = 1
	}
	return sec / window
}
