package util

import "unicode/utf8"

// SafeTruncate returns at most maxLen bytes of s for logging prefixes of
// tokens and response bodies. The cut is moved back to a rune boundary so
// the result is always valid UTF-8 when s is. A negative maxLen yields "".
//
// Example:
//
//	SafeTruncate("v^1.1#i^1#access", 6) // Returns: "v^1.1#"
//	SafeTruncate("short", 10)           // Returns: "short"
//	SafeTruncate("héllo", 2)            // Returns: "h"
func SafeTruncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
