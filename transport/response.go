package transport

import (
	"net/http"
	"strings"
)

const crashIDKey = "CrashID="

// ParseCrashID extracts the crash identifier from a collector response.
// Only a 200 response carrying a non-empty "CrashID=<token>" line yields
// an identifier.
func ParseCrashID(statusCode int, body string) (string, bool) {
	if statusCode != http.StatusOK {
		return "", false
	}
	for line := range strings.Lines(body) {
		token, ok := strings.CutPrefix(strings.TrimSpace(line), crashIDKey)
		if !ok {
			continue
		}
		if token = strings.TrimSpace(token); token != "" {
			return token, true
		}
	}
	return "", false
}
