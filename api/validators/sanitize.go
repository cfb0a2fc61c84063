package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates the value
// to maxLen bytes. Free-text inputs pass through here before they
// reach filters or storage.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
