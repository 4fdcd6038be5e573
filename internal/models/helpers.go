// Package models defines the data structures shared by the kbchat stores and controllers.
package models

import "strings"

// Preview shortens content to maxLen runes for list displays and log lines.
func Preview(content string, maxLen int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
