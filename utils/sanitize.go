package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Pseudos, task URLs and chat messages are rendered in a mobile webview, so
// strip markup entirely rather than allowing a UGC subset.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize removes any HTML from user-supplied text.
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Sanitize(input))
}
