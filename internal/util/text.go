package util

import (
	"regexp"
	"strings"
)

var reLeadingDigits = regexp.MustCompile(`^\d+\s*`)

// CleanDescription removes one leading run of digits plus the
// whitespace after it, then trims the remainder. Supplier lines prefix
// descriptions with an internal numeric code that the catalog does not
// carry.
func CleanDescription(input string) string {
	return strings.TrimSpace(reLeadingDigits.ReplaceAllString(input, ""))
}

// Fold prepares text for case-insensitive containment checks. Both the
// catalog side and the parsed side must go through the same fold.
func Fold(input string) string {
	return strings.ToLower(input)
}
