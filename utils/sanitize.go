package utils

import "github.com/microcosm-cc/bluemonday"

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks, keeping user-generated-content markup.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// StripTags removes all markup, for single-line fields such as titles and display names.
func StripTags(input string) string {
	return strictPolicy.Sanitize(input)
}
