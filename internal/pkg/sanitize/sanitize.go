// Package sanitize strips markup from user-supplied text before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML and trims surrounding space. Entities that bluemonday
// escapes are decoded again so plain text round-trips unchanged.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Ptr applies Text to an optional value.
func Ptr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Text(*s)
	return &v
}
