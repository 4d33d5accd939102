// Package content handles user-supplied text: sanitization, markdown
// rendering, and identity-name validation.
package content

import (
	"bytes"
	"errors"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy    = bluemonday.UGCPolicy()
	nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	markdown  = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is applied to message bodies before they enter the log.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Render converts a message body from markdown to sanitized HTML for the
// client push. On render failure the sanitized plain text is returned.
func Render(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return Sanitize(input)
	}
	return policy.Sanitize(buf.String())
}

const maxNameLen = 32

// ValidateName checks if the identity name contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty. The charset keeps
// names free of the separators used in private channel keys.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > maxNameLen {
		return errors.New("name too long")
	}
	if !nameRegex.MatchString(name) {
		return errors.New("name contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
