package identity

import (
	"errors"
	"strings"
)

var (
	// ErrBlank means the candidate is empty or whitespace.
	ErrBlank = errors.New("user id is blank")
	// ErrPlaceholder means the candidate is an unresolved template variable.
	ErrPlaceholder = errors.New("user id is an unresolved placeholder")
)

// IsPlaceholder reports whether s looks like "{{NAME}}".
func IsPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}")
}

// Validate checks a candidate user id. Valid ids are compared byte for byte
// and are never normalized.
func Validate(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrBlank
	}
	if IsPlaceholder(userID) {
		return ErrPlaceholder
	}
	return nil
}
