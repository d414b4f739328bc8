package upstream

import (
	"errors"
	"fmt"
	"net/http"

	pkgstrings "mcpgate/pkg/strings"
)

var (
	// ErrAuthRequired means the request carries no user identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNoCredential means the user has never completed the authorization flow.
	ErrNoCredential = errors.New("no upstream credential stored for user")
	// ErrRefreshFailed means the stored refresh cookies were not accepted.
	ErrRefreshFailed = errors.New("credential refresh failed")
)

// LoginError is returned by Client.Login when the upstream refuses the login.
type LoginError struct {
	reason  string
	message string
}

func (e *LoginError) Error() string { return e.reason }

// UserMessage is text that can be shown on the login page.
func (e *LoginError) UserMessage() string { return e.message }

var (
	ErrLoginRejected = &LoginError{
		reason:  "login rejected by upstream",
		message: "Invalid email or password.",
	}
	ErrTwoFactorRequired = &LoginError{
		reason:  "two-factor authentication pending",
		message: "Two-factor authentication is enabled for this account and is not supported here.",
	}
	ErrNoToken = &LoginError{
		reason:  "login response carried no token",
		message: "Login succeeded but the server returned no token. Please try again.",
	}
)

// StatusError is a non-2xx upstream response surfaced by the JSON helpers.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := pkgstrings.SingleLine(e.Body, pkgstrings.ExcerptMaxLen)
	if body == "" {
		return fmt.Sprintf("upstream returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, body)
}

// IsAuthError reports whether err means the user has to authorize again.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrNoCredential) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}
