package oauth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/oauth2"
)

const (
	// PKCEMethodS256 is the SHA-256 code challenge method.
	PKCEMethodS256 = "S256"
	// PKCEMethodPlain sends the verifier itself as the challenge.
	PKCEMethodPlain = "plain"
)

// ErrUnsupportedChallengeMethod is returned for code_challenge_method values
// other than S256 and plain.
var ErrUnsupportedChallengeMethod = errors.New("unsupported code_challenge_method")

// NormalizeChallengeMethod validates method for a non-empty challenge. An
// empty method means plain (RFC 7636 section 4.3).
func NormalizeChallengeMethod(method string) (string, error) {
	switch method {
	case "", PKCEMethodPlain:
		return PKCEMethodPlain, nil
	case PKCEMethodS256:
		return PKCEMethodS256, nil
	default:
		return "", ErrUnsupportedChallengeMethod
	}
}

// VerifyPKCE reports whether verifier satisfies challenge under method.
func VerifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	expected := verifier
	if method == PKCEMethodS256 {
		expected = oauth2.S256ChallengeFromVerifier(verifier)
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
