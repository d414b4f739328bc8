package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"mcpgate/pkg/logging"
)

// ErrInvalidGrant is returned for unknown, consumed or expired authorization codes.
var ErrInvalidGrant = errors.New("invalid or expired authorization code")

const (
	codeBytes        = 16
	accessTokenBytes = 32
	cleanupInterval  = time.Minute
)

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateCode returns a new 128-bit authorization code.
func GenerateCode() (string, error) {
	return randomToken(codeBytes)
}

// GenerateAccessToken returns a new 256-bit gateway access token.
func GenerateAccessToken() (string, error) {
	return randomToken(accessTokenBytes)
}

// CodeStore holds pending authorization codes in memory. Codes are single use
// and expire after the configured TTL.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]*AuthorizationCode

	ttl         time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewCodeStore creates a store and starts its background cleanup.
func NewCodeStore(ttl time.Duration) *CodeStore {
	cs := &CodeStore{
		codes:       make(map[string]*AuthorizationCode),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go cs.cleanupLoop()

	return cs
}

// Issue creates a code bound to userID.
func (cs *CodeStore) Issue(userID string) (string, error) {
	return cs.IssueWithChallenge(userID, "", "")
}

// IssueWithChallenge creates a code bound to userID that can only be redeemed
// with a verifier matching challenge. An empty challenge disables the check.
func (cs *CodeStore) IssueWithChallenge(userID, challenge, method string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	cs.mu.Lock()
	cs.codes[code] = &AuthorizationCode{
		Code:                code,
		UserID:              userID,
		CreatedAt:           cs.now(),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}
	cs.mu.Unlock()

	logging.Debug("OAuth", "Issued authorization code for user %s", logging.TruncateID(userID))
	return code, nil
}

// Redeem consumes code and returns the bound user. Lookup and removal happen
// in one critical section, so of any number of concurrent callers presenting
// the same code exactly one succeeds.
func (cs *CodeStore) Redeem(code string) (string, error) {
	return cs.RedeemWithVerifier(code, "")
}

// RedeemWithVerifier is Redeem for codes issued with a PKCE challenge. The
// code is consumed even when the verifier does not match.
func (cs *CodeStore) RedeemWithVerifier(code, verifier string) (string, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.codes[code]
	if !ok {
		return "", ErrInvalidGrant
	}
	delete(cs.codes, code)

	if cs.expired(entry) {
		logging.Warn("OAuth", "Authorization code expired for user %s (age %v)",
			logging.TruncateID(entry.UserID), cs.now().Sub(entry.CreatedAt))
		return "", ErrInvalidGrant
	}
	if entry.CodeChallenge != "" && !VerifyPKCE(entry.CodeChallenge, entry.CodeChallengeMethod, verifier) {
		logging.Warn("OAuth", "PKCE verification failed for user %s", logging.TruncateID(entry.UserID))
		return "", ErrInvalidGrant
	}
	return entry.UserID, nil
}

// Len returns the number of pending codes.
func (cs *CodeStore) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.codes)
}

// Stop ends the background cleanup. It is safe to call more than once.
func (cs *CodeStore) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopCleanup) })
}

func (cs *CodeStore) expired(entry *AuthorizationCode) bool {
	return cs.ttl > 0 && cs.now().Sub(entry.CreatedAt) > cs.ttl
}

func (cs *CodeStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.cleanup()
		case <-cs.stopCleanup:
			return
		}
	}
}

func (cs *CodeStore) cleanup() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	count := 0
	for code, entry := range cs.codes {
		if cs.expired(entry) {
			delete(cs.codes, code)
			count++
		}
	}

	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired authorization codes", count)
	}
}
