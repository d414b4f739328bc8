package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"mcpgate/internal/credstore"
	"mcpgate/internal/identity"
	"mcpgate/internal/metrics"
	"mcpgate/internal/oauth"
	"mcpgate/pkg/logging"
)

// CredentialStore is the persistence the executor reads and refreshes.
type CredentialStore interface {
	GetCredential(ctx context.Context, userID string) (*credstore.Credential, error)
	SaveCredential(ctx context.Context, userID string, bearer oauth.RedactedToken, cookies map[string]string) error
}

// Refresher exchanges stored cookies for a new session.
type Refresher interface {
	Refresh(ctx context.Context, cookies map[string]string) (*Session, error)
}

// Executor performs authenticated upstream calls for the user bound to the
// request context.
type Executor struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	store      CredentialStore
	refresher  Refresher

	refreshGroup singleflight.Group
}

// NewExecutor creates an executor. Every call is bounded by timeout.
func NewExecutor(baseURL string, timeout time.Duration, userAgent string, store CredentialStore, refresher Refresher) *Executor {
	return &Executor{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		store:      store,
		refresher:  refresher,
	}
}

// Do sends method target with body on behalf of the current user. target is
// either an absolute URL or a path relative to the upstream base URL.
//
// On a 401 the credential is refreshed once and the request replayed once. If
// the refresh fails the original 401 response is returned. Non-2xx responses
// are not errors; the caller owns the response body.
func (e *Executor) Do(ctx context.Context, method, target string, body []byte, headers http.Header) (*http.Response, error) {
	userID, err := identity.CurrentUser(ctx)
	if err != nil {
		return nil, ErrAuthRequired
	}

	cred, err := e.store.GetCredential(ctx, userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	endpoint := e.resolve(target)
	resp, err := e.send(ctx, method, endpoint, body, headers, cred.BearerToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	logging.Debug("Upstream", "Got 401 for %s %s (%s), refreshing credential for user %s",
		method, target, challengeReason(resp.Header.Get("WWW-Authenticate")), logging.TruncateID(userID))

	fresh, err := e.refresh(ctx, userID, cred)
	if err != nil {
		logging.Warn("Upstream", "Credential refresh failed for user %s: %v", logging.TruncateID(userID), err)
		return resp, nil
	}

	drain(resp)
	return e.send(ctx, method, endpoint, body, headers, fresh)
}

// refresh obtains a new bearer credential for userID. Concurrent callers for
// the same user share one upstream refresh, which is not cancelled when the
// caller that started it goes away.
func (e *Executor) refresh(ctx context.Context, userID string, used *credstore.Credential) (oauth.RedactedToken, error) {
	v, err, shared := e.refreshGroup.Do(userID, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		// another request may have refreshed already
		current, err := e.store.GetCredential(ctx, userID)
		if err == nil && current.BearerToken.Value() != used.BearerToken.Value() {
			return current.BearerToken, nil
		}

		cookies := used.Cookies
		if err == nil {
			cookies = current.Cookies
		}
		session, err := e.refresher.Refresh(ctx, cookies)
		if err != nil {
			metrics.UpstreamRefresh("failure")
			return nil, err
		}
		if err := e.store.SaveCredential(ctx, userID, session.BearerToken, session.Cookies); err != nil {
			metrics.UpstreamRefresh("failure")
			return nil, fmt.Errorf("persist refreshed credential: %w", err)
		}
		metrics.UpstreamRefresh("success")
		logging.Info("Upstream", "Refreshed credential for user %s", logging.TruncateID(userID))
		return session.BearerToken, nil
	})
	if err != nil {
		return oauth.RedactedToken{}, err
	}
	if shared {
		logging.Debug("Upstream", "Shared credential refresh for user %s", logging.TruncateID(userID))
	}
	return v.(oauth.RedactedToken), nil
}

func (e *Executor) send(ctx context.Context, method, endpoint string, body []byte, headers http.Header, bearer oauth.RedactedToken) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}

	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	(&oauth2.Token{AccessToken: bearer.Value(), TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, req.URL.Path, err)
	}
	return resp, nil
}

// challengeReason summarizes an upstream WWW-Authenticate header for logs.
func challengeReason(header string) string {
	params := oauth.ParseWWWAuthenticate(header)
	switch {
	case params == nil:
		return "no challenge"
	case params.ErrorDescription != "":
		return params.Error + ": " + params.ErrorDescription
	case params.Error != "":
		return params.Error
	default:
		return params.Scheme
	}
}

func (e *Executor) resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return e.baseURL + target
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// DoJSON sends payload (when non-nil) as JSON and decodes a 2xx response into
// out (when non-nil). Non-2xx responses become *StatusError.
func (e *Executor) DoJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = data
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := e.Do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetJSON is DoJSON for GET requests.
func (e *Executor) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return e.DoJSON(ctx, http.MethodGet, path, query, nil, out)
}

// SendJSON is DoJSON without query parameters.
func (e *Executor) SendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	return e.DoJSON(ctx, method, path, nil, payload, out)
}
