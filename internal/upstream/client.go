package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"mcpgate/internal/oauth"
	"mcpgate/pkg/logging"
)

// Session is the credential material returned by login and refresh.
type Session struct {
	BearerToken oauth.RedactedToken
	Cookies     map[string]string
}

type authResponse struct {
	Token        string `json:"token"`
	TwoFAPending bool   `json:"twoFAPending"`
}

// Client performs credential operations against the upstream API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for baseURL (e.g. http://api:3080/api).
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login verifies email and password and returns the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	loginURL := c.baseURL + "/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setDefaultHeaders(req)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := *c.httpClient
	client.Jar = jar

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Debug("Upstream", "Login rejected with status %d", resp.StatusCode)
		return nil, ErrLoginRejected
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if body.TwoFAPending {
		return nil, ErrTwoFactorRequired
	}
	if body.Token == "" {
		return nil, ErrNoToken
	}

	cookies := map[string]string{}
	if u, err := url.Parse(loginURL); err == nil {
		for _, ck := range jar.Cookies(u) {
			cookies[ck.Name] = ck.Value
		}
	}
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}

	return &Session{BearerToken: oauth.NewRedactedToken(body.Token), Cookies: cookies}, nil
}

// Authenticate adapts Login to the authorization flow.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*oauth.LoginResult, error) {
	session, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &oauth.LoginResult{BearerToken: session.BearerToken, Cookies: session.Cookies}, nil
}

// Refresh replays the stored cookies to obtain a new bearer credential.
// Cookies set by the response are merged over the previous ones.
func (c *Client) Refresh(ctx context.Context, cookies map[string]string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", nil)
	if err != nil {
		return nil, err
	}
	c.setDefaultHeaders(req)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRefreshFailed, err)
	}
	if body.Token == "" {
		return nil, fmt.Errorf("%w: no token in response", ErrRefreshFailed)
	}

	merged := make(map[string]string, len(cookies))
	for name, value := range cookies {
		merged[name] = value
	}
	for _, ck := range resp.Cookies() {
		merged[ck.Name] = ck.Value
	}

	return &Session{BearerToken: oauth.NewRedactedToken(body.Token), Cookies: merged}, nil
}

func (c *Client) setDefaultHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
