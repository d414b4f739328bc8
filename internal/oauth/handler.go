package oauth

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcpgate/internal/identity"
	"mcpgate/internal/metrics"
	"mcpgate/pkg/logging"
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	maxTokenRequestBody        = 64 << 10
)

// HandlerConfig configures the authorization-code flow.
type HandlerConfig struct {
	// Mode is ModeLogin or ModeApprove.
	Mode string

	// AccessTokenTTL is advertised as expires_in.
	AccessTokenTTL time.Duration
	Scope          string

	LoginRateLimit int
	LoginBurst     int

	// Issuer is the public base URL used in the discovery documents. When
	// empty it is derived from the request.
	Issuer string

	// ResourcePath is the protected MCP endpoint named in the protected
	// resource metadata. Defaults to "/mcp".
	ResourcePath string
}

// Handler serves /authorize, /token and the discovery document.
type Handler struct {
	cfg     HandlerConfig
	codes   *CodeStore
	store   CredentialStore
	auth    Authenticator
	limiter *LoginRateLimiter
}

// NewHandler creates the flow handler. auth may be nil in ModeApprove.
func NewHandler(cfg HandlerConfig, codes *CodeStore, store CredentialStore, auth Authenticator) *Handler {
	if cfg.Mode == "" {
		cfg.Mode = ModeLogin
	}
	if cfg.ResourcePath == "" {
		cfg.ResourcePath = "/mcp"
	}
	return &Handler{
		cfg:     cfg,
		codes:   codes,
		store:   store,
		auth:    auth,
		limiter: NewLoginRateLimiter(cfg.LoginRateLimit, cfg.LoginBurst),
	}
}

// claimedUser extracts the user id carried in the state parameter: everything
// before the first ':' or the whole value when there is none.
func claimedUser(state string) string {
	userID, _, _ := strings.Cut(state, ":")
	return userID
}

// ServeAuthorize renders the authorization page and, on submission, issues a
// code and redirects back to the client.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writePlainError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writePlainError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	form := authorizeForm{
		RedirectURI: r.FormValue("redirect_uri"),
		State:       r.FormValue("state"),
		ClientID:    r.FormValue("client_id"),
	}
	if form.RedirectURI == "" || form.State == "" {
		writePlainError(w, http.StatusBadRequest, "Missing redirect_uri or state")
		return
	}
	if _, err := url.Parse(form.RedirectURI); err != nil {
		writePlainError(w, http.StatusBadRequest, "Invalid redirect_uri")
		return
	}

	if challenge := r.FormValue("code_challenge"); challenge != "" {
		method, err := NormalizeChallengeMethod(r.FormValue("code_challenge_method"))
		if err != nil {
			writePlainError(w, http.StatusBadRequest, "Unsupported code_challenge_method")
			return
		}
		form.CodeChallenge = challenge
		form.CodeChallengeMethod = method
	}

	form.UserID = claimedUser(form.State)
	if err := identity.Validate(form.UserID); err != nil {
		logging.Warn("OAuth", "Rejecting authorize request: %v", err)
		writePlainError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}

	if r.Method == http.MethodGet {
		h.renderForm(w, http.StatusOK, form)
		return
	}

	action := r.PostFormValue("action")
	if h.cfg.Mode == ModeApprove {
		if action != "approve" {
			logging.Audit(logging.AuditEvent{Action: "authorize", Outcome: "denied", UserID: form.UserID})
			writePlainError(w, http.StatusBadRequest, "Access Denied")
			return
		}
		h.issueAndRedirect(w, r, form)
		return
	}

	if action != "login" {
		h.renderForm(w, http.StatusOK, form)
		return
	}
	h.handleLogin(w, r, form)
}

func (h *Handler) renderForm(w http.ResponseWriter, status int, form authorizeForm) {
	if h.cfg.Mode == ModeApprove {
		renderApprovePage(w, form)
		return
	}
	renderLoginPage(w, status, form)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, form authorizeForm) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form.Email = email

	if email == "" || password == "" {
		form.Error = "Email and password are required"
		renderLoginPage(w, http.StatusOK, form)
		return
	}

	limiterKey := LoginKey(form.UserID, email)
	if !h.limiter.Allow(limiterKey) {
		form.Error = "Too many login attempts. Please wait and try again."
		renderLoginPage(w, http.StatusTooManyRequests, form)
		return
	}

	if h.auth == nil {
		renderErrorPage(w, http.StatusInternalServerError, "Login is not available.")
		return
	}

	result, err := h.auth.Authenticate(r.Context(), email, password)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "login", Outcome: "failure", UserID: form.UserID, Detail: err.Error()})
		form.Error = loginErrorMessage(err)
		renderLoginPage(w, http.StatusOK, form)
		return
	}

	if err := h.store.SaveCredential(r.Context(), form.UserID, result.BearerToken, result.Cookies); err != nil {
		logging.Error("OAuth", err, "Failed to persist credential for user %s", logging.TruncateID(form.UserID))
		renderErrorPage(w, http.StatusInternalServerError, "Could not save your credentials. Please try again.")
		return
	}
	h.limiter.Reset(limiterKey)
	logging.Audit(logging.AuditEvent{Action: "login", Outcome: "success", UserID: form.UserID})

	h.issueAndRedirect(w, r, form)
}

func loginErrorMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return "Login failed. Please try again later."
}

func (h *Handler) issueAndRedirect(w http.ResponseWriter, r *http.Request, form authorizeForm) {
	code, err := h.codes.IssueWithChallenge(form.UserID, form.CodeChallenge, form.CodeChallengeMethod)
	if err != nil {
		logging.Error("OAuth", err, "Failed to generate authorization code")
		renderErrorPage(w, http.StatusInternalServerError, "Could not complete authorization. Please try again.")
		return
	}

	logging.Audit(logging.AuditEvent{Action: "authorize", Outcome: "code_issued", UserID: form.UserID, Detail: form.ClientID})
	http.Redirect(w, r, redirectWithCode(form.RedirectURI, code, form.State), http.StatusFound)
}

// queryValueEscaper escapes only the characters that would end or corrupt a
// query value. Everything else, including ':', is passed through so the
// client gets its state back byte for byte.
var queryValueEscaper = strings.NewReplacer(
	"%", "%25",
	"&", "%26",
	"#", "%23",
	"+", "%2B",
	" ", "%20",
)

// redirectWithCode appends code and state to redirectURI, keeping any query it already has.
func redirectWithCode(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + "code=" + queryValueEscaper.Replace(code) + "&state=" + queryValueEscaper.Replace(state)
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
}

// ServeToken exchanges an authorization code for a gateway access token.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	req, err := parseTokenRequest(w, r)
	if err != nil {
		logging.Debug("OAuth", "Malformed token request: %v", err)
		metrics.TokenExchange("invalid_request")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
		return
	}

	if req.GrantType != "" && req.GrantType != grantTypeAuthorizationCode {
		metrics.TokenExchange("unsupported_grant_type")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unsupported_grant_type"})
		return
	}

	userID, err := h.codes.RedeemWithVerifier(req.Code, req.CodeVerifier)
	if err != nil {
		metrics.TokenExchange("invalid_grant")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "Invalid or expired authorization code",
		})
		return
	}

	accessToken, err := GenerateAccessToken()
	if err != nil {
		logging.Error("OAuth", err, "Failed to generate access token")
		metrics.TokenExchange("server_error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "server_error"})
		return
	}
	if err := h.store.SaveAccessToken(r.Context(), accessToken, userID); err != nil {
		logging.Error("OAuth", err, "Failed to persist access token for user %s", logging.TruncateID(userID))
		metrics.TokenExchange("server_error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "server_error"})
		return
	}

	metrics.TokenExchange("success")
	logging.Audit(logging.AuditEvent{Action: "token_exchange", Outcome: "success", UserID: userID})

	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.cfg.AccessTokenTTL / time.Second),
		Scope:       h.cfg.Scope,
	})
}

func parseTokenRequest(w http.ResponseWriter, r *http.Request) (tokenRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBody)

	if isJSON(r.Header.Get("Content-Type")) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return tokenRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return tokenRequest{}, err
	}
	return tokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		CodeVerifier: r.PostFormValue("code_verifier"),
	}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json"
}

// ServeMetadata serves the authorization server discovery document.
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	issuer := h.issuer(r)
	meta := AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/authorize",
		TokenEndpoint:                     issuer + "/token",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{grantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{"none"},
		CodeChallengeMethodsSupported:     []string{PKCEMethodS256, PKCEMethodPlain},
	}
	if h.cfg.Scope != "" {
		meta.ScopesSupported = []string{h.cfg.Scope}
	}
	writeJSON(w, http.StatusOK, meta)
}

// ServeProtectedResourceMetadata serves the document the 401 challenge points
// MCP clients at. It names this gateway as the authorization server.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	issuer := h.issuer(r)
	meta := ProtectedResourceMetadata{
		Resource:               issuer + h.cfg.ResourcePath,
		AuthorizationServers:   []string{issuer},
		BearerMethodsSupported: []string{"header"},
	}
	if h.cfg.Scope != "" {
		meta.ScopesSupported = []string{h.cfg.Scope}
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) issuer(r *http.Request) string {
	if issuer := strings.TrimSuffix(h.cfg.Issuer, "/"); issuer != "" {
		return issuer
	}
	return requestBaseURL(r)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("OAuth", err, "Failed to encode response")
	}
}
