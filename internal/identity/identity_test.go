package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notFoundErr struct{}

func (notFoundErr) Error() string  { return "not found" }
func (notFoundErr) NotFound() bool { return true }

type fakeTokens struct {
	tokens map[string]string
	err    error
}

func (f fakeTokens) GetUserByAccessToken(_ context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	return "", notFoundErr{}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"user_a", nil},
		{"65f1c0ffee", nil},
		{"", ErrBlank},
		{"   ", ErrBlank},
		{"{{LIBRECHAT_USER_ID}}", ErrPlaceholder},
		{"{{user}}", ErrPlaceholder},
		{"{{half", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.in), tt.want)
			if tt.want == nil {
				assert.NoError(t, Validate(tt.in))
			}
		})
	}
}

func TestContext(t *testing.T) {
	_, err := CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	ctx := WithUserID(context.Background(), "user_a")
	userID, err := CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user_a", userID)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestResolver_Order(t *testing.T) {
	res := DefaultResolver(fakeTokens{tokens: map[string]string{"tok": "from_bearer"}}, "X-User-ID")

	req := httptest.NewRequest(http.MethodGet, "/mcp?userId=from_query", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-User-ID", "from_header")

	userID, source, ok := res.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "from_bearer", userID)
	assert.Equal(t, "bearer", source)

	req.Header.Set("Authorization", "Bearer unknown")
	userID, source, ok = res.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "from_header", userID)
	assert.Equal(t, "header", source)

	req.Header.Del("X-User-ID")
	userID, source, ok = res.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "from_query", userID)
	assert.Equal(t, "query", source)
}

func TestResolver_QueryFallsBackToSnakeCase(t *testing.T) {
	res := DefaultResolver(nil, "X-User-ID")
	req := httptest.NewRequest(http.MethodGet, "/mcp?user_id=snake", nil)

	userID, _, ok := res.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "snake", userID)
}

func TestResolver_StorageErrorTreatedAsAbsent(t *testing.T) {
	res := DefaultResolver(fakeTokens{err: errors.New("database is locked")}, "X-User-ID")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-User-ID", "user_a")

	userID, source, ok := res.Resolve(req)
	require.True(t, ok)
	assert.Equal(t, "user_a", userID)
	assert.Equal(t, "header", source)
}

func TestResolver_PlaceholdersNeverResolve(t *testing.T) {
	const placeholder = "{{LIBRECHAT_USER_ID}}"
	res := DefaultResolver(fakeTokens{tokens: map[string]string{"tok": placeholder}}, "X-User-ID")

	tests := []struct {
		name  string
		build func() *http.Request
	}{
		{"bearer", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/mcp", nil)
			r.Header.Set("Authorization", "Bearer tok")
			return r
		}},
		{"header", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/mcp", nil)
			r.Header.Set("X-User-ID", placeholder)
			return r
		}},
		{"query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/mcp?userId=%7B%7BLIBRECHAT_USER_ID%7D%7D", nil)
		}},
		{"body", func() *http.Request {
			body := `{"jsonrpc":"2.0","method":"tools/call","params":{"userId":"` + placeholder + `"}}`
			r := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
			r.Header.Set("Content-Type", "application/json")
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := res.Resolve(tt.build())
			assert.False(t, ok)
		})
	}
}

func TestBodyExtractor(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_files","arguments":{"user_id":"user_b"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, "user_b", BodyExtractor{}.Extract(req))

	// body is restored for the downstream handler
	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))
}

func TestBodyExtractor_Oversized(t *testing.T) {
	body := `{"params":{"userId":"user_a"},"pad":"` + strings.Repeat("x", MaxBodyInspect) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))

	assert.Equal(t, "", BodyExtractor{}.Extract(req))

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, len(body), len(rest))
}

func TestBodyExtractor_SkipsNonJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("userId=user_a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, "", BodyExtractor{}.Extract(req))
}

func TestMiddleware_RejectsUnauthenticatedMCP(t *testing.T) {
	res := DefaultResolver(fakeTokens{}, "X-User-ID")
	called := false
	h := Middleware(res, MiddlewareOptions{
		ProtectedPath: "/mcp",
		Challenge:     `Bearer resource_metadata="https://gw.example.com/.well-known/oauth-authorization-server"`,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	for _, path := range []string{"/mcp", "/mcp/", "/tenant/mcp"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "resource_metadata=")
		assert.JSONEq(t, `{"error":"oauth_required","error_description":"OAuth authentication required","oauth_required":true}`, rec.Body.String())
	}
	assert.False(t, called)
}

func TestMiddleware_UnprotectedPathPassesWithoutIdentity(t *testing.T) {
	res := DefaultResolver(fakeTokens{}, "X-User-ID")
	var gotErr error
	h := Middleware(res, MiddlewareOptions{ProtectedPath: "/mcp"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotErr = CurrentUser(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, gotErr, ErrNoIdentity)
}

func TestMiddleware_DefaultChallenge(t *testing.T) {
	h := Middleware(DefaultResolver(nil, "X-User-ID"), MiddlewareOptions{ProtectedPath: "/mcp"})(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

// Interleaved requests for different users must each see only their own identity.
func TestMiddleware_ConcurrentIsolation(t *testing.T) {
	res := DefaultResolver(fakeTokens{}, "X-User-ID")
	h := Middleware(res, MiddlewareOptions{ProtectedPath: "/mcp"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		before, _ := CurrentUser(r.Context())
		time.Sleep(time.Millisecond)
		after, _ := CurrentUser(r.Context())
		fmt.Fprintf(w, "%s|%s", before, after)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, user := range []string{"user_a", "user_b"} {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
				req.Header.Set("X-User-ID", user)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, user+"|"+user, rec.Body.String())
			}(user)
		}
	}
	wg.Wait()
}

type recordingConfigurer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *recordingConfigurer) AutoConfigure(_ context.Context, userID, repoURL, token, branch string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, strings.Join([]string{userID, repoURL, token, branch}, " "))
	return true, c.err
}

func (c *recordingConfigurer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func syncRequest(user string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-User-ID", user)
	req.Header.Set(SyncRepoHeader, "https://git.example.com/notes.git")
	req.Header.Set(SyncTokenHeader, "ghp_secret")
	return req
}

func TestSyncTrigger_CooldownPerUser(t *testing.T) {
	conf := &recordingConfigurer{}
	trigger := NewSyncTrigger(conf, time.Hour)
	h := Middleware(DefaultResolver(nil, "X-User-ID"), MiddlewareOptions{ProtectedPath: "/mcp", Sync: trigger})(http.NotFoundHandler())

	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), syncRequest("user_a"))
	}
	h.ServeHTTP(httptest.NewRecorder(), syncRequest("user_b"))
	trigger.Wait()

	require.Equal(t, 2, conf.count())
	assert.Contains(t, conf.calls, "user_a https://git.example.com/notes.git ghp_secret main")
}

func TestSyncTrigger_FailureDoesNotAffectRequest(t *testing.T) {
	conf := &recordingConfigurer{err: errors.New("disk full")}
	trigger := NewSyncTrigger(conf, 0)
	h := Middleware(DefaultResolver(nil, "X-User-ID"), MiddlewareOptions{ProtectedPath: "/mcp", Sync: trigger})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, syncRequest("user_a"))
	trigger.Wait()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, conf.count())
}

func TestSyncTrigger_RequiresBothHeaders(t *testing.T) {
	conf := &recordingConfigurer{}
	trigger := NewSyncTrigger(conf, 0)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(SyncRepoHeader, "https://git.example.com/notes.git")
	trigger.Observe(req, "user_a")
	trigger.Wait()

	assert.Equal(t, 0, conf.count())
}

func TestSyncTrigger_SweepsIdleLimiters(t *testing.T) {
	trigger := NewSyncTrigger(&recordingConfigurer{}, 20*time.Millisecond)

	assert.True(t, trigger.allow("user_a"))
	assert.False(t, trigger.allow("user_a"))
	time.Sleep(50 * time.Millisecond)

	assert.True(t, trigger.allow("user_b"))
	assert.Equal(t, 1, trigger.size(), "idle user_a limiter should have been dropped")
	assert.True(t, trigger.allow("user_a"))
}
