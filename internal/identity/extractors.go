package identity

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"mcpgate/pkg/logging"
)

// MaxBodyInspect is the largest request body the body extractor will inspect.
const MaxBodyInspect = 1 << 20

// Extractor produces a candidate user id from a request. An empty result means
// the extractor found nothing.
type Extractor interface {
	Name() string
	Extract(r *http.Request) string
}

// TokenLookup maps a gateway access token to its user.
type TokenLookup interface {
	GetUserByAccessToken(ctx context.Context, token string) (string, error)
}

// BearerExtractor resolves an "Authorization: Bearer" access token.
type BearerExtractor struct {
	Tokens TokenLookup
}

func (BearerExtractor) Name() string { return "bearer" }

func (e BearerExtractor) Extract(r *http.Request) string {
	token, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok || e.Tokens == nil {
		return ""
	}
	userID, err := e.Tokens.GetUserByAccessToken(r.Context(), token)
	if err != nil {
		// unknown tokens are normal; anything else is a storage problem
		if !isNotFound(err) {
			logging.Error("Identity", err, "Access token lookup failed")
		}
		return ""
	}
	return userID
}

// BearerToken parses an Authorization header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// HeaderExtractor reads a trusted header set by the fronting chat application.
type HeaderExtractor struct {
	Header string
}

func (HeaderExtractor) Name() string { return "header" }

func (e HeaderExtractor) Extract(r *http.Request) string {
	return r.Header.Get(e.Header)
}

// QueryExtractor reads userId, then user_id, from the query string.
type QueryExtractor struct{}

func (QueryExtractor) Name() string { return "query" }

func (QueryExtractor) Extract(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get("userId"); v != "" {
		return v
	}
	return q.Get("user_id")
}

// bodyPaths are tried in order; the arguments variants cover MCP tools/call.
var bodyPaths = []string{
	"params.userId",
	"params.user_id",
	"params.user",
	"params.arguments.userId",
	"params.arguments.user_id",
	"params.arguments.user",
}

// BodyExtractor inspects a JSON request body. The body is restored so that
// downstream handlers read it unchanged.
type BodyExtractor struct{}

func (BodyExtractor) Name() string { return "body" }

func (BodyExtractor) Extract(r *http.Request) string {
	if r.Body == nil || r.Method != http.MethodPost {
		return ""
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyInspect+1))
	// put back what was read, followed by anything left unread
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(data), r.Body), Closer: r.Body}
	if err != nil {
		logging.Debug("Identity", "Failed to read request body: %v", err)
		return ""
	}
	if len(data) > MaxBodyInspect || !gjson.ValidBytes(data) {
		return ""
	}

	for _, path := range bodyPaths {
		res := gjson.GetBytes(data, path)
		switch res.Type {
		case gjson.String, gjson.Number:
			if v := res.String(); v != "" && Validate(v) == nil {
				return v
			}
		}
	}
	return ""
}

type readCloser struct {
	io.Reader
	io.Closer
}

// notFounder is implemented by lookup errors that mean "no such token".
type notFounder interface {
	NotFound() bool
}

func isNotFound(err error) bool {
	var nf notFounder
	return errors.As(err, &nf) && nf.NotFound()
}
