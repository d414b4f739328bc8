package files

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mcpgate/pkg/logging"
	pkgstrings "mcpgate/pkg/strings"
)

const ragMaxTries = 3

// EmbedRequest is the body of POST /embed.
type EmbedRequest struct {
	FileID       string                 `json:"file_id"`
	Content      string                 `json:"content"`
	Metadata     map[string]interface{} `json:"metadata"`
	ChunkSize    int                    `json:"chunk_size"`
	ChunkOverlap int                    `json:"chunk_overlap"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters"`
	TopK    int               `json:"top_k"`
}

// QueryResult is one search hit.
type QueryResult struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}

// RAGClient talks to the vector search API.
type RAGClient struct {
	baseURL      string
	httpClient   *http.Client
	chunkSize    int
	chunkOverlap int
}

// NewRAGClient creates a client for baseURL.
func NewRAGClient(baseURL string, timeout time.Duration, chunkSize, chunkOverlap int) *RAGClient {
	return &RAGClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Embed indexes content under fileID.
func (c *RAGClient) Embed(ctx context.Context, fileID, content string, metadata map[string]interface{}) error {
	req := EmbedRequest{
		FileID:       fileID,
		Content:      content,
		Metadata:     metadata,
		ChunkSize:    c.chunkSize,
		ChunkOverlap: c.chunkOverlap,
	}
	_, err := c.do(ctx, http.MethodPost, "/embed", req)
	return err
}

// DeleteEmbedding removes every chunk indexed under fileID.
func (c *RAGClient) DeleteEmbedding(ctx context.Context, fileID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/embed/"+url.PathEscape(fileID), nil)
	return err
}

// Query runs a semantic search.
func (c *RAGClient) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	data, err := c.do(ctx, http.MethodPost, "/query", req)
	if err != nil {
		return nil, err
	}
	var out QueryResponse
	if len(bytes.TrimSpace(data)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode RAG query response: %w", err)
	}
	return &out, nil
}

// do sends one request, retrying transport failures and 5xx responses with
// exponential backoff. 4xx responses fail immediately.
func (c *RAGClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = data
	}

	operation := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("RAG API %s %s returned %d", method, path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("RAG API %s %s returned %d: %s",
				method, path, resp.StatusCode, pkgstrings.SingleLine(string(data), pkgstrings.ExcerptMaxLen)))
		}
		return data, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(ragMaxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			logging.Debug("Files", "Retrying RAG API %s %s after %v: %v", method, path, d, err)
		}),
	)
}
