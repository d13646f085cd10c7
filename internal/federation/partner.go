package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/claimgraph/internal/graph"
)

// SearchPath is the partner endpoint that accepts federated statements.
const SearchPath = "/query/search"

// RequestIDHeader carries a per-hop request id.
const RequestIDHeader = "X-Request-ID"

// Partner forwards a statement to another server.
type Partner interface {
	Search(ctx context.Context, baseURL string, st Statement) (graph.Results, error)
}

// HTTPPartner talks to partners over HTTP.
type HTTPPartner struct {
	client  *http.Client
	limiter *Limiter
}

// NewHTTPPartner creates a partner client. timeout bounds each request.
func NewHTTPPartner(timeout time.Duration, limiter *Limiter) *HTTPPartner {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	return &HTTPPartner{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Search POSTs the statement to baseURL + SearchPath.
func (p *HTTPPartner) Search(ctx context.Context, baseURL string, st Statement) (graph.Results, error) {
	if err := p.limiter.Wait(ctx, baseURL); err != nil {
		return graph.Results{}, fmt.Errorf("rate limit %s: %w", baseURL, err)
	}

	body, err := json.Marshal(st)
	if err != nil {
		return graph.Results{}, fmt.Errorf("encode statement: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + SearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return graph.Results{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.Must(uuid.NewV7()).String())

	resp, err := p.client.Do(req)
	if err != nil {
		return graph.Results{}, fmt.Errorf("search %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return graph.Results{}, fmt.Errorf("search %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var res graph.Results
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return graph.Results{}, fmt.Errorf("decode response from %s: %w", url, err)
	}
	return res, nil
}
