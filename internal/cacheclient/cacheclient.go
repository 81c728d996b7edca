// Package cacheclient talks to the shared spacetime cache/fetch server
// instead of origin servers directly: a GET carrying the target URL and
// the crawler's user agent, with the response body decoded from CBOR.
package cacheclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/vajraaang/spacetime-crawler/internal/cbor"
)

const (
	// DefaultConnectTimeout bounds establishing the TCP connection.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultReadTimeout bounds the full request including body read.
	DefaultReadTimeout = 60 * time.Second
	// maxAttempts is the number of tries before synthesizing a failure response.
	maxAttempts = 3
	// initialBackoff is the delay before the second attempt; it doubles
	// thereafter, capped at maxBackoff.
	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second
)

// InnerResponse is the decoded origin-server response, when the cache
// server successfully fetched one.
type InnerResponse struct {
	URL     string
	Status  int
	Content []byte
	Headers map[string]string
}

// FetchResponse is the result of one cache-server round trip.
type FetchResponse struct {
	URL      string
	Status   int
	Error    string
	Response *InnerResponse
}

// Client fetches pages through the cache server.
type Client struct {
	httpClient *http.Client
	host       string
	port       string
	userAgent  string
	log        zerolog.Logger
}

// New creates a Client targeting the cache server at host:port.
func New(host, port, userAgent string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: DefaultConnectTimeout}).DialContext,
			},
		},
		host:      host,
		port:      port,
		userAgent: userAgent,
		log:       log,
	}
}

// Fetch retrieves url through the cache server, retrying transient
// failures with exponential backoff. It never returns an error: when
// every attempt fails, the returned FetchResponse carries status 0 and
// a populated Error field instead.
func (c *Client) Fetch(ctx context.Context, rawURL string) FetchResponse {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, rawURL)
		if err == nil {
			return resp
		}
		lastErr = err
		c.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("cache fetch attempt failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxAttempts
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	msg := fmt.Sprintf("spacetime response error with url %s.", rawURL)
	if lastErr != nil {
		msg = fmt.Sprintf("spacetime response error %v with url %s.", lastErr, rawURL)
	}
	c.log.Error().Str("url", rawURL).Msg(msg)
	return FetchResponse{URL: rawURL, Status: 0, Error: msg}
}

func (c *Client) attempt(ctx context.Context, rawURL string) (FetchResponse, error) {
	reqURL := fmt.Sprintf("http://%s:%s/?%s", c.host, c.port, url.Values{
		"q": {rawURL},
		"u": {c.userAgent},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("reading response body: %w", err)
	}
	if len(raw) == 0 {
		return FetchResponse{}, fmt.Errorf("empty response body")
	}

	decoded, err := cbor.Decode(raw)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("decoding cbor response: %w", err)
	}

	return parseFetchResponse(decoded, rawURL)
}

func parseFetchResponse(decoded any, fallbackURL string) (FetchResponse, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return FetchResponse{}, fmt.Errorf("cache response was not a map")
	}

	out := FetchResponse{URL: fallbackURL}
	if u, ok := m["url"].(string); ok {
		out.URL = u
	}
	if s, ok := asInt(m["status"]); ok {
		out.Status = s
	}
	if e, ok := m["error"].(string); ok {
		out.Error = e
	}

	if inner, ok := m["response"]; ok {
		if innerMap, ok := inner.(map[string]any); ok {
			ir := &InnerResponse{}
			if u, ok := innerMap["url"].(string); ok {
				ir.URL = u
			}
			if s, ok := asInt(innerMap["status"]); ok {
				ir.Status = s
			}
			if content, ok := innerMap["content"].([]byte); ok {
				ir.Content = content
			}
			if headers, ok := innerMap["headers"].(map[string]any); ok {
				ir.Headers = make(map[string]string, len(headers))
				for k, v := range headers {
					if s, ok := v.(string); ok {
						ir.Headers[k] = s
					}
				}
			}
			out.Response = ir
		}
	}

	return out, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case uint64:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ContentType returns the inner response's Content-Type header, case-insensitively.
func (r *InnerResponse) ContentType() string {
	if r == nil {
		return ""
	}
	for k, v := range r.Headers {
		if equalFold(k, "content-type") {
			return v
		}
	}
	return ""
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
