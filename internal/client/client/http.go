package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/gophtodo/internal/logging"
)

var errTokenSource = errors.New("read token")

const (
	RequestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// HTTPClient is used as the base transport; http.DefaultTransport when nil.
	HTTPClient *http.Client
	Logger     logging.Logger
}

// HTTPClient talks to the tasks REST API.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	log     logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for opts.BaseURL. Requests carry the bearer
// token from tokens whenever it holds one.
func NewHTTPClient(opts Options, tokens TokenSource) (*HTTPClient, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: must be absolute", opts.BaseURL)
	}

	var next http.RoundTripper = http.DefaultTransport
	hc := &http.Client{}
	if opts.HTTPClient != nil {
		*hc = *opts.HTTPClient
		if hc.Transport != nil {
			next = hc.Transport
		}
	}
	hc.Transport = &bearerTransport{tokens: tokens, next: next}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	return &HTTPClient{
		base:    base,
		http:    hc,
		timeout: opts.Timeout,
		limiter: limiter,
		log:     log,
	}, nil
}

// bearerTransport sets the Authorization header from the token source.
type bearerTransport struct {
	tokens TokenSource
	next   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens == nil {
		return t.next.RoundTrip(req)
	}
	token, ok, err := t.tokens.Get(req.Context())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTokenSource, err)
	}
	if !ok {
		return t.next.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(r)
	return t.next.RoundTrip(r)
}

// Do performs a JSON request against path (relative to the base URL).
// in is encoded as the body when non-nil; out receives the decoded 2xx body
// when non-nil.
func (c *HTTPClient) Do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	log := c.log.With("request_id", requestID, "method", method, "path", path)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug(ctx, "request failed", "error", err, "duration", time.Since(start))
		if errors.Is(err, errTokenSource) {
			return err
		}
		return unavailable(err)
	}
	defer resp.Body.Close()

	log.Debug(ctx, "request done", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env errorEnvelope
		// a body that is not JSON still yields the status text
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&env)
		return newHTTPError(resp.StatusCode, env)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return unavailable(err)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
