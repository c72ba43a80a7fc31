package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
)

// DefaultMaxRetries bounds failover when the client does not configure it.
const DefaultMaxRetries = 3

// GatewayProvider supplies the ordered gateway list for failover.
// Implemented by gateway.Resolver.
type GatewayProvider interface {
	Gateways(ctx context.Context) ([]*gateway.Gateway, error)
}

// Config contains executor settings.
type Config struct {
	// Token is the bearer token attached to every request.
	Token string

	// MaxRetries caps failover attempts beyond the first. The effective
	// bound per request is min(MaxRetries, gateways-1). Defaults to
	// DefaultMaxRetries when zero; negative disables retries.
	MaxRetries int

	// HTTPClient performs the requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger receives per-attempt events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Request describes one logical API request. The path is appended to the
// chosen gateway's own path prefix.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Executor issues requests against the current best gateway and fails over
// deterministically down the list.
type Executor struct {
	provider GatewayProvider
	cfg      Config
}

// NewExecutor creates an Executor over the given gateway provider.
func NewExecutor(provider GatewayProvider, cfg Config) *Executor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{provider: provider, cfg: cfg}
}

// Do executes one logical request. Attempt n targets gateway (n-1) mod len,
// so retries walk the list in priority order. On success the response body
// is returned; on terminal failure the error is a *RequestError unless
// gateway resolution itself failed.
func (e *Executor) Do(ctx context.Context, req *Request) ([]byte, error) {
	gateways, err := e.provider.Gateways(ctx)
	if err != nil {
		return nil, err
	}
	if len(gateways) == 0 {
		return nil, gateway.ErrNoGateways
	}

	maxRetries := e.cfg.MaxRetries
	if n := len(gateways) - 1; maxRetries > n {
		maxRetries = n
	}

	requestID := uuid.NewString()
	for attempt := 1; ; attempt++ {
		gw := gateways[(attempt-1)%len(gateways)]

		body, err := e.send(ctx, gw, req, requestID)
		if err == nil {
			return body, nil
		}

		if !Retryable(err) || attempt > maxRetries {
			return nil, &RequestError{Attempts: attempt, Err: err}
		}
		e.cfg.Logger.Debug("request attempt failed, trying next gateway",
			"request_id", requestID,
			"gateway", gw.String(),
			"attempt", attempt,
			"error", err)
	}
}

// send performs a single attempt against one gateway.
func (e *Executor) send(ctx context.Context, gw *gateway.Gateway, req *Request, requestID string) ([]byte, error) {
	target := *gw.URL
	target.Path = path.Join(target.Path, req.Path)
	if req.Query != nil {
		target.RawQuery = req.Query.Encode()
	}

	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	for name, values := range req.Header {
		httpReq.Header[name] = values
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.Token)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
