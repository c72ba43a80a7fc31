package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
	"github.com/styrainc/styra-run-sdk-go/pkg/transport"
)

// DefaultBatchMaxItems is the per-request chunk size for batched checks.
const DefaultBatchMaxItems = 20

// Config holds client settings. URL and Token are required; everything else
// has working defaults.
type Config struct {
	// URL is the base address of the Styra Run environment API.
	URL string

	// Token is the environment's bearer token.
	Token string

	// BatchMaxItems caps the number of items sent in one batch request.
	// Larger batches are chunked client-side. Defaults to
	// DefaultBatchMaxItems.
	BatchMaxItems int

	// MaxRetries caps gateway failover per request. Defaults to
	// transport.DefaultMaxRetries when zero; negative disables retries.
	MaxRetries int

	// OrganizeGatewaysStrategy is the ordered organizer chain applied to
	// the discovered gateway list. Defaults to gateway.DefaultStrategies.
	OrganizeGatewaysStrategy []string

	// OrganizeGatewaysStrategyTimeout is the time budget per strategy.
	// Zero or negative disables the budget.
	OrganizeGatewaysStrategyTimeout time.Duration

	// SynchronousOrganization blocks the first gateway resolution until
	// organization has run. The default is asynchronous organization:
	// requests flow immediately using the discovery order and pick up the
	// organized order once it is ready.
	SynchronousOrganization bool

	// HTTPClient is used for all requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger receives client events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to a Styra Run environment.
type Client struct {
	cfg      Config
	resolver *gateway.Resolver
	executor *transport.Executor
	registry *gateway.Registry
}

// New creates a Client for the environment at cfg.URL.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api: config: URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("api: config: Token is required")
	}
	if cfg.BatchMaxItems <= 0 {
		cfg.BatchMaxItems = DefaultBatchMaxItems
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	registry := gateway.NewRegistry(cfg.Logger, nil)
	resolver := gateway.NewResolver(gateway.Config{
		BaseURL:                 cfg.URL,
		Token:                   cfg.Token,
		Strategies:              cfg.OrganizeGatewaysStrategy,
		StrategyTimeout:         cfg.OrganizeGatewaysStrategyTimeout,
		SynchronousOrganization: cfg.SynchronousOrganization,
		HTTPClient:              cfg.HTTPClient,
		Logger:                  cfg.Logger,
	}, registry)
	executor := transport.NewExecutor(resolver, transport.Config{
		Token:      cfg.Token,
		MaxRetries: cfg.MaxRetries,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})

	return &Client{
		cfg:      cfg,
		resolver: resolver,
		executor: executor,
		registry: registry,
	}, nil
}

// Registry exposes the organizer registry so applications can register
// custom strategies before issuing requests.
func (c *Client) Registry() *gateway.Registry {
	return c.registry
}

// Gateways returns the client's current gateway list in failover order.
func (c *Client) Gateways(ctx context.Context) ([]*gateway.Gateway, error) {
	return c.resolver.Gateways(ctx)
}

// InvalidateGateways discards the cached gateway list so the next request
// performs a fresh discovery.
func (c *Client) InvalidateGateways() {
	c.resolver.Invalidate()
}

// Do issues a raw API request through the retrying executor and returns the
// response body. Management packages build on this; most applications want
// the typed methods instead.
func (c *Client) Do(ctx context.Context, method, apiPath string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding request: %w", method, apiPath, err)
		}
	}
	resp, err := c.executor.Do(ctx, &transport.Request{
		Method: method,
		Path:   apiPath,
		Query:  query,
		Body:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, apiPath, err)
	}
	return resp, nil
}

// dataPath joins a policy or data path onto the /data API root.
func dataPath(p string) string {
	return "/data/" + strings.Trim(p, "/")
}
