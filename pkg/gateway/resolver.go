package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config holds the resolver settings consumed from the client configuration.
type Config struct {
	// BaseURL is the address of the Styra Run API, used for the bootstrap
	// discovery call.
	BaseURL string

	// Token is the bearer token presented to the discovery endpoint.
	Token string

	// Strategies is the ordered organizer chain applied to the raw list.
	// Defaults to [aws, none].
	Strategies []string

	// StrategyTimeout is the time budget per organizer strategy. Zero or
	// negative disables the budget.
	StrategyTimeout time.Duration

	// SynchronousOrganization makes the first resolution block until the
	// organizer chain has run. By default organization happens in the
	// background and early callers see the raw discovery order.
	SynchronousOrganization bool

	// HTTPClient is used for the bootstrap fetch. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	// Logger receives resolver and organizer events. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// DefaultStrategies is the organizer chain used when none is configured.
var DefaultStrategies = []string{StrategyAWS, StrategyNone}

// Resolver provides a client's authoritative gateway list. The bootstrap
// discovery endpoint is called at most once per Resolver instance, no matter
// how many callers race on the first resolution.
type Resolver struct {
	cfg      Config
	registry *Registry
	client   *http.Client
	logger   *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	raw       []*Gateway
	organized []*Gateway
	pending   bool
	gen       uint64
}

// NewResolver creates a Resolver. If registry is nil a registry with the
// built-in strategies is used.
func NewResolver(cfg Config, registry *Registry) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies
	}
	if registry == nil {
		registry = NewRegistry(cfg.Logger, nil)
	}
	return &Resolver{
		cfg:      cfg,
		registry: registry,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// Gateways returns the current best-ordered gateway list, fetching and
// organizing it on first use. In asynchronous mode the raw discovery order
// is returned until the background organizer chain completes; afterwards
// the organized order is returned. Returns ErrNoGateways when discovery
// yields no usable entries.
func (r *Resolver) Gateways(ctx context.Context) ([]*Gateway, error) {
	r.mu.RLock()
	if r.organized != nil {
		defer r.mu.RUnlock()
		return r.organized, nil
	}
	raw, pending := r.raw, r.pending
	r.mu.RUnlock()

	if raw == nil {
		var err error
		raw, err = r.bootstrap(ctx)
		if err != nil {
			return nil, err
		}
	}

	if r.cfg.SynchronousOrganization {
		return r.organizeSync(ctx, raw), nil
	}

	if !pending {
		r.startOrganize(raw)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.organized != nil {
		return r.organized, nil
	}
	return raw, nil
}

// Invalidate discards the cached lists so the next resolution performs a
// fresh discovery. Deliberate escape hatch for gateway rotation; there is no
// automatic TTL.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = nil
	r.organized = nil
	r.pending = false
	r.gen++
}

// bootstrap fetches the raw gateway list, collapsing concurrent callers
// into a single discovery request. A failed fetch is not cached; the next
// caller tries again.
func (r *Resolver) bootstrap(ctx context.Context) ([]*Gateway, error) {
	v, err, _ := r.group.Do("bootstrap", func() (any, error) {
		r.mu.RLock()
		cached := r.raw
		r.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		gateways, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(gateways) == 0 {
			return nil, ErrNoGateways
		}

		r.mu.Lock()
		r.raw = gateways
		r.mu.Unlock()
		r.logger.Debug("discovered gateways", "gateways", len(gateways))
		return gateways, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Gateway), nil
}

// organizeSync runs the organizer chain inline. Whatever it yields, the
// result becomes the permanent cached list: the organized order on success,
// the raw order otherwise. Organization is not reattempted later.
func (r *Resolver) organizeSync(ctx context.Context, raw []*Gateway) []*Gateway {
	r.mu.Lock()
	if r.organized != nil {
		defer r.mu.Unlock()
		return r.organized
	}
	if r.pending {
		// Another caller is organizing; serve raw until it finishes.
		r.mu.Unlock()
		return raw
	}
	r.pending = true
	gen := r.gen
	r.mu.Unlock()

	r.store(gen, r.organize(ctx, raw))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.organized == nil {
		return raw
	}
	return r.organized
}

// startOrganize kicks off the background organizer chain, at most once per
// discovered list. The chain runs detached from the triggering request.
func (r *Resolver) startOrganize(raw []*Gateway) {
	r.mu.Lock()
	if r.pending || r.organized != nil {
		r.mu.Unlock()
		return
	}
	r.pending = true
	gen := r.gen
	r.mu.Unlock()

	go func() {
		r.store(gen, r.organize(context.Background(), raw))
	}()
}

// organize applies the configured strategy chain, degrading to the raw
// order when the whole chain fails.
func (r *Resolver) organize(ctx context.Context, raw []*Gateway) []*Gateway {
	organized, err := r.registry.Organize(ctx, r.cfg.Strategies, raw, r.cfg.StrategyTimeout)
	if err != nil {
		r.logger.Warn("gateway organization failed, keeping discovery order", "error", err)
		return raw
	}
	return organized
}

// store records the organized list unless the resolver was invalidated
// while the chain was running.
func (r *Resolver) store(gen uint64, organized []*Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.organized = organized
	r.pending = false
}

// fetch performs the bootstrap discovery call.
func (r *Resolver) fetch(ctx context.Context) ([]*Gateway, error) {
	u := strings.TrimSuffix(r.cfg.BaseURL, "/") + "/gateways"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway discovery: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway discovery: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway discovery: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway discovery: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var discovered discoveryResponse
	if err := json.Unmarshal(body, &discovered); err != nil {
		return nil, fmt.Errorf("gateway discovery: decoding response: %w", err)
	}
	return parseGateways(discovered.Result), nil
}
