package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/styrainc/styra-run-sdk-go/pkg/locality"
)

// Built-in strategy names.
const (
	// StrategyNone keeps the discovery order unchanged.
	StrategyNone = "none"

	// StrategyAWS sorts gateways by proximity to the caller's AWS placement.
	StrategyAWS = "aws"
)

// ErrNotOrganized is returned by Organize when every configured strategy
// failed. Callers fall back to the raw gateway list; this is a degradation,
// not a request failure.
var ErrNotOrganized = errors.New("gateway: no strategy produced an organized list")

// ErrStrategyTimeout marks a strategy that did not complete within its time
// budget. The strategy itself is not cancelled, only abandoned; its eventual
// result is discarded.
var ErrStrategyTimeout = errors.New("gateway: organize strategy timed out")

// Strategy reorders a gateway list. Implementations must only permute the
// input, never add or remove entries.
type Strategy func(ctx context.Context, gateways []*Gateway) ([]*Gateway, error)

// LocalityFetcher supplies the caller's own placement metadata. Implemented
// by locality.Fetcher.
type LocalityFetcher interface {
	Metadata(ctx context.Context) locality.Metadata
}

// Registry maps strategy names to reordering functions. The built-in
// strategies are pre-registered at construction; tests and applications may
// register additional ones by name.
type Registry struct {
	logger *slog.Logger

	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a Registry with the built-in strategies registered.
// The aws strategy consults fetcher for the caller's placement; if fetcher
// is nil a fetcher against the standard metadata endpoint is used. If logger
// is nil, slog.Default() is used.
func NewRegistry(logger *slog.Logger, fetcher LocalityFetcher) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		fetcher = locality.NewFetcher(locality.WithLogger(logger))
	}
	r := &Registry{
		logger:     logger,
		strategies: make(map[string]Strategy),
	}
	r.Register(StrategyNone, Identity)
	r.Register(StrategyAWS, AWSStrategy(fetcher))
	return r
}

// Register adds or replaces a strategy under the given name.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// lookup returns the strategy registered under name.
func (r *Registry) lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Organize applies the first strategy in names that succeeds within the
// given timeout. A strategy that is unregistered, returns an error, or
// exceeds the timeout is skipped and the next name is tried. A timeout of
// zero or less disables the time budget. When every strategy fails,
// ErrNotOrganized is returned and callers should keep the raw order.
//
// Every attempt is logged with the strategy name and its outcome.
func (r *Registry) Organize(ctx context.Context, names []string, gateways []*Gateway, timeout time.Duration) ([]*Gateway, error) {
	for _, name := range names {
		strategy, ok := r.lookup(name)
		if !ok {
			r.logger.Warn("organize strategy not registered", "strategy", name)
			continue
		}

		organized, err := r.runStrategy(ctx, strategy, gateways, timeout)
		if err != nil {
			r.logger.Warn("organize strategy failed", "strategy", name, "error", err)
			continue
		}
		r.logger.Debug("organized gateways", "strategy", name, "gateways", len(organized))
		return organized, nil
	}
	return nil, ErrNotOrganized
}

// runStrategy races the strategy against the timeout. The losing strategy
// keeps running in the background with its result ignored; there is no
// cancellation beyond what the caller's context provides.
func (r *Registry) runStrategy(ctx context.Context, strategy Strategy, gateways []*Gateway, timeout time.Duration) ([]*Gateway, error) {
	if timeout <= 0 {
		return strategy(ctx, gateways)
	}

	type outcome struct {
		gateways []*Gateway
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		organized, err := strategy(ctx, gateways)
		done <- outcome{organized, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.gateways, out.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrStrategyTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Identity is the none strategy: it returns the input unchanged.
func Identity(_ context.Context, gateways []*Gateway) ([]*Gateway, error) {
	return gateways, nil
}

// AWSStrategy builds the aws locality strategy. Gateways in the caller's
// zone sort first, then gateways in the caller's region; a zone match always
// outranks a region match. Everything else keeps its discovery order. When
// the caller has no resolvable placement at all, the input is returned
// unchanged.
func AWSStrategy(fetcher LocalityFetcher) Strategy {
	return func(ctx context.Context, gateways []*Gateway) ([]*Gateway, error) {
		md := fetcher.Metadata(ctx)
		if md.Empty() {
			return gateways, nil
		}
		return sortByProximity(gateways, md), nil
	}
}

// sortByProximity stably sorts gateways by locality rank against the
// caller's placement.
func sortByProximity(gateways []*Gateway, md locality.Metadata) []*Gateway {
	sorted := make([]*Gateway, len(gateways))
	copy(sorted, gateways)
	sort.SliceStable(sorted, func(i, j int) bool {
		return proximityRank(sorted[i], md) < proximityRank(sorted[j], md)
	})
	return sorted
}

// proximityRank orders zone matches ahead of region matches ahead of
// everything else. An empty fetched attribute never matches.
func proximityRank(g *Gateway, md locality.Metadata) int {
	switch {
	case md.ZoneID != "" && g.Locality.ZoneID == md.ZoneID:
		return 0
	case md.Region != "" && g.Locality.Region == md.Region:
		return 1
	default:
		return 2
	}
}
