package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/styrainc/styra-run-sdk-go/pkg/locality"
)

// staticLocality is a LocalityFetcher with a fixed answer.
type staticLocality struct {
	md locality.Metadata
}

func (s staticLocality) Metadata(ctx context.Context) locality.Metadata {
	return s.md
}

func testGateway(t *testing.T, raw string, loc Locality) *Gateway {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return &Gateway{URL: u, Locality: loc}
}

func gatewayURLs(gateways []*Gateway) []string {
	urls := make([]string, len(gateways))
	for i, g := range gateways {
		urls[i] = g.String()
	}
	return urls
}

func TestIdentityKeepsOrder(t *testing.T) {
	t.Parallel()
	gateways := []*Gateway{
		testGateway(t, "https://one.example.com", Locality{}),
		testGateway(t, "https://two.example.com", Locality{}),
	}
	out, err := Identity(context.Background(), gateways)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if len(out) != 2 || out[0] != gateways[0] || out[1] != gateways[1] {
		t.Errorf("Identity() reordered the input: %v", gatewayURLs(out))
	}
}

func TestAWSStrategySortsByProximity(t *testing.T) {
	t.Parallel()
	t.Log("Zone match ranks first, region match second, ties keep discovery order")

	gateways := []*Gateway{
		testGateway(t, "https://a.example.com", Locality{Region: "r1", ZoneID: "z1"}),
		testGateway(t, "https://b.example.com", Locality{Region: "r1", ZoneID: "z2"}),
		testGateway(t, "https://c.example.com", Locality{Region: "r2", ZoneID: "z3"}),
		testGateway(t, "https://d.example.com", Locality{Region: "r2"}),
	}
	strategy := AWSStrategy(staticLocality{locality.Metadata{Region: "r1", ZoneID: "z2"}})

	out, err := strategy(context.Background(), gateways)
	if err != nil {
		t.Fatalf("strategy error = %v", err)
	}
	want := []string{
		"https://b.example.com", // zone match wins over region match
		"https://a.example.com", // region match
		"https://c.example.com", // no match, discovery order
		"https://d.example.com",
	}
	got := gatewayURLs(out)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAWSStrategyStableAmongEqualRanks(t *testing.T) {
	t.Parallel()
	gateways := []*Gateway{
		testGateway(t, "https://a.example.com", Locality{Region: "r1"}),
		testGateway(t, "https://b.example.com", Locality{Region: "r1"}),
		testGateway(t, "https://c.example.com", Locality{Region: "r1"}),
	}
	strategy := AWSStrategy(staticLocality{locality.Metadata{Region: "r1"}})

	out, err := strategy(context.Background(), gateways)
	if err != nil {
		t.Fatalf("strategy error = %v", err)
	}
	got := gatewayURLs(out)
	want := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("equal ranks reordered: %v", got)
		}
	}
}

func TestAWSStrategyNoMetadataKeepsInput(t *testing.T) {
	t.Parallel()
	gateways := []*Gateway{
		testGateway(t, "https://a.example.com", Locality{Region: "r2"}),
		testGateway(t, "https://b.example.com", Locality{Region: "r1"}),
	}
	strategy := AWSStrategy(staticLocality{})

	out, err := strategy(context.Background(), gateways)
	if err != nil {
		t.Fatalf("strategy error = %v", err)
	}
	if len(out) != 2 || out[0] != gateways[0] || out[1] != gateways[1] {
		t.Errorf("expected input unchanged, got %v", gatewayURLs(out))
	}
}

func TestAWSStrategyEmptyAttributeNeverMatches(t *testing.T) {
	t.Parallel()
	t.Log("A gateway without zone metadata must not match an absent fetched zone")

	gateways := []*Gateway{
		testGateway(t, "https://a.example.com", Locality{}),
		testGateway(t, "https://b.example.com", Locality{Region: "r1"}),
	}
	strategy := AWSStrategy(staticLocality{locality.Metadata{Region: "r1"}})

	out, err := strategy(context.Background(), gateways)
	if err != nil {
		t.Fatalf("strategy error = %v", err)
	}
	if out[0].String() != "https://b.example.com" {
		t.Errorf("region match should rank first, got %v", gatewayURLs(out))
	}
}

func TestOrganizeFallbackChain(t *testing.T) {
	t.Parallel()
	t.Log("A failing strategy is tried once, then the next name takes over")

	registry := NewRegistry(slog.Default(), staticLocality{})
	var failingCalls atomic.Int32
	registry.Register("failing", func(ctx context.Context, gws []*Gateway) ([]*Gateway, error) {
		failingCalls.Add(1)
		return nil, errors.New("strategy broke")
	})
	registry.Register("reverse", func(ctx context.Context, gws []*Gateway) ([]*Gateway, error) {
		out := make([]*Gateway, len(gws))
		for i, g := range gws {
			out[len(gws)-1-i] = g
		}
		return out, nil
	})

	gateways := []*Gateway{
		testGateway(t, "https://a.example.com", Locality{}),
		testGateway(t, "https://b.example.com", Locality{}),
	}
	out, err := registry.Organize(context.Background(), []string{"failing", "reverse"}, gateways, 0)
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	if out[0].String() != "https://b.example.com" {
		t.Errorf("fallback strategy result not used: %v", gatewayURLs(out))
	}
	if n := failingCalls.Load(); n != 1 {
		t.Errorf("failing strategy called %d times, want 1", n)
	}
}

func TestOrganizeSkipsUnknownStrategy(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(slog.Default(), staticLocality{})
	gateways := []*Gateway{testGateway(t, "https://a.example.com", Locality{})}

	out, err := registry.Organize(context.Background(), []string{"no-such-strategy", StrategyNone}, gateways, 0)
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected identity result, got %v", gatewayURLs(out))
	}
}

func TestOrganizeTimeoutFallsThrough(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(slog.Default(), staticLocality{})
	release := make(chan struct{})
	registry.Register("stuck", func(ctx context.Context, gws []*Gateway) ([]*Gateway, error) {
		<-release
		return gws, nil
	})
	t.Cleanup(func() { close(release) })

	gateways := []*Gateway{testGateway(t, "https://a.example.com", Locality{})}
	out, err := registry.Organize(context.Background(), []string{"stuck", StrategyNone}, gateways, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected fallback result, got %v", gatewayURLs(out))
	}
}

func TestOrganizeTimeoutDisabled(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(slog.Default(), staticLocality{})
	registry.Register("slow", func(ctx context.Context, gws []*Gateway) ([]*Gateway, error) {
		time.Sleep(50 * time.Millisecond)
		return gws, nil
	})

	gateways := []*Gateway{testGateway(t, "https://a.example.com", Locality{})}
	out, err := registry.Organize(context.Background(), []string{"slow"}, gateways, 0)
	if err != nil {
		t.Fatalf("Organize() with disabled timeout error = %v", err)
	}
	if len(out) != 1 {
		t.Errorf("unexpected result: %v", gatewayURLs(out))
	}
}

func TestOrganizeAllStrategiesFail(t *testing.T) {
	t.Parallel()
	registry := NewRegistry(slog.Default(), staticLocality{})
	registry.Register("broken", func(ctx context.Context, gws []*Gateway) ([]*Gateway, error) {
		return nil, errors.New("nope")
	})

	gateways := []*Gateway{testGateway(t, "https://a.example.com", Locality{})}
	_, err := registry.Organize(context.Background(), []string{"broken", "also-missing"}, gateways, 0)
	if !errors.Is(err, ErrNotOrganized) {
		t.Fatalf("Organize() error = %v, want ErrNotOrganized", err)
	}
}
