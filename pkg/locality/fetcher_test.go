package locality

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styrainc/styra-run-sdk-go/internal/testutil/mockhttp"
)

// tokenService emulates the metadata token protocol: PUT issues a fresh
// token, attribute requests must present an unexpired one.
type tokenService struct {
	mu     sync.Mutex
	issued int
	live   map[string]bool
}

func (ts *tokenService) issue() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.issued++
	token := fmt.Sprintf("session-%d", ts.issued)
	if ts.live == nil {
		ts.live = make(map[string]bool)
	}
	ts.live[token] = true
	return token
}

func (ts *tokenService) valid(token string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.live[token]
}

// expire invalidates every outstanding token without issuing a new one.
func (ts *tokenService) expire() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.live = nil
}

func (ts *tokenService) issuedCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.issued
}

// install wires the token protocol and the given attribute values into the
// mock server. Attribute requests with a missing or stale token get 401.
func (ts *tokenService) install(server *mockhttp.Server, region, zone string) {
	server.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method == http.MethodPut && r.URL.Path == tokenPath {
			io.WriteString(w, ts.issue())
			return true
		}
		var value string
		switch r.URL.Path {
		case regionPath:
			value = region
		case zonePath:
			value = zone
		default:
			return false
		}
		if !ts.valid(r.Header.Get(tokenHeader)) {
			w.WriteHeader(http.StatusUnauthorized)
			return true
		}
		if value == "" {
			w.WriteHeader(http.StatusNotFound)
			return true
		}
		io.WriteString(w, value)
		return true
	})
}

func TestMetadataResolvesBothAttributes(t *testing.T) {
	t.Parallel()
	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	capture := server.Capture()
	ts := &tokenService{}
	ts.install(server, "us-east-1", "use1-az1")

	fetcher := NewFetcher(WithBaseURL(server.URL()))
	md := fetcher.Metadata(context.Background())

	assert.Equal(t, "us-east-1", md.Region)
	assert.Equal(t, "use1-az1", md.ZoneID)

	tokenReq := capture.Get(0)
	require.NotNil(t, tokenReq)
	require.Equal(t, tokenPath, tokenReq.Path, "the token request should come first")
	assert.Equal(t, tokenTTL, tokenReq.Header.Get(tokenTTLHeader))
}

func TestMetadataLegacyTokenlessMode(t *testing.T) {
	t.Parallel()
	t.Log("A 404 from the token endpoint switches to tokenless requests")

	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	capture := server.Capture()
	server.Status(http.MethodPut, tokenPath, http.StatusNotFound, "")
	server.Status(http.MethodGet, regionPath, http.StatusOK, "eu-west-1")
	server.Status(http.MethodGet, zonePath, http.StatusOK, "euw1-az2")

	fetcher := NewFetcher(WithBaseURL(server.URL()))
	md := fetcher.Metadata(context.Background())

	assert.Equal(t, "eu-west-1", md.Region)
	assert.Equal(t, "euw1-az2", md.ZoneID)
	for _, req := range capture.All() {
		if req.Path == tokenPath {
			continue
		}
		assert.Empty(t, req.Header.Get(tokenHeader), "tokenless request to %s carried a token header", req.Path)
	}
}

func TestMetadataTrimsOneTrailingSlash(t *testing.T) {
	t.Parallel()
	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	server.Status(http.MethodPut, tokenPath, http.StatusNotFound, "")
	server.Status(http.MethodGet, regionPath, http.StatusOK, "us-west-2/")
	server.Status(http.MethodGet, zonePath, http.StatusOK, "usw2-az1//")

	fetcher := NewFetcher(WithBaseURL(server.URL()))
	md := fetcher.Metadata(context.Background())

	assert.Equal(t, "us-west-2", md.Region, "trailing slash should be removed")
	assert.Equal(t, "usw2-az1/", md.ZoneID, "exactly one trailing slash should be removed")
}

func TestMetadataAttributesIndependent(t *testing.T) {
	t.Parallel()
	t.Log("A missing zone attribute does not affect the region lookup")

	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	ts := &tokenService{}
	ts.install(server, "ap-southeast-2", "")

	fetcher := NewFetcher(WithBaseURL(server.URL()))
	md := fetcher.Metadata(context.Background())

	assert.Equal(t, "ap-southeast-2", md.Region)
	assert.Empty(t, md.ZoneID)
	assert.False(t, md.Empty(), "a resolved region should count as non-empty")
}

func TestMetadataExpiredTokenRefreshed(t *testing.T) {
	t.Parallel()
	t.Log("A cached token rejected with 401 is refreshed and the fetch retried")

	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	ts := &tokenService{}
	ts.install(server, "us-east-2", "use2-az3")

	fetcher := NewFetcher(WithBaseURL(server.URL()))
	require.Equal(t, "us-east-2", fetcher.Metadata(context.Background()).Region)
	before := ts.issuedCount()

	ts.expire()
	md := fetcher.Metadata(context.Background())
	assert.Equal(t, "us-east-2", md.Region)
	assert.Equal(t, "use2-az3", md.ZoneID)
	assert.Greater(t, ts.issuedCount(), before, "expected at least one token refresh after expiry")
}

func TestMetadataServiceUnreachable(t *testing.T) {
	t.Parallel()
	server := mockhttp.NewServer()
	base := server.URL()
	server.Close()

	fetcher := NewFetcher(WithBaseURL(base))
	md := fetcher.Metadata(context.Background())
	assert.True(t, md.Empty(), "metadata = %+v, want empty against an unreachable service", md)
}
