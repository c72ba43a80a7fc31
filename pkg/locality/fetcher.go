package locality

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the well-known address of the instance metadata service.
	DefaultBaseURL = "http://169.254.169.254"

	tokenPath  = "/latest/api/token"
	regionPath = "/latest/meta-data/placement/region"
	zonePath   = "/latest/meta-data/placement/availability-zone-id"

	tokenHeader    = "X-aws-ec2-metadata-token"
	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
	tokenTTL       = "21600"
)

// Metadata holds the locality attributes of the running deployment.
// Attributes that could not be resolved are empty.
type Metadata struct {
	Region string
	ZoneID string
}

// Empty reports whether no locality attribute was resolved.
func (m Metadata) Empty() bool {
	return m.Region == "" && m.ZoneID == ""
}

// Fetcher retrieves locality metadata from the instance metadata service.
// It caches the session token across lookups and is safe for concurrent use.
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	token string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides the metadata service address. Used by tests and by
// deployments that proxy the metadata endpoint.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client used for metadata requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher against the standard metadata endpoint.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Metadata resolves the region and zone id of the running deployment.
// The two attributes are fetched concurrently so that one being unavailable
// does not block the other. Unresolvable attributes come back empty; the
// call itself never fails.
func (f *Fetcher) Metadata(ctx context.Context) Metadata {
	var md Metadata
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		md.Region = f.attribute(ctx, regionPath)
	}()
	go func() {
		defer wg.Done()
		md.ZoneID = f.attribute(ctx, zonePath)
	}()
	wg.Wait()
	return md
}

// attribute fetches a single metadata attribute. A cached token that is
// rejected with 401 is refreshed once, and the fetch is retried exactly once
// with the new token. Any other failure yields an empty value.
func (f *Fetcher) attribute(ctx context.Context, path string) string {
	token, cached := f.sessionToken(ctx)

	value, status := f.get(ctx, path, token)
	if status == http.StatusUnauthorized && cached && token != "" {
		token = f.refreshToken(ctx)
		value, status = f.get(ctx, path, token)
	}
	if status != http.StatusOK {
		if status != http.StatusNotFound {
			f.logger.Debug("metadata attribute unavailable", "path", path, "status", status)
		}
		return ""
	}
	return strings.TrimSuffix(value, "/")
}

// sessionToken returns the cached session token, fetching one if none is
// cached. The second return value reports whether the token came from the
// cache. A token endpoint that answers 404 (or is unreachable) puts the
// fetch in legacy tokenless mode: an empty token is returned and requests
// proceed without the token header.
func (f *Fetcher) sessionToken(ctx context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token != "" {
		return f.token, true
	}
	f.token = f.fetchToken(ctx)
	return f.token, false
}

// refreshToken discards the cached token and fetches a new one.
func (f *Fetcher) refreshToken(ctx context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = f.fetchToken(ctx)
	return f.token
}

func (f *Fetcher) fetchToken(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, f.baseURL+tokenPath, nil)
	if err != nil {
		return ""
	}
	req.Header.Set(tokenTTLHeader, tokenTTL)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("metadata token endpoint unreachable", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 404 means the service does not speak the token protocol.
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

// get performs a single attribute request. The returned status is 0 when the
// request failed before receiving a response.
func (f *Fetcher) get(ctx context.Context, path, token string) (string, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return "", 0
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0
	}
	return string(body), resp.StatusCode
}
