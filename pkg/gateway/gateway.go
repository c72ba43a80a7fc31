package gateway

import (
	"encoding/json"
	"errors"
	"net/url"
)

// ErrNoGateways is returned when gateway discovery yields an empty list.
// Requests cannot proceed without at least one gateway; the condition is
// fatal to the current call and is not retried.
var ErrNoGateways = errors.New("gateway: no gateways available")

// Locality is the placement metadata a gateway may be tagged with.
type Locality struct {
	Region string `json:"region,omitempty"`
	ZoneID string `json:"zone_id,omitempty"`
}

// Gateway is a candidate backend endpoint. The URL is parsed once at
// discovery time and immutable afterwards.
type Gateway struct {
	URL      *url.URL
	Locality Locality
}

// String returns the gateway's base URL.
func (g *Gateway) String() string {
	return g.URL.String()
}

// discoveryResponse is the body of the bootstrap discovery endpoint.
type discoveryResponse struct {
	Result []discoveryEntry `json:"result"`
}

type discoveryEntry struct {
	// GatewayURL is kept raw so that entries with a missing or non-string
	// value can be dropped instead of failing the whole response.
	GatewayURL json.RawMessage `json:"gateway_url"`
	AWS        *Locality       `json:"aws"`
}

// parseGateways converts discovery entries into gateways. Entries with a
// missing, non-string, or unparseable gateway_url are dropped; the relative
// order of the surviving entries is preserved.
func parseGateways(entries []discoveryEntry) []*Gateway {
	gateways := make([]*Gateway, 0, len(entries))
	for _, entry := range entries {
		var raw string
		if err := json.Unmarshal(entry.GatewayURL, &raw); err != nil {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		gw := &Gateway{URL: u}
		if entry.AWS != nil {
			gw.Locality = *entry.AWS
		}
		gateways = append(gateways, gw)
	}
	return gateways
}
