// Package locality resolves the region and zone of the ambient deployment
// from the EC2 instance metadata service.
//
// The fetcher speaks both metadata protocols: it first requests a session
// token (IMDSv2) and falls back to tokenless requests (IMDSv1) when the
// token endpoint is not available. A cached token is replaced at most once
// per attribute fetch, when the metadata service rejects it as unauthorized.
//
// Lookups never fail hard. An attribute that cannot be resolved is reported
// as empty, and callers decide what an absent region or zone means.
package locality
