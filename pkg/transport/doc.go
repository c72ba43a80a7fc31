// Package transport executes Styra Run API requests with bounded failover
// across the client's gateway list.
//
// A logical request is tried against one gateway at a time, in list order.
// Failures are classified before a retry is considered:
//
//   - Retryable: transport-level errors with no HTTP response, and the
//     gateway-tier statuses 421, 500, 502, 503 and 504.
//   - Terminal: every other status. A 400 or 404 ends the request after a
//     single attempt regardless of remaining budget.
//
// The retry budget is min(configured max retries, gateways-1), so a request
// visits each gateway at most once on the first pass. Attempts within one
// request are strictly sequential. Exhausted requests surface a
// [RequestError] carrying the attempt count and the final status and body.
package transport
