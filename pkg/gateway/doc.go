// Package gateway discovers and orders the backend endpoints of a Styra Run
// environment.
//
// A client bootstraps its gateway list once from the well-known discovery
// endpoint and keeps it for its lifetime. The raw list is then handed to a
// chain of organizer strategies that may reorder it, typically to put
// gateways close to the caller first. Ordering is significant: it is the
// failover priority used by the transport layer.
//
// # Resolution
//
// The [Resolver] performs the bootstrap fetch at most once per instance,
// collapsing concurrent first-time callers into a single request. Two modes
// are supported: synchronous organization, where the first resolution blocks
// until the organizer chain has run, and asynchronous organization (the
// default), where callers get the raw list immediately and pick up the
// organized order once the background chain completes.
//
// # Organizer strategies
//
// Strategies are registered by name in a [Registry]. Built-ins:
//
//   - none: identity, keeps discovery order
//   - aws: stable sort by zone and region proximity, using locality
//     metadata from the instance metadata service
//
// A configured chain of strategy names is tried in order; a strategy that
// is unknown, fails, or exceeds its time budget is skipped. If the whole
// chain fails the raw order is used. Organization never affects request
// success, only ordering.
package gateway
