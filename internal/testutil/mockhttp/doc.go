// Package mockhttp builds mock HTTP servers for SDK tests.
//
// The builder composes small matching handlers: fixed JSON documents,
// scripted status sequences for failover tests, required headers, and
// request capture for assertions. Handlers are tried in registration order;
// the first one that claims the request wins.
package mockhttp
