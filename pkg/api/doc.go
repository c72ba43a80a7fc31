// Package api is the Styra Run client facade: policy checks, batched
// checks, and data CRUD against a Styra Run environment.
//
// A [Client] owns one gateway resolver and one retrying executor; every
// call shares the cached gateway list and the failover behavior documented
// in the transport package. Construct one Client per environment and reuse
// it; it is safe for concurrent use.
//
// Basic usage:
//
//	client, err := api.New(api.Config{
//	    URL:   "https://api.styra.com/v1/projects/.../envs/prod",
//	    Token: token,
//	})
//	ok, err := client.Allowed(ctx, "tickets/create", map[string]any{
//	    "subject": "alice",
//	    "tenant":  "acmecorp",
//	})
package api
