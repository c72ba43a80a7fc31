// Package rbac manages role bindings in a Styra Run environment and exposes
// them to front ends.
//
// The [Manager] wraps the management endpoints (roles, user bindings) as Go
// methods. [Manager.Handler] additionally serves them as a small REST API
// intended to sit behind an application's own session handling: the
// application supplies an authorizer callback that decides, per request,
// whether the session is allowed to administer bindings.
package rbac
