// Package proxy serves batched policy checks to front ends.
//
// Browsers cannot hold the environment token, so they POST their check
// items to this handler instead. The application supplies an input
// transform that injects trusted session data (subject, tenant) into each
// item before the batch is forwarded to the Styra Run client, which keeps
// the client-supplied input from impersonating other subjects.
package proxy
