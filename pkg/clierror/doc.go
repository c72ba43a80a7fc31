// Package clierror provides structured errors for CLI output with codes,
// exit codes, and remediation hints.
//
// CLI errors separate what the operator sees (message, hint, exit code)
// from the underlying SDK failure. Commands map transport and gateway
// errors onto a stable code taxonomy so scripts can branch on them with
// --output json.
package clierror
