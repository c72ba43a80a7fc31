package clierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/styrainc/styra-run-sdk-go/pkg/api"
	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
	"github.com/styrainc/styra-run-sdk-go/pkg/transport"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Operation completed successfully
	ExitGeneral     = 1 // Unknown/unhandled error
	ExitAuth        = 2 // Token rejected by the service
	ExitDenied      = 3 // Policy decision was not allowed
	ExitNotFound    = 4 // Path or resource doesn't exist
	ExitUnreachable = 5 // No gateway could serve the request
)

// Error codes (strings) for programmatic error handling.
const (
	CodeNotAllowed        = "NOT_ALLOWED"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeNoGateways        = "NO_GATEWAYS"
	CodeGatewaysExhausted = "GATEWAYS_EXHAUSTED"
	CodeConnectionFailed  = "CONNECTION_FAILED"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeInternalError     = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
	ExitCode  int    `json:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// NotAllowed creates an error for a denied policy decision.
func NotAllowed(path string) *CLIError {
	return &CLIError{
		Code:      CodeNotAllowed,
		Message:   fmt.Sprintf("decision at '%s' is not allowed", path),
		Retryable: false,
		ExitCode:  ExitDenied,
	}
}

// NotAuthorized creates an error for a token the service rejected.
func NotAuthorized() *CLIError {
	return &CLIError{
		Code:      CodeNotAuthorized,
		Message:   "the service rejected the configured token",
		Hint:      "Check the token in ~/.styra-run/config.yaml or STYRA_TOKEN",
		Retryable: false,
		ExitCode:  ExitAuth,
	}
}

// NotFound creates an error for a missing path or resource.
func NotFound(what string) *CLIError {
	return &CLIError{
		Code:      CodeNotFound,
		Message:   fmt.Sprintf("'%s' not found", what),
		Retryable: false,
		ExitCode:  ExitNotFound,
	}
}

// NoGateways creates an error for an empty gateway list.
func NoGateways() *CLIError {
	return &CLIError{
		Code:      CodeNoGateways,
		Message:   "gateway discovery returned no usable gateways",
		Hint:      "Verify the environment URL and that the environment has active gateways",
		Retryable: true,
		ExitCode:  ExitUnreachable,
	}
}

// GatewaysExhausted creates an error for a request that failed on every
// gateway it was allowed to try.
func GatewaysExhausted(attempts, status int) *CLIError {
	return &CLIError{
		Code:      CodeGatewaysExhausted,
		Message:   fmt.Sprintf("request failed after %d attempt(s), last status %d", attempts, status),
		Hint:      "The service may be degraded; retry or raise --max-retries",
		Retryable: true,
		ExitCode:  ExitUnreachable,
	}
}

// ConnectionFailed creates an error for a transport-level failure.
func ConnectionFailed(target string) *CLIError {
	return &CLIError{
		Code:      CodeConnectionFailed,
		Message:   fmt.Sprintf("failed to connect to '%s'", target),
		Hint:      "Check network connectivity and the configured URL",
		Retryable: true,
		ExitCode:  ExitUnreachable,
	}
}

// InvalidConfig creates an error for unusable CLI configuration.
func InvalidConfig(reason string) *CLIError {
	return &CLIError{
		Code:      CodeInvalidConfig,
		Message:   fmt.Sprintf("invalid configuration: %s", reason),
		Hint:      "Run 'styrarun auth status' to inspect the effective configuration",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:      CodeInternalError,
		Message:   msg,
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// FromSDK maps an SDK error onto the CLI taxonomy. Unknown errors become
// INTERNAL_ERROR.
func FromSDK(err error) *CLIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrNotAllowed):
		return NotAllowed("")
	case errors.Is(err, gateway.ErrNoGateways):
		return NoGateways()
	}

	var reqErr *transport.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode() {
		case 0:
			if reqErr.Attempts > 1 {
				return GatewaysExhausted(reqErr.Attempts, 0)
			}
			return ConnectionFailed("gateway")
		case 401, 403:
			return NotAuthorized()
		case 404:
			return NotFound("requested path")
		default:
			return GatewaysExhausted(reqErr.Attempts, reqErr.StatusCode())
		}
	}
	return InternalError(err)
}

// FormatError returns the error formatted for the given output format.
// Supported formats: "json" for JSON output, anything else for a
// human-readable form.
func FormatError(err *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			return fmt.Sprintf(`{"code":%q,"message":%q}`, err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}

// PrintError prints the error to stderr in the appropriate format.
func PrintError(err *CLIError, outputFormat string) {
	fmt.Fprintln(os.Stderr, FormatError(err, outputFormat))
}
