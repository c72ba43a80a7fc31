package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/styrainc/styra-run-sdk-go/pkg/api"
	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
	"github.com/styrainc/styra-run-sdk-go/pkg/netutil"
	"github.com/styrainc/styra-run-sdk-go/pkg/transport"
)

// InputTransform rewrites one check item's input before it is forwarded.
// It typically merges session attributes from the request into the input
// supplied by the front end. Returning an error rejects the whole batch
// with 400.
type InputTransform func(r *http.Request, path string, input map[string]any) (map[string]any, error)

// Handler proxies batched checks from front ends to a Styra Run client.
type Handler struct {
	client    *api.Client
	transform InputTransform
	logger    *slog.Logger
}

// New creates a proxy handler. transform may be nil, in which case inputs
// are forwarded unchanged; doing so trusts the front end and is only
// appropriate when the input carries no subject identity.
func New(client *api.Client, transform InputTransform, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, transform: transform, logger: logger}
}

type proxyRequest struct {
	Items []proxyItem `json:"items"`
}

type proxyItem struct {
	Path  string         `json:"path"`
	Input map[string]any `json:"input,omitempty"`
}

// ServeHTTP accepts POST {"items": [{"path": ..., "input": ...}, ...]} and
// responds with {"result": [...]}, one decision per item in order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]api.CheckItem, len(req.Items))
	for i, item := range req.Items {
		input := item.Input
		if h.transform != nil {
			var err error
			input, err = h.transform(r, item.Path, input)
			if err != nil {
				h.logger.Info("proxy input rejected",
					"request_id", requestID, "client", netutil.ClientIP(r),
					"path", item.Path, "reason", err)
				writeError(w, http.StatusBadRequest, "invalid input")
				return
			}
		}
		items[i] = api.CheckItem{Path: item.Path, Input: input}
	}

	decisions, err := h.client.BatchCheck(r.Context(), items, nil)
	if err != nil {
		h.logger.Error("proxy batch check failed", "request_id", requestID, "items", len(items), "error", err)
		writeError(w, upstreamStatus(err), "batch check failed")
		return
	}
	if decisions == nil {
		decisions = []api.Decision{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": decisions})
}

// upstreamStatus maps client failures onto proxy statuses.
func upstreamStatus(err error) int {
	var reqErr *transport.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode() != 0 {
		return reqErr.StatusCode()
	}
	if errors.Is(err, gateway.ErrNoGateways) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": message})
}
