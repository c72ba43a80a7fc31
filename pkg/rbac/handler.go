package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
	"github.com/styrainc/styra-run-sdk-go/pkg/netutil"
	"github.com/styrainc/styra-run-sdk-go/pkg/transport"
)

// DefaultPageSize is the binding-list page size when the handler options do
// not set one.
const DefaultPageSize = 25

// Authorizer decides whether a request may administer role bindings.
// Returning an error denies the request with 403.
type Authorizer func(r *http.Request) error

// HandlerOptions configures the management handler.
type HandlerOptions struct {
	// Authorize guards every route. Required.
	Authorize Authorizer

	// PageSize caps the number of bindings per list page. Defaults to
	// DefaultPageSize.
	PageSize int
}

// Handler serves the management API over HTTP:
//
//	GET    /roles
//	GET    /user_bindings?page=N
//	POST   /user_bindings            (lookup for a list of users)
//	GET    /user_bindings/{user}
//	PUT    /user_bindings/{user}
//	DELETE /user_bindings/{user}
//
// Responses use the {"result": ...} envelope. Mount it under the prefix of
// your choice with http.StripPrefix.
func (m *Manager) Handler(opts HandlerOptions) http.Handler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/roles", func(w http.ResponseWriter, r *http.Request) {
		if !m.admit(w, r, opts, http.MethodGet) {
			return
		}
		roles, err := m.GetRoles(r.Context())
		if err != nil {
			m.writeError(w, r, err)
			return
		}
		writeResult(w, roles)
	})
	mux.HandleFunc("/user_bindings", func(w http.ResponseWriter, r *http.Request) {
		if !m.admit(w, r, opts, http.MethodGet, http.MethodPost) {
			return
		}
		if r.Method == http.MethodPost {
			m.serveBindingLookup(w, r)
			return
		}
		m.serveBindingList(w, r, opts)
	})
	mux.HandleFunc("/user_bindings/", func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimPrefix(r.URL.Path, "/user_bindings/")
		if user == "" || strings.Contains(user, "/") {
			http.NotFound(w, r)
			return
		}
		if !m.admit(w, r, opts, http.MethodGet, http.MethodPut, http.MethodDelete) {
			return
		}
		m.serveBinding(w, r, user)
	})
	return mux
}

// admit tags the request with an id, checks the method, and runs the
// authorizer. It reports whether handling should continue.
func (m *Manager) admit(w http.ResponseWriter, r *http.Request, opts HandlerOptions, methods ...string) bool {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	allowed := false
	for _, method := range methods {
		if r.Method == method {
			allowed = true
			break
		}
	}
	if !allowed {
		writeStatus(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if opts.Authorize == nil {
		writeStatus(w, http.StatusForbidden, "no authorizer configured")
		return false
	}
	if err := opts.Authorize(r); err != nil {
		m.logger.Info("rbac request denied",
			"request_id", requestID, "client", netutil.ClientIP(r),
			"method", r.Method, "path", r.URL.Path, "reason", err)
		writeStatus(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (m *Manager) serveBindingList(w http.ResponseWriter, r *http.Request, opts HandlerOptions) {
	bindings, err := m.ListUserBindings(r.Context())
	if err != nil {
		m.writeError(w, r, err)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeStatus(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	start := (page - 1) * opts.PageSize
	if start > len(bindings) {
		start = len(bindings)
	}
	end := start + opts.PageSize
	if end > len(bindings) {
		end = len(bindings)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": bindings[start:end],
		"page":   page,
		"total":  len(bindings),
	})
}

// serveBindingLookup answers POST /user_bindings with the bindings for the
// posted user list, in the posted order.
func (m *Manager) serveBindingLookup(w http.ResponseWriter, r *http.Request) {
	var users []string
	if err := json.NewDecoder(r.Body).Decode(&users); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid user list")
		return
	}
	bindings, err := m.ListUserBindingsFor(r.Context(), users)
	if err != nil {
		m.writeError(w, r, err)
		return
	}
	writeResult(w, bindings)
}

func (m *Manager) serveBinding(w http.ResponseWriter, r *http.Request, user string) {
	switch r.Method {
	case http.MethodGet:
		roles, err := m.GetUserBinding(r.Context(), user)
		if err != nil {
			m.writeError(w, r, err)
			return
		}
		writeResult(w, roles)
	case http.MethodPut:
		var roles []string
		if err := json.NewDecoder(r.Body).Decode(&roles); err != nil {
			writeStatus(w, http.StatusBadRequest, "invalid binding body")
			return
		}
		if err := m.PutUserBinding(r.Context(), user, roles); err != nil {
			m.writeError(w, r, err)
			return
		}
		writeResult(w, roles)
	case http.MethodDelete:
		if err := m.DeleteUserBinding(r.Context(), user); err != nil {
			m.writeError(w, r, err)
			return
		}
		writeResult(w, nil)
	}
}

// writeError maps upstream failures onto proxy-appropriate statuses: the
// final status of an exhausted request is passed through, everything else
// becomes 502.
func (m *Manager) writeError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Error("rbac upstream request failed", "method", r.Method, "path", r.URL.Path, "error", err)

	status := http.StatusBadGateway
	var reqErr *transport.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode() != 0 {
		status = reqErr.StatusCode()
	} else if errors.Is(err, gateway.ErrNoGateways) {
		status = http.StatusServiceUnavailable
	}
	writeStatus(w, status, "upstream request failed")
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
