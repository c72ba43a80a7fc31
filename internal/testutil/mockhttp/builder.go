package mockhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Handler inspects a request and reports whether it handled it.
type Handler func(w http.ResponseWriter, r *http.Request) bool

// Server wraps an httptest.Server with fluent route registration.
type Server struct {
	mu       sync.Mutex
	handlers []Handler
	capture  *Capture

	ts *httptest.Server
}

// NewServer starts a mock server. Unmatched requests get 404.
func NewServer() *Server {
	s := &Server{}
	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		handlers := make([]Handler, len(s.handlers))
		copy(handlers, s.handlers)
		s.mu.Unlock()

		for _, h := range handlers {
			if h(w, r) {
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.ts.URL }

// Close shuts the server down.
func (s *Server) Close() { s.ts.Close() }

// Handle appends a raw handler.
func (s *Server) Handle(h Handler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
	return s
}

// JSON serves a JSON document with status 200 for method+path.
func (s *Server) JSON(method, path string, doc any) *Server {
	return s.JSONStatus(method, path, http.StatusOK, doc)
}

// JSONStatus serves a JSON document with an explicit status for method+path.
func (s *Server) JSONStatus(method, path string, status int, doc any) *Server {
	return s.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		if !match(r, method, path) {
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(doc)
		return true
	})
}

// Status serves a bare status code with optional body for method+path.
func (s *Server) Status(method, path string, status int, body string) *Server {
	return s.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		if !match(r, method, path) {
			return false
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
		return true
	})
}

// Sequence serves one scripted response per matching request, in order.
// Requests beyond the script fall through to later handlers. Used to model
// a gateway that fails n times and then recovers.
func (s *Server) Sequence(method, path string, responses ...Response) *Server {
	var mu sync.Mutex
	next := 0
	return s.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		if !match(r, method, path) {
			return false
		}
		mu.Lock()
		if next >= len(responses) {
			mu.Unlock()
			return false
		}
		resp := responses[next]
		next++
		mu.Unlock()

		if resp.Header != nil {
			for name, value := range resp.Header {
				w.Header().Set(name, value)
			}
		}
		w.WriteHeader(resp.Status)
		io.WriteString(w, resp.Body)
		return true
	})
}

// Response is one scripted reply.
type Response struct {
	Status int
	Body   string
	Header map[string]string
}

// RequireBearer rejects requests whose Authorization header does not carry
// the expected bearer token. Registered before content handlers, it guards
// every route.
func (s *Server) RequireBearer(token string) *Server {
	return s.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		got := r.Header.Get("Authorization")
		if !strings.EqualFold(got, "Bearer "+token) {
			w.WriteHeader(http.StatusUnauthorized)
			return true
		}
		return false
	})
}

// Capture records every subsequent request for assertions and returns the
// recorder. Register it first so nothing is missed.
func (s *Server) Capture() *Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		s.capture = &Capture{}
		s.handlers = append(s.handlers, func(w http.ResponseWriter, r *http.Request) bool {
			s.capture.record(r)
			return false
		})
	}
	return s.capture
}

// match compares method and path. A path ending in "*" matches by prefix.
func match(r *http.Request, method, path string) bool {
	if method != "" && r.Method != method {
		return false
	}
	if strings.HasSuffix(path, "*") {
		return strings.HasPrefix(r.URL.Path, strings.TrimSuffix(path, "*"))
	}
	return r.URL.Path == path
}

// Capture stores observed requests.
type Capture struct {
	mu       sync.Mutex
	requests []Request
}

// Request is one recorded HTTP request.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  map[string][]string
	Body   []byte
}

// BodyJSON decodes the recorded body into v.
func (r *Request) BodyJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (c *Capture) record(r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Query:  r.URL.Query(),
		Body:   body,
	})
}

// Count returns the number of recorded requests.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// CountPath returns the number of recorded requests for an exact path.
func (c *Capture) CountPath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Get returns the request at index i, or nil if out of range.
func (c *Capture) Get(i int) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.requests) {
		return nil
	}
	r := c.requests[i]
	return &r
}

// Last returns the most recent request, or nil if none.
func (c *Capture) Last() *Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	r := c.requests[len(c.requests)-1]
	return &r
}

// All returns a copy of every recorded request.
func (c *Capture) All() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}
