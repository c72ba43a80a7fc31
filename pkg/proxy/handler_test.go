package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/styrainc/styra-run-sdk-go/internal/testutil/mockhttp"
	"github.com/styrainc/styra-run-sdk-go/pkg/api"
	"github.com/styrainc/styra-run-sdk-go/pkg/gateway"
)

func newTestProxy(t *testing.T, transform InputTransform) (*Handler, *mockhttp.Server, *mockhttp.Capture) {
	t.Helper()
	server := mockhttp.NewServer()
	t.Cleanup(server.Close)
	capture := server.Capture()
	server.JSON("GET", "/gateways", map[string]any{
		"result": []map[string]any{{"gateway_url": server.URL()}},
	})

	client, err := api.New(api.Config{
		URL:                      server.URL(),
		Token:                    "secret",
		OrganizeGatewaysStrategy: []string{gateway.StrategyNone},
		SynchronousOrganization:  true,
	})
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	return New(client, transform, nil), server, capture
}

// allowBatch answers every batch request with one allowed decision per item.
func allowBatch(server *mockhttp.Server) {
	server.Handle(func(w http.ResponseWriter, r *http.Request) bool {
		if r.Method != "POST" || r.URL.Path != "/data_batch" {
			return false
		}
		var body struct {
			Items []json.RawMessage `json:"items"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		decisions := make([]map[string]any, len(body.Items))
		for i := range decisions {
			decisions[i] = map[string]any{"result": true}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"result": decisions})
		return true
	})
}

func postBatch(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProxyForwardsBatch(t *testing.T) {
	t.Parallel()
	handler, server, _ := newTestProxy(t, nil)
	allowBatch(server)

	rec := postBatch(t, handler, `{"items": [{"path": "app/allow", "input": {"n": 1}}, {"path": "app/allow"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Result []api.Decision `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Result) != 2 {
		t.Errorf("got %d decisions, want 2", len(body.Result))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected an X-Request-ID header")
	}
}

func TestProxyInjectsSessionInput(t *testing.T) {
	t.Parallel()
	t.Log("The transform merges caller identity into every forwarded input")

	transform := func(r *http.Request, path string, input map[string]any) (map[string]any, error) {
		if input == nil {
			input = map[string]any{}
		}
		input["subject"] = r.Header.Get("X-Subject")
		return input, nil
	}
	handler, server, capture := newTestProxy(t, transform)
	allowBatch(server)

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"items": [{"path": "app/allow", "input": {"n": 1}}]}`))
	req.Header.Set("X-Subject", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var upstream struct {
		Items []struct {
			Input map[string]any `json:"input"`
		} `json:"items"`
	}
	if err := capture.Last().BodyJSON(&upstream); err != nil {
		t.Fatalf("decoding upstream body: %v", err)
	}
	if got := upstream.Items[0].Input["subject"]; got != "alice" {
		t.Errorf("forwarded subject = %v, want alice", got)
	}
	if got := upstream.Items[0].Input["n"]; got != float64(1) {
		t.Errorf("front-end input lost: %v", upstream.Items[0].Input)
	}
}

func TestProxyTransformRejection(t *testing.T) {
	t.Parallel()
	transform := func(r *http.Request, path string, input map[string]any) (map[string]any, error) {
		return nil, errors.New("no session")
	}
	handler, server, capture := newTestProxy(t, transform)
	allowBatch(server)

	rec := postBatch(t, handler, `{"items": [{"path": "app/allow"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if n := capture.CountPath("/data_batch"); n != 0 {
		t.Errorf("rejected batch reached the upstream %d times", n)
	}
}

func TestProxyEmptyBatch(t *testing.T) {
	t.Parallel()
	handler, _, _ := newTestProxy(t, nil)

	rec := postBatch(t, handler, `{"items": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"result":[]}` {
		t.Errorf("body = %q, want an empty result array", got)
	}
}

func TestProxyRejectsNonPost(t *testing.T) {
	t.Parallel()
	handler, _, _ := newTestProxy(t, nil)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestProxyMalformedBody(t *testing.T) {
	t.Parallel()
	handler, _, _ := newTestProxy(t, nil)

	rec := postBatch(t, handler, `{"items": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProxyUpstreamStatusPassthrough(t *testing.T) {
	t.Parallel()
	handler, server, _ := newTestProxy(t, nil)
	server.Status("POST", "/data_batch", http.StatusUnauthorized, `{"error": "bad token"}`)

	rec := postBatch(t, handler, `{"items": [{"path": "app/allow"}]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want the upstream 401 passed through", rec.Code)
	}
}
