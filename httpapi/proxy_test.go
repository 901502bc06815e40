package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/schema"
)

type stubWorkspaces struct{}

func (stubWorkspaces) Create(context.Context) (*core.Workspace, error) {
	return nil, schema.ErrWorkspaceNotFound
}

func (stubWorkspaces) Open(context.Context, schema.WorkspaceID) (*core.Workspace, error) {
	return nil, schema.ErrWorkspaceNotFound
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newProxyHandler(t *testing.T, backend string, doer doerFunc) http.Handler {
	t.Helper()
	hub := NewHub(0)
	var d execclient.Doer
	if doer != nil {
		d = doer
	}
	srv, err := NewServer(Config{BackendURL: backend}, stubWorkspaces{}, hub, d)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler()
}

func TestProxyRouteAnswersGet(t *testing.T) {
	handler := newProxyHandler(t, "http://backend.invalid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Proxy route is working") {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestProxyForwardsJSON(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/vm" || r.URL.RawQuery != "x=1" {
			t.Errorf("unexpected upstream request %s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"vcpu":0.25}` {
			t.Errorf("unexpected upstream body %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"vm_uuid":"abc"}`)
	}))
	defer backend.Close()

	handler := newProxyHandler(t, backend.URL, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/proxy/vm?x=1", strings.NewReader(`{"vcpu":0.25}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected upstream status, got %d", rec.Code)
	}
	if rec.Body.String() != `{"vm_uuid":"abc"}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestProxyStreamsExecutionOutput(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "data: 0\n")
		flusher.Flush()
		_, _ = io.WriteString(w, "data: 1\n")
	}))
	defer backend.Close()

	handler := newProxyHandler(t, backend.URL, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/proxy/vm/abc/python", strings.NewReader(`{"code":"print(0)"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("expected plain text, got %q", ct)
	}
	if rec.Body.String() != "data: 0\ndata: 1\n" {
		t.Fatalf("expected raw passthrough, got %q", rec.Body.String())
	}
}

func TestProxyRejectsNonJSONResponses(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	}))
	defer backend.Close()

	handler := newProxyHandler(t, backend.URL, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/vm/abc", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), proxyFailure) {
		t.Fatalf("expected 500, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProxyUpstreamFailure(t *testing.T) {
	handler := newProxyHandler(t, "http://backend.invalid", func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/proxy/vm", strings.NewReader(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestProxyRejectsOtherMethods(t *testing.T) {
	handler := newProxyHandler(t, "http://backend.invalid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/proxy/vm/abc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestIsExecutionPath(t *testing.T) {
	cases := map[string]bool{
		"/vm/abc/python": true,
		"/vm/abc/lua":    true,
		"/vm/abc":        false,
		"/vm//python":    false,
		"/vms/abc/lua":   false,
		"/vm/abc/ruby":   false,
	}
	for path, want := range cases {
		if got := isExecutionPath(path); got != want {
			t.Fatalf("expected isExecutionPath(%q)=%v, got %v", path, want, got)
		}
	}
}

func TestNewServerRejectsBadBackend(t *testing.T) {
	if _, err := NewServer(Config{BackendURL: "localhost"}, stubWorkspaces{}, nil, nil); err == nil {
		t.Fatalf("expected error for backend without scheme")
	}
}
