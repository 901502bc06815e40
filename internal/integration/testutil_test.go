package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/httpapi"
	"pkt.systems/forgecode/internal/eventbus"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/internal/persist"
	"pkt.systems/forgecode/schema"
	"pkt.systems/forgecode/sshserver"
)

// fakeBackend speaks the execution backend protocol: POST /vm opens a
// session and POST /vm/{id}/{language} streams one record per code line.
type fakeBackend struct {
	mu      sync.Mutex
	creates int
	runs    []string
	gone    map[string]bool
	server  *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{gone: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /vm", b.handleCreate)
	mux.HandleFunc("POST /vm/{id}/{language}", b.handleRun)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.creates++
	id := fmt.Sprintf("vm-%d", b.creates)
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"vm_id": id})
}

func (b *fakeBackend) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	gone := b.gone[id]
	if !gone {
		b.runs = append(b.runs, r.PathValue("language")+":"+payload.Code)
	}
	b.mu.Unlock()
	if gone {
		http.Error(w, "no such vm", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range strings.Split(payload.Code, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s -> %s\n", id, line)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func (b *fakeBackend) expire(id string) {
	b.mu.Lock()
	b.gone[id] = true
	b.mu.Unlock()
}

func (b *fakeBackend) stats() (int, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, append([]string(nil), b.runs...)
}

type testEnv struct {
	backend  *fakeBackend
	manager  *core.Manager
	bus      *eventbus.Bus
	httpURL  string
	sshAddr  string
	stateDir string
}

// newTestEnv wires the real execution client, session store, HTTP API and
// SSH server against the fake backend. Passing the state dir of an earlier
// env simulates a restart.
func newTestEnv(t *testing.T, backend *fakeBackend, stateDir string) *testEnv {
	t.Helper()
	client, err := execclient.New(execclient.Config{BaseURL: backend.server.URL}, backend.server.Client())
	if err != nil {
		t.Fatalf("exec client: %v", err)
	}
	slots, err := persist.NewStore(stateDir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	hub := httpapi.NewHub(0)
	bus := eventbus.New(nil)
	manager := core.NewManager(core.ManagerConfig{}, core.SessionDeps{
		Runner: core.NewClientRunner(client),
		Slots:  slots,
		EventSink: core.EventSinkFunc(func(ev schema.ConsoleEvent) {
			hub.OnConsoleEvent(ev)
			bus.OnConsoleEvent(ev)
		}),
	})
	httpSrv, err := httpapi.NewServer(httpapi.Config{BackendURL: backend.server.URL}, manager, hub, backend.server.Client())
	if err != nil {
		t.Fatalf("http server: %v", err)
	}
	web := httptest.NewServer(httpSrv.Handler())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	sshSrv := &sshserver.Server{
		HostKeyPath: filepath.Join(stateDir, "host_key"),
		Listener:    listener,
		Workspaces:  manager,
		Events:      bus,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sshSrv.ListenAndServe(ctx) }()

	env := &testEnv{
		backend:  backend,
		manager:  manager,
		bus:      bus,
		httpURL:  web.URL,
		sshAddr:  listener.Addr().String(),
		stateDir: stateDir,
	}
	t.Cleanup(func() { env.shutdown(t, web, cancel, done) })
	return env
}

func (e *testEnv) shutdown(t *testing.T, web *httptest.Server, cancel context.CancelFunc, done <-chan error) {
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ssh server: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("timed out stopping ssh server")
	}
	e.manager.Close()
	web.Close()
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func sendJSON(t *testing.T, client *http.Client, method, url string, payload any, out any) int {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// waitIdle polls the transcript until the console is idle.
func waitIdle(t *testing.T, client *http.Client, baseURL string) schema.TranscriptSnapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		var snap schema.TranscriptSnapshot
		sendJSON(t, client, http.MethodGet, baseURL+"/api/console/transcript?limit=100", nil, &snap)
		if !snap.Busy {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("console still busy: %+v", snap)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func runSSH(t *testing.T, addr, user, command string) string {
	t.Helper()
	client, err := gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            user,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	})
	if err != nil {
		t.Fatalf("ssh dial: %v", err)
	}
	defer func() { _ = client.Close() }()
	session, err := client.NewSession()
	if err != nil {
		t.Fatalf("ssh session: %v", err)
	}
	defer func() { _ = session.Close() }()
	out, err := session.Output(command)
	if err != nil {
		t.Fatalf("ssh %q: %v", command, err)
	}
	return string(out)
}
