package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/schema"
)

func TestManagerOpenReusesWorkspace(t *testing.T) {
	m := NewManager(ManagerConfig{}, SessionDeps{Runner: &fakeRunner{}})
	defer m.Close()
	ctx := context.Background()
	first, err := m.Open(ctx, "ws-a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := m.Open(ctx, " ws-a ")
	if err != nil {
		t.Fatalf("open again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same workspace")
	}
	if got := first.Files.List(); !reflect.DeepEqual(got, []string{"app.py"}) {
		t.Fatalf("expected default app.py, got %v", got)
	}
}

func TestManagerCreateAssignsFreshIDs(t *testing.T) {
	m := NewManager(ManagerConfig{}, SessionDeps{})
	defer m.Close()
	a, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if len(m.List()) != 2 {
		t.Fatalf("expected two workspaces, got %v", m.List())
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(ManagerConfig{}, SessionDeps{})
	defer m.Close()
	ctx := context.Background()
	if _, err := m.Open(ctx, "ws-a"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := m.Remove(ctx, "ws-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ids := m.List(); len(ids) != 0 {
		t.Fatalf("expected no workspaces after remove, got %v", ids)
	}
	if err := m.Remove(ctx, "ws-a"); !errors.Is(err, schema.ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

type forgetSink struct {
	forgotten []schema.WorkspaceID
}

func (s *forgetSink) OnConsoleEvent(schema.ConsoleEvent) {}

func (s *forgetSink) ForgetWorkspace(id schema.WorkspaceID) {
	s.forgotten = append(s.forgotten, id)
}

func TestManagerForgetsWorkspaceOnSink(t *testing.T) {
	sink := &forgetSink{}
	m := NewManager(ManagerConfig{}, SessionDeps{EventSink: sink})
	ctx := context.Background()
	for _, id := range []schema.WorkspaceID{"ws-a", "ws-b"} {
		if _, err := m.Open(ctx, id); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
	}
	if err := m.Remove(ctx, "ws-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(sink.forgotten) != 1 || sink.forgotten[0] != "ws-a" {
		t.Fatalf("expected ws-a to be forgotten, got %v", sink.forgotten)
	}
	m.Close()
	if len(sink.forgotten) != 2 || sink.forgotten[1] != "ws-b" {
		t.Fatalf("expected close to forget ws-b, got %v", sink.forgotten)
	}
}

func TestManagerRejectsEmptyID(t *testing.T) {
	m := NewManager(ManagerConfig{}, SessionDeps{})
	defer m.Close()
	if _, err := m.Open(context.Background(), "  "); !errors.Is(err, schema.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestWorkspaceConsoleRunsWorkspaceFiles(t *testing.T) {
	var code string
	runner := &fakeRunner{runFn: func(_ context.Context, req execclient.RunRequest) (Stream, error) {
		code = req.Code
		return newFakeStream(false, "0"), nil
	}}
	m := NewManager(ManagerConfig{WhoAmI: "dev"}, SessionDeps{Runner: runner})
	defer m.Close()
	ws, err := m.Open(context.Background(), "ws-a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ws.Files.Write("app.py", "print(0)")
	ws.Console.SubmitLine(context.Background(), "python app.py")
	if code != "print(0)" {
		t.Fatalf("expected workspace file to run, got %q", code)
	}
	ws.Console.SubmitLine(context.Background(), "whoami")
	got := ws.Console.Transcript()
	if got[len(got)-1] != "dev" {
		t.Fatalf("expected configured whoami, got %v", got)
	}
}
