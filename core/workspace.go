package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/internal/vfs"
	"pkt.systems/forgecode/schema"
)

// Workspace binds a file store to the console that runs its files.
type Workspace struct {
	ID      schema.WorkspaceID
	Files   *vfs.Store
	Console *Session
}

// ManagerConfig applies to every workspace a manager creates.
type ManagerConfig struct {
	Language           schema.Language
	WhoAmI             string
	TranscriptMaxLines int
}

// Manager owns the live workspaces.
type Manager struct {
	cfg  ManagerConfig
	deps SessionDeps

	mu         sync.Mutex
	workspaces map[schema.WorkspaceID]*Workspace
	closed     bool
}

// NewManager constructs an empty workspace manager.
func NewManager(cfg ManagerConfig, deps SessionDeps) *Manager {
	return &Manager{
		cfg:        cfg,
		deps:       deps,
		workspaces: make(map[schema.WorkspaceID]*Workspace),
	}
}

// Create makes a workspace with a fresh id.
func (m *Manager) Create(ctx context.Context) (*Workspace, error) {
	return m.Open(ctx, schema.WorkspaceID(uuid.NewString()))
}

// Open returns the workspace with id, creating it when absent.
func (m *Manager) Open(ctx context.Context, id schema.WorkspaceID) (*Workspace, error) {
	id = schema.WorkspaceID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, fmt.Errorf("%w: empty workspace id", schema.ErrInvalidRequest)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, schema.ErrWorkspaceNotFound
	}
	if ws, ok := m.workspaces[id]; ok {
		return ws, nil
	}
	files := vfs.NewDefault()
	ws := &Workspace{
		ID:    id,
		Files: files,
		Console: NewSession(SessionConfig{
			WorkspaceID:        id,
			Language:           m.cfg.Language,
			WhoAmI:             m.cfg.WhoAmI,
			TranscriptMaxLines: m.cfg.TranscriptMaxLines,
		}, files, m.deps),
	}
	m.workspaces[id] = ws
	logx.WithWorkspace(ctx, id).Info("workspace created")
	return ws, nil
}

// List returns the workspace ids in sorted order.
func (m *Manager) List() []schema.WorkspaceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]schema.WorkspaceID, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Remove closes and forgets a workspace.
func (m *Manager) Remove(ctx context.Context, id schema.WorkspaceID) error {
	m.mu.Lock()
	ws, ok := m.workspaces[id]
	delete(m.workspaces, id)
	m.mu.Unlock()
	if !ok {
		return schema.ErrWorkspaceNotFound
	}
	ws.Console.Close()
	m.forget(id)
	logx.WithWorkspace(ctx, id).Info("workspace removed")
	return nil
}

// Close closes every workspace. Open fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	workspaces := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		workspaces = append(workspaces, ws)
	}
	m.workspaces = make(map[schema.WorkspaceID]*Workspace)
	m.mu.Unlock()
	for _, ws := range workspaces {
		ws.Console.Close()
		m.forget(ws.ID)
	}
}

func (m *Manager) forget(id schema.WorkspaceID) {
	if f, ok := m.deps.EventSink.(WorkspaceForgetter); ok {
		f.ForgetWorkspace(id)
	}
}
