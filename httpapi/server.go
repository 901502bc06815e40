package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/internal/markdown"
	"pkt.systems/forgecode/internal/vfs"
	"pkt.systems/forgecode/schema"
)

// Workspaces resolves browser workspaces. *core.Manager satisfies it.
type Workspaces interface {
	Create(ctx context.Context) (*core.Workspace, error)
	Open(ctx context.Context, id schema.WorkspaceID) (*core.Workspace, error)
}

// Server serves the HTTP API.
type Server struct {
	cfg        Config
	workspaces Workspaces
	hub        *Hub
	proxy      *proxy
	basePath   string
}

// NewServer constructs an HTTP server. doer carries proxied backend requests.
func NewServer(cfg Config, workspaces Workspaces, hub *Hub, doer execclient.Doer) (*Server, error) {
	if workspaces == nil {
		return nil, errors.New("workspaces are required")
	}
	if hub == nil {
		hub = NewHub(0)
	}
	if strings.TrimSpace(cfg.Cookie) == "" {
		cfg.Cookie = defaultCookie
	}
	if cfg.InitialTranscriptLines <= 0 {
		cfg.InitialTranscriptLines = defaultInitialLines
	}
	cfg.ProxyPrefix = normalizeBasePath(cfg.ProxyPrefix)
	if cfg.ProxyPrefix == "" {
		cfg.ProxyPrefix = defaultProxyPrefix
	}
	p, err := newProxy(cfg.BackendURL, cfg.ProxyPrefix, doer)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:        cfg,
		workspaces: workspaces,
		hub:        hub,
		proxy:      p,
		basePath:   normalizeBasePath(cfg.BasePath),
	}, nil
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files", s.requireWorkspace(s.handleFiles))
	mux.HandleFunc("/api/files/content", s.requireWorkspace(s.handleFileContent))
	mux.HandleFunc("/api/files/rename", s.requireWorkspace(s.handleRename))
	mux.HandleFunc("/api/files/delete", s.requireWorkspace(s.handleDelete))
	mux.HandleFunc("/api/files/clear", s.requireWorkspace(s.handleClear))
	mux.HandleFunc("/api/files/select", s.requireWorkspace(s.handleSelect))
	mux.HandleFunc("/api/files/search", s.requireWorkspace(s.handleSearch))
	mux.HandleFunc("/api/filetypes", s.handleFileTypes)
	mux.HandleFunc("/api/preview", s.requireWorkspace(s.handlePreview))
	mux.HandleFunc("/api/markdown", s.requireWorkspace(s.handleMarkdown))
	mux.HandleFunc("/api/console/submit", s.requireWorkspace(s.handleSubmit))
	mux.HandleFunc("/api/console/transcript", s.requireWorkspace(s.handleTranscript))
	mux.HandleFunc("/api/console/stream", s.requireWorkspace(s.handleStream))
	mux.Handle(s.cfg.ProxyPrefix, s.proxy)
	mux.Handle(s.cfg.ProxyPrefix+"/", s.proxy)

	return mountUnder(s.basePath, withRequestLogging(mux, s.lookupWorkspace))
}

type fileEntry struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected,omitempty"`
}

type filesResponse struct {
	Files    []fileEntry `json:"files"`
	Selected string      `json:"selected"`
	Count    int         `json:"count"`
	WebCount int         `json:"web_count"`
}

func listFiles(store *vfs.Store) filesResponse {
	names := store.List()
	selected := store.Selected()
	files := make([]fileEntry, 0, len(names))
	for _, name := range names {
		files = append(files, fileEntry{Name: name, Selected: name == selected})
	}
	count, web := store.Counts()
	return filesResponse{Files: files, Selected: selected, Count: count, WebCount: web}
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, listFiles(ws.Files))
	case http.MethodPost:
		var payload struct {
			Type string `json:"type"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		fileType, err := vfs.ParseFileType(payload.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := ws.Files.NewFile(fileType)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		logx.Ctx(r.Context()).Info("http file created", "type", fileType, "files", created)
		writeJSON(w, http.StatusCreated, map[string]any{"created": created, "selected": ws.Files.Selected()})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	switch r.Method {
	case http.MethodGet:
		name := r.URL.Query().Get("name")
		content, ok := ws.Files.Read(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrFileNotFound, name))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name, "content": content})
	case http.MethodPut:
		var payload struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !ws.Files.Write(payload.Name, payload.Content) {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrFileNotFound, payload.Name))
			return
		}
		logx.Ctx(r.Context()).Debug("http file saved", "file", payload.Name, "bytes", len(payload.Content))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := ws.Files.Rename(payload.Old, payload.New); err != nil {
		logx.Ctx(r.Context()).Warn("http file rename failed", "old", payload.Old, "new", payload.New, "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, listFiles(ws.Files))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !ws.Files.Delete(payload.Name) {
		logx.Ctx(r.Context()).Debug("http file delete ignored", "file", payload.Name, "reason", "missing")
	}
	writeJSON(w, http.StatusOK, listFiles(ws.Files))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws.Files.ClearAll()
	logx.Ctx(r.Context()).Info("http files cleared")
	writeJSON(w, http.StatusOK, listFiles(ws.Files))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !ws.Files.Select(payload.Name) {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrFileNotFound, payload.Name))
		return
	}
	writeJSON(w, http.StatusOK, listFiles(ws.Files))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": ws.Files.Search(r.URL.Query().Get("q"))})
}

type fileTypeEntry struct {
	Type        vfs.FileType `json:"type"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
}

func (s *Server) handleFileTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	types := vfs.MatchFileTypes(r.URL.Query().Get("q"))
	entries := make([]fileTypeEntry, 0, len(types))
	for _, t := range types {
		entries = append(entries, fileTypeEntry{Type: t, Label: t.Label(), Description: t.Description()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": entries})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	theme, ok := schema.NormalizeThemeName(r.URL.Query().Get("theme"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown theme", schema.ErrInvalidRequest))
		return
	}
	doc, err := ws.Files.Preview(r.URL.Query().Get("group"), theme)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeHTML(w, doc)
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	theme, ok := schema.NormalizeThemeName(r.URL.Query().Get("theme"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown theme", schema.ErrInvalidRequest))
		return
	}
	name := r.URL.Query().Get("name")
	content, found := ws.Files.Read(name)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", schema.ErrFileNotFound, name))
		return
	}
	writeHTML(w, markdown.RenderHTML(content, theme))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Line string `json:"line"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logx.Ctx(r.Context()).Debug("http console submit", "input", logx.PreviewText(payload.Line, 60))
	_ = ws.Console.Submit(r.Context(), payload.Line)
	writeJSON(w, http.StatusAccepted, map[string]any{"mode": ws.Console.Mode(), "busy": ws.Console.Busy()})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), s.cfg.InitialTranscriptLines)
	writeJSON(w, http.StatusOK, ws.Console.Snapshot(limit))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var (
		ch          <-chan StreamEvent
		unsubscribe func()
		seq         uint64
	)
	snapshot := ws.Console.SnapshotWith(s.cfg.InitialTranscriptLines, func() {
		ch, unsubscribe, seq = s.hub.Subscribe(ws.ID)
	})
	defer unsubscribe()

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replay := s.replayFrom(ws.ID, lastID, seq)
	if replay == nil {
		_ = writeSSEvent(w, StreamEvent{
			Seq:       seq,
			Type:      streamSnapshot,
			Snapshot:  &snapshot,
			Timestamp: time.Now(),
		})
	}
	for _, event := range replay {
		_ = writeSSEvent(w, event)
	}
	flusher.Flush()

	log.Info("http stream opened", "last_id", lastID, "replay", len(replay), "lines", len(snapshot.Lines))
	last := seq
	for {
		select {
		case <-r.Context().Done():
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				log.Info("http stream closed", "reason", "workspace gone")
				return
			}
			if event.Seq > last+1 {
				missed := s.hub.Replay(ws.ID, last, event.Seq-1)
				if uint64(len(missed)) != event.Seq-1-last {
					// The client reconnects with Last-Event-ID and gets a snapshot.
					log.Warn("http stream resync", "last", last, "next", event.Seq)
					return
				}
				for _, m := range missed {
					_ = writeSSEvent(w, m)
				}
			}
			_ = writeSSEvent(w, event)
			last = event.Seq
			flusher.Flush()
		}
	}
}

// replayFrom returns the events a reconnecting client missed, or nil when the
// gap cannot be filled from history and a snapshot must be sent instead.
func (s *Server) replayFrom(id schema.WorkspaceID, lastID, seq uint64) []StreamEvent {
	if lastID == 0 || lastID > seq {
		return nil
	}
	if lastID == seq {
		return []StreamEvent{}
	}
	events := s.hub.Replay(id, lastID, seq)
	if len(events) == 0 || events[0].Seq != lastID+1 {
		return nil
	}
	return events
}

func (s *Server) requireWorkspace(next func(http.ResponseWriter, *http.Request, *core.Workspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		var (
			ws  *core.Workspace
			err error
		)
		if id := s.workspaceCookie(r); id != "" {
			ws, err = s.workspaces.Open(r.Context(), id)
		} else {
			ws, err = s.workspaces.Create(r.Context())
			if err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     s.cfg.Cookie,
					Value:    string(ws.ID),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				log.Info("http workspace assigned", "workspace", ws.ID)
			}
		}
		if err != nil {
			log.Warn("http workspace unavailable", "err", err)
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		log = log.With("workspace", ws.ID)
		ctx := logx.ContextWithWorkspaceLogger(r.Context(), log, ws.ID)
		next(w, r.WithContext(ctx), ws)
	}
}

// workspaceCookie returns the workspace id carried by the request, if it is
// a well formed id.
func (s *Server) workspaceCookie(r *http.Request) schema.WorkspaceID {
	cookie, err := r.Cookie(s.cfg.Cookie)
	if err != nil {
		return ""
	}
	parsed, err := uuid.Parse(strings.TrimSpace(cookie.Value))
	if err != nil {
		return ""
	}
	return schema.WorkspaceID(parsed.String())
}

func (s *Server) lookupWorkspace(r *http.Request) schema.WorkspaceID {
	if s == nil || r == nil {
		return ""
	}
	return s.workspaceCookie(r)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrFileNotFound), errors.Is(err, schema.ErrWorkspaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrFileExists):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalidName), errors.Is(err, schema.ErrInvalidRequest), errors.Is(err, schema.ErrUnknownFileType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeHTML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
