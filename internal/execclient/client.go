// Package execclient talks to the remote code execution backend.
package execclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pkt.systems/forgecode/internal/version"
	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the backend client.
type Config struct {
	BaseURL        string
	VCPU           float64
	Memory         string
	SessionTimeout time.Duration
}

// Default session sizing requested from the backend.
const (
	DefaultVCPU   = 0.25
	DefaultMemory = "512m"
)

// RunRequest describes one execution.
type RunRequest struct {
	SessionID schema.VMID
	Language  schema.Language
	Code      string
}

// Client opens sessions and execution streams against the backend.
type Client struct {
	baseURL string
	cfg     Config
	doer    Doer
}

// New constructs a client. A nil doer uses http.DefaultClient.
func New(cfg Config, doer Doer) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend base url must include scheme and host: %q", cfg.BaseURL)
	}
	if cfg.VCPU <= 0 {
		cfg.VCPU = DefaultVCPU
	}
	if strings.TrimSpace(cfg.Memory) == "" {
		cfg.Memory = DefaultMemory
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: base, cfg: cfg, doer: doer}, nil
}

// CreateSession asks the backend for a new execution session.
func (c *Client) CreateSession(ctx context.Context) (schema.VMID, error) {
	log := pslog.Ctx(ctx)
	if c.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SessionTimeout)
		defer cancel()
	}
	payload, err := json.Marshal(map[string]any{
		"vcpu":   c.cfg.VCPU,
		"memory": c.cfg.Memory,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vm", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.doer.Do(req)
	if err != nil {
		log.Warn("exec session create failed", "err", err)
		return "", err
	}
	defer closeBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("exec session create rejected", "status", resp.StatusCode)
		return "", fmt.Errorf("failed to create session: %d %s", resp.StatusCode, statusText(resp))
	}
	if resp.Body == nil {
		return "", fmt.Errorf("failed to create session: %w", schema.ErrSessionUnavailable)
	}
	var decoded struct {
		VMID string `json:"vm_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Warn("exec session decode failed", "err", err)
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	id := strings.TrimSpace(decoded.VMID)
	if id == "" {
		return "", fmt.Errorf("failed to create session: %w", schema.ErrSessionUnavailable)
	}
	log.Info("exec session created", "vm", id)
	return schema.VMID(id), nil
}

// Run starts an execution and returns its output stream. Only transport
// failures are returned as errors; backend rejections surface as a single
// synthetic record on the stream.
func (c *Client) Run(ctx context.Context, run RunRequest) (*Stream, error) {
	if run.SessionID == "" {
		return nil, schema.ErrSessionUnavailable
	}
	language := run.Language
	if language == "" {
		language = schema.LanguagePython
	}
	log := pslog.Ctx(ctx).With("vm", run.SessionID, "language", language)
	endpoint, err := url.JoinPath(c.baseURL, "vm", string(run.SessionID), string(language))
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{"code": run.Code})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	log.Debug("exec run request", "code_len", len(run.Code))
	resp, err := c.doer.Do(req)
	if err != nil {
		log.Warn("exec run failed", "err", err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		closeBody(resp)
		gone := resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone
		log.Warn("exec run rejected", "status", resp.StatusCode, "session_gone", gone)
		return syntheticStream(gone, fmt.Sprintf("Error: %d %s", resp.StatusCode, statusText(resp))), nil
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		log.Warn("exec run rejected", "reason", "no body")
		return syntheticStream(false, "Error: Unable to read response"), nil
	}
	log.Debug("exec run streaming", "status", resp.StatusCode)
	return newBodyStream(resp.Body), nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
