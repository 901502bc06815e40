package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/internal/logx"
)

const proxyFailure = "Internal server error"

// proxy forwards browser calls under a prefix to the execution backend.
// Execution endpoints are streamed through as plain text; everything else
// must be JSON.
type proxy struct {
	base   *url.URL
	prefix string
	doer   execclient.Doer
}

func newProxy(baseURL, prefix string, doer execclient.Doer) (*proxy, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:5000"
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url must include scheme and host: %q", baseURL)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &proxy{base: base, prefix: prefix, doer: doer}, nil
}

func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, p.prefix)
	log := logx.Ctx(r.Context()).With("proxy_path", path)
	switch r.Method {
	case http.MethodGet:
		if path == "" || path == "/" {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Proxy route is working"})
			return
		}
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	target := p.base.String() + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	var body io.Reader
	if r.Method == http.MethodPost {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		log.Warn("http proxy request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": proxyFailure})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	log.Debug("http proxy forward", "method", r.Method, "target", target)

	resp, err := p.doer.Do(req)
	if err != nil {
		log.Warn("http proxy upstream failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": proxyFailure})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if r.Method == http.MethodPost && isExecutionPath(path) {
		p.stream(w, r, resp)
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(data) {
		if err == nil {
			err = errors.New("upstream response is not json")
		}
		log.Warn("http proxy upstream invalid", "status", resp.StatusCode, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": proxyFailure})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

// stream copies an execution response to the client, flushing after every read.
func (p *proxy) stream(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	buf := make([]byte, 4096)
	var total int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logx.Ctx(r.Context()).Debug("http proxy client gone", "err", werr)
				return
			}
			total += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && r.Context().Err() == nil {
				logx.Ctx(r.Context()).Warn("http proxy stream failed", "err", err, "bytes", total)
			}
			return
		}
	}
}

// isExecutionPath reports whether path is /vm/<id>/python or /vm/<id>/lua.
func isExecutionPath(path string) bool {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "vm" || parts[1] == "" {
		return false
	}
	return parts[2] == "python" || parts[2] == "lua"
}
