package http

import (
	"bytes"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"ferroci/pkg/contracts"
)

// SPAHandler serves the embedded GUI. index.html is a template that receives
// the version and the endpoints; every other file is served as is.
type SPAHandler struct {
	assets fs.FS
	index  *template.Template
	files  http.Handler
	data   pageData
	logger *slog.Logger
}

type pageData struct {
	AppName    string
	Version    string
	APIVersion string
	WebSocket  string
	RenderedAt string
}

// NewSPAHandler parses index.html from assets
func NewSPAHandler(assets fs.FS, logger *slog.Logger) (*SPAHandler, error) {
	index, err := template.ParseFS(assets, "index.html")
	if err != nil {
		return nil, err
	}
	return &SPAHandler{
		assets: assets,
		index:  index,
		files:  http.FileServer(http.FS(assets)),
		data: pageData{
			AppName:    contracts.AppName,
			Version:    contracts.Version,
			APIVersion: contracts.APIVersion,
			WebSocket:  "/ws",
		},
		logger: logger.With(slog.String("handler", "spa")),
	}, nil
}

// ServeHTTP serves static assets and falls back to index.html for unknown
// paths so client-side routes survive a reload.
func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name != "" && name != "index.html" {
		if info, err := fs.Stat(h.assets, name); err == nil && !info.IsDir() {
			h.files.ServeHTTP(w, r)
			return
		}
	}
	h.serveIndex(w, r)
}

func (h *SPAHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	data := h.data
	data.RenderedAt = time.Now().Format(time.RFC3339)

	var buf bytes.Buffer
	if err := h.index.Execute(&buf, data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render index",
			slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}
