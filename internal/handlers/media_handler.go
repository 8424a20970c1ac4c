package handlers

import (
	"net/http"
	"path"
	"strings"
)

// MediaHandler serves photos of the local object store. Directories are
// never listed.
type MediaHandler struct {
	prefix string
	root   http.Dir
	files  http.Handler
}

// NewMediaHandler creates a MediaHandler for basePath mounted at prefix
func NewMediaHandler(prefix, basePath string) *MediaHandler {
	root := http.Dir(basePath)
	return &MediaHandler{
		prefix: prefix,
		root:   root,
		files:  http.StripPrefix(prefix, http.FileServer(root)),
	}
}

func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + strings.TrimPrefix(r.URL.Path, h.prefix))
	f, err := h.root.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	info, err := f.Stat()
	f.Close()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	h.files.ServeHTTP(w, r)
}
