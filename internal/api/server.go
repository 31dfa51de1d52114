// Package api exposes the metadata inspector over HTTP for a directory of
// stream files.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/movsoftware/silk-sub021/internal/config"
	"github.com/movsoftware/silk-sub021/internal/flowfile"
	"github.com/movsoftware/silk-sub021/internal/inspect"
)

// Server serves stream metadata for every file under a root directory.
type Server struct {
	root   string
	router *mux.Router
}

// NewServer builds the HTTP handler tree.
func NewServer(cfg config.APIConfig) *Server {
	s := &Server{root: cfg.RootPath, router: mux.NewRouter()}
	s.router.HandleFunc("/api/v1/streams", s.listStreamsHandler).Methods("GET")
	s.router.HandleFunc("/api/v1/streams/{name}", s.streamInfoHandler).Methods("GET")
	return s
}

// Router returns the handler for an http.Server.
func (s *Server) Router() http.Handler { return s.router }

type streamEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (s *Server) listStreamsHandler(w http.ResponseWriter, r *http.Request) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	streams := make([]streamEntry, 0)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		streams = append(streams, streamEntry{Name: de.Name(), Size: info.Size()})
	}
	writeJSON(w, streams)
}

type streamInfo struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
	Order  []string          `json:"order"`
}

func (s *Server) streamInfoHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.Error(w, "invalid stream name", http.StatusBadRequest)
		return
	}

	var fields []string
	if raw := r.URL.Query().Get("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}
	opts := inspect.Options{Scan: r.URL.Query().Get("scan") == "1"}

	entries, err := inspect.File(filepath.Join(s.root, name), fields, opts)
	switch {
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "no such stream", http.StatusNotFound)
		return
	case errors.Is(err, flowfile.ErrMalformedHeader):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	info := streamInfo{Name: name, Fields: make(map[string]string, len(entries))}
	for _, e := range entries {
		info.Fields[e.Field] = e.Value
		info.Order = append(info.Order, e.Field)
	}
	writeJSON(w, info)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
