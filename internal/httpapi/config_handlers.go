package httpapi

import (
	"io"
	"net/http"
	"os"

	"applypilot/internal/config"

	"gopkg.in/yaml.v3"
)

// configHandler edits the user's config.yml over the local API. PUT
// validates the whole document before SaveAtomic touches the file, so
// a bad edit can never clobber a working config; the previous version
// stays next to it as .bak. Changes apply from the next cycle's load
// on restart.
type configHandler struct {
	path string
}

func (h configHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.path == "" {
		WriteError(w, r, http.StatusNotFound, "no_config", "config editing not wired")
		return
	}
	b, err := os.ReadFile(h.path)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h configHandler) Put(w http.ResponseWriter, r *http.Request) {
	if h.path == "" {
		WriteError(w, r, http.StatusNotFound, "no_config", "config editing not wired")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "read_failed", err.Error())
		return
	}

	var incoming config.Config
	if err := yaml.Unmarshal(body, &incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_yaml", err.Error())
		return
	}
	if err := config.Validate(incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	if err := config.SaveAtomic(h.path, incoming); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"saved": true, "path": h.path})
}
