package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"applypilot/internal/budget"
	"applypilot/internal/events"
	"applypilot/internal/memory"
	"applypilot/internal/scheduler"
	"applypilot/internal/store"
)

// Archive is the posting archive's read side; *store.DB satisfies it.
type Archive interface {
	ListPostings(ctx context.Context, status string, limit int) ([]store.PostingRow, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type Deps struct {
	Mem      *memory.Store
	Archive  Archive
	Guardian *budget.Guardian
	Sched    *scheduler.Runner
	Hub      *events.Hub
	CfgPath  string // user config.yml; empty disables /config
}

type healthHandler struct{}

func (healthHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type statusHandler struct{ d Deps }

func (h statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"outreach_queued": len(h.d.Mem.OutreachQueue()),
	}
	if h.d.Sched != nil {
		out["paused"] = h.d.Sched.Paused()
		out["cycle_running"] = h.d.Sched.Busy()
	}
	if h.d.Archive != nil {
		counts, err := h.d.Archive.CountByStatus(r.Context())
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "archive_error", err.Error())
			return
		}
		out["postings"] = counts
	}
	if h.d.Guardian != nil {
		out["budget"] = h.d.Guardian.Snapshot()
	}
	WriteJSON(w, http.StatusOK, out)
}

type applicationsHandler struct{ mem *memory.Store }

func (h applicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	WriteJSON(w, http.StatusOK, h.mem.Applications(limit))
}

type postingsHandler struct{ archive Archive }

func (h postingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		WriteError(w, r, http.StatusNotFound, "no_archive", "posting archive not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.archive.ListPostings(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	if rows == nil {
		rows = []store.PostingRow{}
	}
	WriteJSON(w, http.StatusOK, rows)
}

type budgetHandler struct{ guardian *budget.Guardian }

func (h budgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.guardian == nil {
		WriteJSON(w, http.StatusOK, budget.Status{})
		return
	}
	WriteJSON(w, http.StatusOK, h.guardian.Snapshot())
}

type outreachHandler struct{ mem *memory.Store }

func (h outreachHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.mem.OutreachQueue())
}

// DeleteByPath removes a reviewed draft; expects /outreach/{id}.
func (h outreachHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/outreach/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "expected /outreach/{id}")
		return
	}
	if err := h.mem.DropOutreach(id); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "drop_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"dropped": id})
}

type runHandler struct{ sched *scheduler.Runner }

func (h runHandler) Post(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "no_scheduler", "scheduler not running")
		return
	}
	if h.sched.Busy() {
		WriteJSON(w, http.StatusConflict, map[string]any{"queued": false, "reason": "cycle already running"})
		return
	}
	h.sched.Kick()
	WriteJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

type eventsHandler struct{ hub *events.Hub }

func (h eventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	writeSSE(w, events.Make("ping", nil))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, e)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e events.Event) {
	b, _ := json.Marshal(e)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", b)
}
