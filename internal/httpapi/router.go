package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: healthHandler{}.Get,
	}))
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: statusHandler{d: d}.Get,
	}))
	mux.HandleFunc("/applications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: applicationsHandler{mem: d.Mem}.List,
	}))
	mux.HandleFunc("/postings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: postingsHandler{archive: d.Archive}.List,
	}))
	mux.HandleFunc("/budget", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: budgetHandler{guardian: d.Guardian}.Get,
	}))

	oh := outreachHandler{mem: d.Mem}
	mux.HandleFunc("/outreach", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: oh.List,
	}))
	mux.HandleFunc("/outreach/", methodMux(map[string]http.HandlerFunc{
		http.MethodDelete: oh.DeleteByPath,
	}))

	ch := configHandler{path: d.CfgPath}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))

	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: runHandler{sched: d.Sched}.Post,
	}))
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eventsHandler{hub: d.Hub}.ServeSSE,
	}))

	return mux
}

// NewServer wires the middleware chain and binds loopback only; this
// API carries job-search history and must never listen on 0.0.0.0.
func NewServer(port int, d Deps) *http.Server {
	handler := Chain(NewMux(d), RequestID, Recover, AccessLog, Cors)
	return &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
