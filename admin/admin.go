// Package admin serves the operator HTTP endpoints: Prometheus metrics, the
// live connection list and a stop trigger.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gstoney/mclimbo/server"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Connections *server.Connections
	Gatherer    prometheus.Gatherer
	// Stop is called by POST /stop. Nil disables the endpoint.
	Stop func()
	Log  *zap.SugaredLogger
}

// NewHandler builds the admin router.
func NewHandler(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/connections", func(w http.ResponseWriter, _ *http.Request) {
		list := make([]server.ConnInfo, 0, opts.Connections.Len())
		opts.Connections.ForEach(func(c *server.Conn) {
			list = append(list, c.Info())
		})
		writeJSON(w, opts.Log, list)
	})
	r.Get("/connections/{id}", func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookup(opts.Connections, chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, "no such connection", http.StatusNotFound)
			return
		}
		writeJSON(w, opts.Log, c.Info())
	})
	r.Post("/connections/{id}/kick", func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookup(opts.Connections, chi.URLParam(r, "id"))
		if !ok {
			http.Error(w, "no such connection", http.StatusNotFound)
			return
		}
		reason := r.URL.Query().Get("reason")
		if reason == "" {
			reason = "Kicked"
		}
		if err := c.Disconnect(reason); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		opts.Log.Infow("kicked connection", "conn", c.ID(), "reason", reason)
		w.WriteHeader(http.StatusAccepted)
	})
	if opts.Stop != nil {
		r.Post("/stop", func(w http.ResponseWriter, _ *http.Request) {
			opts.Log.Infow("stop requested over admin endpoint")
			w.WriteHeader(http.StatusAccepted)
			go opts.Stop()
		})
	}
	return r
}

// ListenAndServe serves h on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("admin endpoint listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func lookup(conns *server.Connections, raw string) (*server.Conn, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return conns.Get(id)
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("writing admin response", "error", err)
	}
}
