package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-viewrender/internal/watch"
	"github.com/goliatone/go-viewrender/pkg/csrf"
	"github.com/goliatone/go-viewrender/pkg/debug"
	"github.com/goliatone/go-viewrender/pkg/metrics"
	"github.com/goliatone/go-viewrender/pkg/orchestrator"
	"github.com/goliatone/go-viewrender/pkg/render"
	"github.com/goliatone/go-viewrender/pkg/response"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve views over HTTP",
		Long: `Serve renders GET /views/<controller>/<view> with query parameters as view
parameters ("partial=1" skips the layout, "locale=de" sets the locale).
/metrics exposes Prometheus metrics, /healthz reports liveness and
/debug/renders lists the files rendered since the collector started.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("watch", false, "reload templates when files change")
	cmd.Flags().Bool("csrf", false, "issue CSRF tokens and inject them into views")
	return cmd
}

type server struct {
	gen       *orchestrator.Orchestrator
	registry  *prometheus.Registry
	collector *debug.Collector
	csrf      bool
	cookie    string
	logger    *log.Logger
}

func (a *app) newServer() (*server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := debug.NewCollector()

	gen, err := a.orchestrator(
		orchestrator.WithMetrics(metrics.WithRegistry(registry)),
		orchestrator.WithDebugCollector(collector),
		orchestrator.WithResponseFactory(response.DefaultFactory{ContentType: "text/html; charset=utf-8"}),
	)
	if err != nil {
		return nil, err
	}
	return &server{
		gen:       gen,
		registry:  registry,
		collector: collector,
		csrf:      a.cfg.Injections.CSRF.Enabled,
		cookie:    a.cfg.Injections.CSRF.CookieName,
		logger:    a.logger,
	}, nil
}

func (a *app) runServe(ctx context.Context) error {
	srv, err := a.newServer()
	if err != nil {
		return err
	}
	srv.collector.Startup()
	defer srv.collector.Shutdown()

	if a.cfg.Server.Watch {
		if err := srv.watch(ctx, a.cfg.Templates.Dir, a.cfg.Templates.Extension, a.cfg.Templates.FallbackExtension); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *server) watch(ctx context.Context, dir string, extensions ...string) error {
	engine := s.gen.TemplateEngine()
	if engine == nil {
		s.logger.Warn("watch ignored, templates are not file based")
		return nil
	}
	watcher, err := watch.New(watch.Config{
		Dir:        dir,
		Extensions: extensions,
		Logger:     s.logger,
	}, engine)
	if err != nil {
		return err
	}
	go func() {
		if err := watcher.Run(ctx); err != nil {
			s.logger.Error("watcher stopped", "err", err)
		}
	}()
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/debug/renders", s.handleDebug)

	r.Group(func(r chi.Router) {
		if s.csrf {
			r.Use(csrf.Middleware(s.cookie))
		}
		r.Get("/views/*", s.handleView)
	})
	return r
}

func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(chi.URLParam(r, "*"), "/")
	if name == "" || path.Clean("/"+name) != "/"+name || webview.EscapesBase(name) {
		http.NotFound(w, r)
		return
	}

	controller, view := path.Split(name)
	query := r.URL.Query()
	parameters := make(map[string]any, len(query))
	for key := range query {
		switch key {
		case "partial", "locale":
			continue
		}
		parameters[key] = query.Get(key)
	}

	resp, err := s.gen.Response(r.Context(), orchestrator.Request{
		View:           view,
		ControllerName: strings.Trim(controller, "/"),
		Partial:        query.Get("partial") == "1" || query.Get("partial") == "true",
		Locale:         query.Get("locale"),
		Parameters:     parameters,
	})
	if err != nil {
		s.logger.Error("prepare view", "view", name, "err", err)
		status := http.StatusInternalServerError
		var localeErr *render.LocaleError
		switch {
		case errors.As(err, &localeErr):
			status = http.StatusBadRequest
		case errors.Is(err, webview.ErrOutsideViewPath):
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	if _, err := resp.Body(r.Context()); err != nil {
		s.logger.Error("render view", "view", name, "err", err)
	}
	resp.ServeHTTP(w, r)
}

func (s *server) handleDebug(w http.ResponseWriter, r *http.Request) {
	resp := response.New(func(context.Context) (string, error) {
		var b strings.Builder
		for _, entry := range s.collector.Collected() {
			b.WriteString(entry.File)
			if entry.Error != "" {
				b.WriteString(" error: " + entry.Error)
			}
			b.WriteString("\n")
		}
		return b.String(), nil
	}).WithHeader("Content-Type", "text/plain; charset=utf-8")
	resp.ServeHTTP(w, r)
}
