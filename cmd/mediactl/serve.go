package main

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mediakit/pkg/config"
	"github.com/dmitrymomot/mediakit/pkg/httpserver"
	"github.com/dmitrymomot/mediakit/pkg/logger"
	"github.com/dmitrymomot/mediakit/pkg/media/mediahttp"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the media HTTP API under /api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg httpserver.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			return a.withBackend(cmd, func(b *backend) error {
				reg := prometheus.NewRegistry()
				router := newServeRouter(a, b, reg)
				srv := httpserver.New(cfg, httpserver.WithLogger(a.log.With(logger.Component("http"))))
				return srv.Run(cmd.Context(), router)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env HTTP_ADDR)")
	return cmd
}

// newServeRouter mounts the API, probes and metrics. With local storage it
// also serves the files directory at the path the store builds URLs for
// when MEDIA_BASE_URL is "/".
func newServeRouter(a *app, b *backend, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", httpserver.HealthCheckHandler(a.log))
	r.Get("/readyz", httpserver.HealthCheckHandler(a.log, b.checks...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	api := mediahttp.New(b.store,
		mediahttp.WithLogger(a.log.With(logger.Component("api"))),
		mediahttp.WithMetrics(mediahttp.NewMetrics(reg)),
	)
	r.Mount("/api", api.Router())

	cfg := b.store.Config()
	if (a.settings.Storage == "local" || a.settings.Storage == "") && cfg.FilesDirectory != "" {
		prefix := "/" + cfg.FilesDirectory
		fs := http.FileServer(http.Dir(filepath.Join(cfg.PublicPath, filepath.FromSlash(cfg.FilesDirectory))))
		r.Handle(prefix+"/*", http.StripPrefix(prefix, fs))
	}

	return r
}
