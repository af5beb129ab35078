// Package httpserver runs the media HTTP API with graceful shutdown and
// exposes health probe handlers.
//
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	mux.Get("/healthz", httpserver.HealthCheckHandler(log))
//	mux.Get("/readyz", httpserver.HealthCheckHandler(log, httpserver.Check{
//		Name:  "postgres",
//		Probe: pg.Healthcheck(pool),
//	}))
//	err := srv.Run(ctx, mux)
package httpserver
