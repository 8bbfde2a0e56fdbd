// Package httpserver runs the small HTTP server the mail worker uses for
// liveness and readiness probes.
//
// Server listens until its context is done and then shuts down within the
// configured timeout. NewProbeRouter serves /livez, which always succeeds, and
// /readyz, which runs each named Check (queue storage ping, for example)
// and answers 503 when any of them fails:
//
//	r := httpserver.NewProbeRouter(log,
//		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	)
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, r) })
//
// Listen failures wrap ErrStart and shutdown failures wrap ErrShutdown.
package httpserver
