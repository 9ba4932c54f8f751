// Package app wires the product lookup HTTP server.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/upc-lookup/internal/api"
	"github.com/xenking/upc-lookup/internal/lookup"
	"github.com/xenking/upc-lookup/pkg/health"
	"github.com/xenking/upc-lookup/pkg/httpmiddleware"
)

const serviceName = "upc-api"

// Run creates all dependencies, starts the HTTP server, and shuts it down
// gracefully once ctx is cancelled. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("endpoint", cfg.DigitEyes.Endpoint),
		zap.String("algorithm", cfg.DigitEyes.Algorithm),
	)

	s, err := newServer(lg, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return s.serve(ctx, ln)
}

// server is the assembled HTTP stack.
type server struct {
	lg     *zap.Logger
	cfg    *Config
	health *health.Health
	http   *http.Server
}

func newServer(lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config) (*server, error) {
	opts, err := cfg.LookupOptions()
	if err != nil {
		return nil, err
	}
	// No WithLogger: the lookup logs through the request-scoped logger.
	client, err := lookup.New(cfg.Credentials(), append(opts,
		lookup.WithTracerProvider(tp),
		lookup.WithMeterProvider(mp),
	)...)
	if err != nil {
		return nil, errors.Wrap(err, "create lookup client")
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddReadinessCheck("credentials", time.Second, health.NonEmptyCheck(map[string]string{
		"app key":  cfg.DigitEyes.AppKey,
		"auth key": cfg.DigitEyes.AuthKey,
	}), health.WithThresholds(1, 1))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	api.NewHandler(client).Register(mux)

	handler := httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument(serviceName, tp, mp),
		httpmiddleware.LogRequests(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
	)

	return &server{
		lg:     lg,
		cfg:    cfg,
		health: healthSvc,
		http: &http.Server{
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
			// A lookup is two sequential upstream requests.
			WriteTimeout:   2*cfg.HTTP.Timeout + 5*time.Second,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
			Handler:        handler,
		},
	}, nil
}

// serve runs the server on ln until ctx is done, then drains: readiness goes
// false, the readiness delay elapses, and in-flight requests get up to the
// shutdown timeout to finish.
func (s *server) serve(ctx context.Context, ln net.Listener) error {
	s.health.Start(ctx, 10*time.Second)
	s.health.SetReady(true)
	defer s.health.Stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.lg.Info("Server listening", zap.Stringer("addr", ln.Addr()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		s.health.SetReady(false)

		delay := s.cfg.Graceful.ReadinessDelay
		s.lg.Info("Readiness set to false, draining", zap.Duration("delay", delay))
		if ctx.Err() != nil {
			// Only wait for load balancers on a requested shutdown.
			time.Sleep(delay)
		}

		timeout := s.cfg.Graceful.ShutdownTimeout
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		s.lg.Info("Shutting down server", zap.Duration("timeout", timeout))
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
