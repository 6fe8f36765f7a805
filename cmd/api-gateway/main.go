package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"api-gateway-go/internal/client"
	"api-gateway-go/internal/config"
	"api-gateway-go/internal/handler"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/middleware"
	"api-gateway-go/internal/registry"
	"api-gateway-go/internal/route"
	"api-gateway-go/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cli struct {
	config.Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Serve      serveCmd  `cmd:"" default:"1" help:"Run the gateway (default)."`
	RouteTable routesCmd `cmd:"" name:"routes" help:"Print the route table."`
	Check      checkCmd  `cmd:"" help:"Probe every registered service and report reachability."`
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var c cli
	ctx := kong.Parse(&c,
		kong.Name("api-gateway"),
		kong.Description("Reverse-proxy API gateway for the chat platform services."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}

type serveCmd struct{}

func (serveCmd) Run(g *config.Globals) error {
	app := fx.New(
		fx.Provide(
			func() *config.Globals { return g },
			config.Load,
			newLogger,
			route.Load,
			registry.New,
			newMetrics,
			newEcho,
			client.NewUpstreamClient,
			service.NewForwarder,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfig, startServer),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

type routesCmd struct{}

func (routesCmd) Run(g *config.Globals) error {
	cfg, err := config.Load(g)
	if err != nil {
		return err
	}
	table, err := route.Load(cfg)
	if err != nil {
		return err
	}
	return table.Describe(os.Stdout)
}

type checkCmd struct {
	Concurrency int `help:"Maximum concurrent probes." default:"4"`
}

type probeResult struct {
	service string
	url     string
	status  int
	elapsed time.Duration
	err     error
}

// Run issues one GET per service base URL. Any HTTP response counts as
// reachable; only transport failures are reported as down.
func (cmd checkCmd) Run(g *config.Globals) error {
	cfg, err := config.Load(g)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	reg, err := registry.New(cfg)
	if err != nil {
		return err
	}
	uc := client.NewUpstreamClient(cfg, logger, nil)

	services := reg.All()
	results := make([]probeResult, len(services))

	eg, ctx := errgroup.WithContext(context.Background())
	eg.SetLimit(max(cmd.Concurrency, 1))
	for i, s := range services {
		i, s := i, s
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, cfg.Upstream.Timeout())
			defer cancel()

			start := time.Now()
			up, err := uc.Do(callCtx, s.Name, http.MethodGet, s.BaseURL.String(), nil, nil)
			res := probeResult{service: s.Name, url: s.BaseURL.String(), elapsed: time.Since(start), err: err}
			if err == nil {
				res.status = up.StatusCode
			}
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SERVICE\tURL\tSTATUS\tLATENCY")
	var down []string
	for _, r := range results {
		status := fmt.Sprint(r.status)
		if r.err != nil {
			status = "unreachable"
			down = append(down, r.service)
			logger.Debug("probe failed", "service", r.service, "err", r.err)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.service, r.url, status, r.elapsed.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(down) > 0 {
		return fmt.Errorf("unreachable services: %s", strings.Join(down, ", "))
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newMetrics(table *route.Table) *metrics.Metrics {
	return metrics.New(table.Prefixes()...)
}

func newEcho(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(logger)

	e.Server.ReadTimeout = 30 * time.Second
	// Chat routes wait up to 300s on the backend, so writes are not bounded here.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	// Pre-router so that router 404/405 responses and preflights are
	// logged, counted and carry CORS headers.
	e.Pre(echomw.Recover())
	e.Pre(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Pre(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Pre(middleware.MetricsMiddleware(m))
	}
	e.Pre(middleware.SecurityHeaders())
	e.Pre(middleware.CORS(cfg.CORS))

	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimiter(cfg.Server.RateLimit))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfig(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
	cfg.WarnInsecure(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting gateway", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down gateway")
			return e.Shutdown(ctx)
		},
	})
}
