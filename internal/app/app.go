package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/config"
	apierrors "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/errors"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/infrastructure"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
	customMiddleware "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/middleware"
	handlers "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/transport/http"
	ws "github.com/gokulwholesaleinc-web/zamutints-sub000/internal/websocket"
)

const systemMetricsInterval = 30 * time.Second

// Module is an admin or public area of the booking API that lives outside
// this repository. Admin modules are mounted under /api/admin/<Name> behind
// the license guards; public modules under /api/<Name> with only the soft
// status check.
type Module struct {
	Name string
	// Feature, when set, must be granted by the license.
	Feature string
	Public  bool
	Routes  http.Handler
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Gate          *license.Gate
	WebSocketHub  *ws.Hub
	Router        *chi.Mux
	Server        *http.Server

	modules       []Module
	gateOptions   []license.GateOption
	errorHandler  *apierrors.ErrorHandler
	systemMetrics *infrastructure.SystemMetricsCollector
}

// Option customizes an Application before it is wired.
type Option func(*Application)

// WithLogger replaces the process logger built from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.Logger = logger }
}

// WithModules mounts external route modules.
func WithModules(modules ...Module) Option {
	return func(a *Application) { a.modules = append(a.modules, modules...) }
}

// WithGateOptions passes options to the license gate.
func WithGateOptions(opts ...license.GateOption) Option {
	return func(a *Application) { a.gateOptions = append(a.gateOptions, opts...) }
}

// NewApplication wires every component for cfg. Nothing touches the network
// until Start.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	a := &Application{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		logging := cfg.Logging
		logging.FilePath = cfg.ResolveLogFile()
		logger, err := infrastructure.InitializeLogger(logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.Logger = logger
	}

	a.Logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("env", cfg.Env))

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	a.createServer()
	return a, nil
}

// initializeServices builds the license gate and the status hub.
func (a *Application) initializeServices() error {
	licenseMetrics, err := license.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create license metrics: %w", err)
	}
	gateOpts := append([]license.GateOption{
		license.WithGateLogger(a.Logger),
		license.WithGateMetrics(licenseMetrics),
	}, a.gateOptions...)
	a.Gate = license.NewGate(license.GateConfigFrom(a.Config), gateOpts...)

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Gate.Status, a.Logger, ws.WithHubMetrics(wsMetrics))
	a.Gate.Subscribe(a.WebSocketHub.OnLicenseEvent)

	if a.Config.Telemetry.EnableMetrics {
		collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, systemMetricsInterval)
		if err != nil {
			return fmt.Errorf("failed to create system metrics: %w", err)
		}
		a.systemMetrics = collector
	}

	a.errorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.IsDevelopment())
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// Minimal middleware first; these do not wrap the ResponseWriter, so the
	// websocket upgrade below still sees a hijackable writer.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		Handle(config.WebSocketEndpoint, handlers.NewWebSocketHandler(a.WebSocketHub, a.Config.WebSocket, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return err
	}

	// RequestID → RealIP → OTel → logging/recovery → security headers
	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(apierrors.NewErrorMiddleware(a.errorHandler, a.Logger).Handler)
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		a.setupAPIRoutes(r)
	})

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	guard := customMiddleware.NewLicenseGuard(a.Gate, a.errorHandler, a.Gate.Metrics(), a.Logger, a.Config.IsDevelopment())

	healthHandler := handlers.NewHealthHandler(a.Gate.Status, a.WebSocketHub, a.Logger)
	r.Get(config.HealthEndpoint, healthHandler.HealthCheck)
	r.Get(config.HealthEndpoint+"/ready", healthHandler.ReadinessCheck)
	r.Get(config.HealthEndpoint+"/live", healthHandler.LivenessCheck)

	licenseHandler := handlers.NewLicenseHandler(a.Gate, a.errorHandler, a.Logger)
	r.With(guard.CheckLicenseStatus).Get(config.APIBasePath+"/license/status", licenseHandler.PublicStatus)

	// The admin license routes stay reachable while the license is invalid;
	// that is how an operator recovers.
	limiter := customMiddleware.NewRateLimiter(
		a.Config.Security.ActivationRPS,
		a.Config.Security.ActivationBurst,
		a.errorHandler,
		a.Logger,
	)
	r.Mount(config.AdminBasePath+"/license", licenseHandler.AdminRoutes(limiter.Handler))

	for _, m := range a.modules {
		a.mountModule(r, guard, m)
	}
}

func (a *Application) mountModule(r chi.Router, guard *customMiddleware.LicenseGuard, m Module) {
	if m.Public {
		r.With(guard.CheckLicenseStatus).Mount(config.APIBasePath+"/"+m.Name, m.Routes)
		a.Logger.Debug("Public module mounted", slog.String("module", m.Name))
		return
	}

	chain := chi.Chain(chimiddleware.Timeout(a.Config.Server.WriteTimeout), guard.RequireLicense)
	if m.Feature != "" {
		chain = append(chain, guard.RequireFeature(m.Feature))
	}
	r.With(chain...).Mount(config.AdminBasePath+"/"+m.Name, m.Routes)
	a.Logger.Debug("Admin module mounted",
		slog.String("module", m.Name),
		slog.String("feature", m.Feature))
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start initializes the license and starts the status hub. A missing key
// outside development mode is fatal. A refused or unreachable license is
// not: the process keeps serving public routes and the admin license
// endpoints so the key can be fixed without a restart.
func (a *Application) Start(ctx context.Context) error {
	status, err := a.Gate.Init(ctx)
	switch {
	case errors.Is(err, license.ErrMissingLicenseKey):
		return fmt.Errorf("license initialization failed: %w", err)
	case err != nil:
		a.Logger.WarnContext(ctx, "Serving without a valid license",
			slog.String("error", license.Reason(err)),
			slog.String("code", license.ErrorCode(err)))
	}

	a.WebSocketHub.Start()

	a.Logger.InfoContext(ctx, "Application started",
		slog.Int("port", a.Config.Server.Port),
		slog.Bool("license_valid", status.Valid),
		slog.String("license_state", status.State.String()))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()
	a.Gate.Shutdown(shutdownCtx)

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run starts the application and serves until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.systemMetrics != nil {
		g.Go(func() error {
			a.systemMetrics.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}
