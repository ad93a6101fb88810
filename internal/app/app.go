package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"ferroci/internal/config"
	apierrors "ferroci/internal/errors"
	"ferroci/internal/infrastructure"
	"ferroci/internal/metrics"
	customMiddleware "ferroci/internal/middleware"
	"ferroci/internal/services"
	handlers "ferroci/internal/transport/http"
	ws "ferroci/internal/websocket"
	"ferroci/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Paths           *config.Paths
	Router          *chi.Mux
	Server          *http.Server
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	Metrics         *infrastructure.AnalysisMetrics
	FrontendFS      fs.FS

	errorHandler *apierrors.ErrorHandler
	listener     net.Listener
	serveErr     chan error
}

// Options carries what New needs. A nil Config means config.Default() and a
// nil Logger the global infrastructure logger. Paths and FrontendFS may be nil.
type Options struct {
	Config     *config.Config
	Paths      *config.Paths
	Logger     *slog.Logger
	FrontendFS fs.FS
}

// NewApplication loads configuration and logging for the installed binary
// and builds the application around the embedded frontend
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, paths.ResolveLogFile(cfg.Logging.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(Options{
		Config:     cfg,
		Paths:      paths,
		Logger:     logger,
		FrontendFS: frontendFS,
	})
}

// New creates a new application instance with dependency injection
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("application starting",
		slog.String("name", contracts.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", cfg.Server.Addr()))

	if opts.Paths != nil {
		opts.Paths.LogPathResolution(logger)
	}

	otelProviders, err := infrastructure.InitializeOTel(otelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         opts.Paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		FrontendFS:    opts.FrontendFS,
		errorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up routes: %w", err)
	}
	app.createServer()

	return app, nil
}

// otelConfigFrom maps the telemetry settings onto the exporter names
func otelConfigFrom(t config.TelemetryConfig) *infrastructure.OTelConfig {
	cfg := infrastructure.DefaultOTelConfig()
	if t.ServiceName != "" {
		cfg.ServiceName = t.ServiceName
	}
	cfg.MetricExporter = "none"
	if t.MetricsEnabled {
		cfg.MetricExporter = "prometheus"
	}
	cfg.TraceExporter = "none"
	if t.TraceStdout {
		cfg.TraceExporter = "stdout"
	}
	return cfg
}

// initializeServices wires the metric registry, the hub and the services
func (a *Application) initializeServices() error {
	registry, err := metrics.RegistryFromConfig(a.Config.Analysis)
	if apierrors.IsDuplicateMetric(err) {
		return fmt.Errorf("analysis.metrics lists a metric twice: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to build metric registry: %w", err)
	}

	analysisMetrics, err := infrastructure.NewAnalysisMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create analysis metrics: %w", err)
	}
	a.Metrics = analysisMetrics

	hubMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}

	a.WebSocketHub = ws.NewHub(a.Logger, ws.HubOptions{
		HistorySize: a.Config.WebSocket.HistorySize,
		Metrics:     hubMetrics,
	})

	a.AnalysisService = services.NewAnalysisService(a.Config.Analysis, registry, a.WebSocketHub, analysisMetrics, a.Logger)
	a.HealthService = services.NewHealthService(a.Paths, a.AnalysisService, a.WebSocketHub, a.Logger)

	a.Logger.Info("services initialized",
		slog.Any("metrics", registry.Names()),
		slog.String("alignment", a.Config.Analysis.Alignment))

	return nil
}

// setupRouter configures the HTTP router. /ws and /metrics sit outside the
// main group so no middleware wraps the hijacked or scraped response.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.allowedOrigins(), a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.errorHandler))

	var spa http.Handler
	if a.FrontendFS != nil {
		h, err := handlers.NewSPAHandler(a.FrontendFS, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to load frontend: %w", err)
		}
		spa = h
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.errorHandler))
		r.Use(customMiddleware.SecurityHeaders(a.Config.Security, a.allowedOrigins()))

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Route("/api", a.setupAPIRoutes)

		if spa != nil {
			r.Handle("/*", spa)
		}
	})

	a.Router = r
	return nil
}

// setupAPIRoutes registers the JSON API
func (a *Application) setupAPIRoutes(r chi.Router) {
	if a.Config.Server.RequestTimeout > 0 {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
	}

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/version", healthHandler.Version)

	statusHandler := handlers.NewStatusHandler(a.WebSocketHub, a.Logger)
	r.Get("/status/log", statusHandler.Log)
	r.Get("/status/hub", statusHandler.Hub)

	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)
	r.With(validator.RequireContentType("application/json"), validator.ValidateRequest).
		Post("/client-log", handlers.NewClientLogHandler(a.Logger).Handle)

	analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.Config.Server.MaxUploadBytes, a.Logger)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.AuditLog(a.Logger))
		analysisHandler.Register(r)
	})

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)
}

// allowedOrigins returns the origins accepted for CORS and WebSocket
// upgrades. The server's own address is always allowed.
func (a *Application) allowedOrigins() []string {
	port := a.Config.Server.Port
	origins := []string{
		fmt.Sprintf("http://localhost:%d", port),
		fmt.Sprintf("http://127.0.0.1:%d", port),
	}
	return append(origins, a.Config.Security.AllowedOrigins...)
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// URL returns the base URL of the running server
func (a *Application) URL() string {
	if a.listener != nil {
		if addr, ok := a.listener.Addr().(*net.TCPAddr); ok {
			return fmt.Sprintf("http://localhost:%d", addr.Port)
		}
	}
	return fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
}

// Start binds the listener and serves in the background. A bind failure is
// returned directly; later serve errors arrive on Done.
func (a *Application) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = listener
	a.serveErr = make(chan error, 1)

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("url", a.URL()),
		slog.String("version", contracts.Version))

	if a.Config.Server.OpenBrowser {
		go a.openBrowserWhenReady(ctx)
	}

	return nil
}

// Done is closed when the server stops serving. It carries the serve error,
// if any.
func (a *Application) Done() <-chan error {
	return a.serveErr
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The hub goes first so open WebSocket connections do not hold up Shutdown.
	a.WebSocketHub.Stop()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry",
			slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("received interrupt signal")
	case serveErr = <-a.Done():
	}

	if err := a.Stop(context.Background()); err != nil {
		return err
	}
	return serveErr
}

// openBrowserWhenReady waits for the health endpoint before opening the GUI
func (a *Application) openBrowserWhenReady(ctx context.Context) {
	url := a.URL()
	client := &http.Client{Timeout: 2 * time.Second}

	const maxRetries = 10
	for i := 0; i < maxRetries; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := client.Get(url + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if err := openBrowser(ctx, url); err != nil {
					a.Logger.WarnContext(ctx, "failed to open browser",
						slog.String("error", err.Error()),
						slog.String("url", url))
					fmt.Printf("\nFerroci is running. Open %s in your browser.\n\n", url)
				}
				return
			}
		}

		time.Sleep(500 * time.Millisecond)
	}

	a.Logger.WarnContext(ctx, "server did not become ready for browser opening",
		slog.String("url", url),
		slog.Int("max_retries", maxRetries))
}

// browserMethod represents a method to open the browser
type browserMethod struct {
	name string
	cmd  string
	args []string
}

// openBrowser tries each platform method in turn
func openBrowser(ctx context.Context, url string) error {
	var lastErr error
	for _, method := range getBrowserOpenMethods(url) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Not CommandContext: the browser must outlive the request.
		if err := exec.Command(method.cmd, method.args...).Start(); err != nil {
			lastErr = err
			slog.Debug("browser open method failed",
				slog.String("method", method.name),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("browser opened", slog.String("method", method.name), slog.String("url", url))
		return nil
	}
	return fmt.Errorf("failed to open browser: %w", lastErr)
}

// getBrowserOpenMethods returns platform-specific browser opening methods
func getBrowserOpenMethods(url string) []browserMethod {
	switch runtime.GOOS {
	case "windows":
		return []browserMethod{
			{name: "rundll32", cmd: "rundll32", args: []string{"url.dll,FileProtocolHandler", url}},
			{name: "start_command", cmd: "cmd", args: []string{"/c", "start", "", url}},
		}
	case "darwin":
		return []browserMethod{
			{name: "open", cmd: "open", args: []string{url}},
		}
	default:
		return []browserMethod{
			{name: "xdg-open", cmd: "xdg-open", args: []string{url}},
			{name: "sensible-browser", cmd: "sensible-browser", args: []string{url}},
		}
	}
}
