package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/leadcapture/internal/api/router"
	appconfig "github.com/wolfman30/leadcapture/internal/config"
	httpmiddleware "github.com/wolfman30/leadcapture/internal/http/middleware"
	"github.com/wolfman30/leadcapture/internal/leads"
	"github.com/wolfman30/leadcapture/internal/observability/metrics"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

// App is the fully wired HTTP application shared by the server and Lambda entry points.
type App struct {
	Handler http.Handler
	closers []func()
}

// Close releases the store and Redis connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BuildApp wires config into a ready router. awsCfg may be nil when no AWS
// backed component is configured.
func BuildApp(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	policy, err := leads.ParsePhonePolicy(cfg.PhonePolicy)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	app := &App{}
	store, err := BuildLeadStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	handler := leads.NewHandler(leads.HandlerConfig{
		Validator:  leads.NewValidator(policy, cfg.DefaultSource),
		Reconciler: leads.NewReconciler(store.Store),
		Lister:     store.Lister,
		Listeners:  BuildListeners(cfg, awsCfg, logger),
		Metrics:    metrics.NewLeadMetrics(reg),
		Gatherer:   reg,
		Messages:   leads.MessagesFor(cfg.MessagesLocale),
		Logger:     logger,
	})
	if !handler.CanList() && cfg.AdminJWTSecret != "" {
		logger.Warn("lead store cannot list, admin listing endpoints return 501", "backend", cfg.LeadStore)
	}

	limiter := BuildLimiter(cfg, redisClient)
	if local, ok := limiter.(*httpmiddleware.RateLimiter); ok {
		app.closers = append(app.closers, local.Stop)
	}

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       handler,
		Limiter:            limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HealthCheck:        store.Health,
	})
	return app, nil
}
