// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/philippgille/chromem-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asistenteia/moodle-nlq-go/internal/analysis"
	"github.com/asistenteia/moodle-nlq-go/internal/buildinfo"
	"github.com/asistenteia/moodle-nlq-go/internal/cache"
	"github.com/asistenteia/moodle-nlq-go/internal/catalog"
	"github.com/asistenteia/moodle-nlq-go/internal/config"
	"github.com/asistenteia/moodle-nlq-go/internal/entity"
	"github.com/asistenteia/moodle-nlq-go/internal/fewshot"
	"github.com/asistenteia/moodle-nlq-go/internal/genai"
	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
	"github.com/asistenteia/moodle-nlq-go/internal/pattern"
	"github.com/asistenteia/moodle-nlq-go/internal/resolver"
	"github.com/asistenteia/moodle-nlq-go/internal/semantic"
	"github.com/asistenteia/moodle-nlq-go/internal/sentry"
	"github.com/asistenteia/moodle-nlq-go/internal/templater"
)

// coursesCacheTTL keeps /courses from hitting the database on every page
// load. Course lists change rarely.
const coursesCacheTTL = 5 * time.Minute

// HTTP server timeouts. Write accommodates generative resolutions, which can
// take two 30s attempts plus query execution.
const (
	httpReadTimeout  = 10 * time.Second
	httpWriteTimeout = 90 * time.Second
	httpIdleTimeout  = 120 * time.Second
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg          *config.Config
	logger       *logger.Logger
	interactions *logger.Logger
	db           *lmsdb.Store
	catalog      *catalog.Catalog
	templater    *templater.Templater
	entities     *entity.Resolver
	resolver     *resolver.Resolver
	analyzer     *analysis.Analyzer
	generator    genai.TextGenerator
	metrics      *metrics.Metrics
	registry     *prometheus.Registry
	courses      *cache.TTLCache[string, []lmsdb.NamedEntity]
	server       *http.Server
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.New(cfg.LogLevel).WithField("service", "moodle-nlq")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	if buildinfo.Version != "" {
		log = log.WithField("version", buildinfo.Version)
	}

	log.Info("Initializing application...")

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.Info("Sentry error tracking enabled")
	}

	db, err := lmsdb.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBPrefix)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).WithField("prefix", cfg.DBPrefix).Info("Database connected")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	log.WithField("path", cfg.CatalogPath).WithField("templates", len(cat.All())).Info("Catalog loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var generator genai.TextGenerator
	if cfg.HasLLMProvider() {
		generator, err = genai.NewTextGenerator(ctx, genai.Provider(cfg.LLMProvider), cfg.LLMAPIKey(), cfg.LLMModel, cfg.LLMEndpoint, m, log)
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		log.WithField("provider", cfg.LLMProvider).WithField("model", cfg.LLMModel).Info("SQL generation enabled")
	} else {
		log.Info("No LLM provider configured, generative fallback disabled")
	}

	var embedFunc chromem.EmbeddingFunc
	if cfg.HasEmbeddings() {
		embedFunc = genai.NewEmbeddingFunc(genai.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingModel, m))
		log.WithField("model", cfg.EmbeddingModel).Info("Embeddings enabled")
	} else {
		log.Info("Embeddings not configured, semantic ranking disabled")
	}

	var ranker *semantic.Ranker
	if embedFunc != nil {
		ranker = semantic.NewRanker(embedFunc, generator, log)
		if err := ranker.Index(ctx, resolver.PartitionGeneral, cat.GeneralPartition()); err != nil {
			log.WithError(err).Warn("Indexing general catalog partition failed")
			ranker = nil
		} else if err := ranker.Index(ctx, resolver.PartitionPerCourse, cat.PerCoursePartition()); err != nil {
			log.WithError(err).Warn("Indexing per-course catalog partition failed")
			ranker = nil
		}
	}

	var fewshots resolver.FewShotSelector
	examples, err := fewshot.Load(cfg.ExamplesPath)
	if err != nil {
		log.WithError(err).Warn("Few-shot corpus load failed")
	} else if len(examples) > 0 {
		selector, err := fewshot.NewSelector(ctx, examples, embedFunc, log)
		if err != nil {
			log.WithError(err).Warn("Few-shot selector initialization failed")
		} else {
			fewshots = selector
			log.WithField("examples", len(examples)).Info("Few-shot corpus loaded")
		}
	}

	entities := entity.NewResolver(db, log)
	patterns := pattern.NewEngine(entities)

	var analyzer *analysis.Analyzer
	if generator != nil {
		analyzer = analysis.New(generator, log)
	}

	app := &Application{
		cfg:          cfg,
		logger:       log,
		interactions: log.WithComponent("interactions"),
		db:           db,
		catalog:      cat,
		templater:    templater.New(cfg.DBPrefix),
		entities:     entities,
		resolver:     resolver.New(cat, ranker, patterns, generator, fewshots, cfg.DBPrefix, log),
		analyzer:     analyzer,
		generator:    generator,
		metrics:      m,
		registry:     registry,
		courses:      cache.New[string, []lmsdb.NamedEntity](coursesCacheTTL),
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: httpReadTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      httpWriteTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	log.Info("Initialization complete")
	return app, nil
}

// router builds the gin engine with middleware and routes.
func (a *Application) router() *gin.Engine {
	if a.cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger, a.metrics))

	router.GET("/healthz", a.livenessCheck)
	router.HEAD("/healthz", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/ask", a.handleAsk)
	router.GET("/faq", a.handleFAQ)
	router.GET("/courses", a.handleCourses)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then performs
// graceful shutdown.
func (a *Application) Run() error {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	return a.shutdown()
}

// shutdown stops the HTTP server, then closes resources in dependency order.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	if a.generator != nil {
		if err := a.generator.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "generator").Error("Component close error")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"version":  buildinfo.Version,
		"database": "connected",
		"features": map[string]bool{
			"generation": a.generator != nil,
			"analysis":   a.analyzer != nil,
		},
	})
}
