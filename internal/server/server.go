package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge-ai/companion/config"
	"github.com/carebridge-ai/companion/internal/agent"
	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/internal/index/embedded"
	"github.com/carebridge-ai/companion/internal/index/opensearch"
	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/internal/session"
	"github.com/carebridge-ai/companion/internal/session/inmemory"
	redis_session "github.com/carebridge-ai/companion/internal/session/redis"
	"github.com/carebridge-ai/companion/internal/telemetry"
	"github.com/carebridge-ai/companion/provider"
)

// Deps are the wired collaborators the HTTP surface serves. Built once at
// startup; tests substitute fakes.
type Deps struct {
	Agent     *agent.Agent
	Retriever *retrieval.Retriever
	Index     index.Index
	Sessions  session.Store
	Generator provider.Generator
	Embedder  provider.Embedder
	Metrics   *telemetry.Metrics
	Logger    *log.Logger
}

// Run wires dependencies from config and serves HTTP until the listener
// fails.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	generator, err := provider.NewGenerator(cfg.Providers)
	if err != nil {
		return err
	}
	embedder, err := provider.NewEmbedder(cfg.Providers)
	if err != nil {
		return err
	}
	if embedder == nil {
		logger.Printf("no embedding provider configured; retrieval degrades to keyword-only")
	}

	var idx index.Index
	switch cfg.Index.Backend {
	case "opensearch":
		idx = opensearch.New(cfg.Index.OpenSearch, cfg.Index.Vectors && embedder != nil)
	default:
		idx, err = embedded.New()
		if err != nil {
			return err
		}
	}

	var sessions session.Store
	if cfg.Session.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Session.Redis.Addr, err)
		}
		sessions = redis_session.New(rdb, cfg.Session.TTL)
	} else {
		sessions = inmemory.New()
	}

	var retrEmbedder provider.Embedder
	if cfg.Index.Vectors {
		retrEmbedder = embedder
	}
	retriever := retrieval.New(idx, retrEmbedder)

	ag := agent.New(generator, retriever, sessions, agent.Options{
		MaxTokens:   cfg.Providers.OpenAI.MaxTokens,
		Temperature: cfg.Providers.OpenAI.Temperature,
	}, log.New(log.Writer(), "[AGENT] ", log.LstdFlags))

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.New()
	}

	deps := &Deps{
		Agent:     ag,
		Retriever: retriever,
		Index:     idx,
		Sessions:  sessions,
		Generator: generator,
		Embedder:  retrEmbedder,
		Metrics:   metrics,
		Logger:    logger,
	}

	e := NewEcho(cfg, deps)
	addr := cfg.General.Listen
	if addr == "" {
		addr = ":8000"
	}
	logger.Printf("listening on %s", addr)
	return e.Start(addr)
}

// NewEcho assembles the echo instance: middleware, error handling, and all
// route groups under the configured API prefix.
func NewEcho(cfg *config.Config, deps *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	// Unified error handler: full detail server-side, stable generic
	// message to the client.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "An unexpected error occurred. Please try again."
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := cfg.General.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	if deps.Metrics != nil {
		e.Use(requestMetrics(deps.Metrics))
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	prefix := cfg.General.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := e.Group(prefix)

	ch := &ChatHandler{Agent: deps.Agent, Sessions: deps.Sessions, Metrics: deps.Metrics}
	ch.Register(api.Group("/chat"))

	kh := &KnowledgeHandler{Retriever: deps.Retriever, Index: deps.Index, Metrics: deps.Metrics}
	kh.Register(api.Group("/knowledge"))

	hh := &HealthHandler{Index: deps.Index, Generator: deps.Generator, Embedder: deps.Embedder}
	hh.Register(api.Group("/health"))

	(&CategoriesHandler{}).Register(api.Group("/categories"))

	return e
}

// requestMetrics observes request counts and latency per route. Health
// probes are skipped to keep cardinality and noise down.
func requestMetrics(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.Contains(c.Path(), "/health") || c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			route := c.Path()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
