// Package handler provides the HTTP handlers for the document API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stevemurr/docstore-api/normalize"
	"github.com/stevemurr/docstore-api/store"
)

// DefaultStatusMessage is returned by GET /.
const DefaultStatusMessage = "Firestore API is running"

// Options tunes the router.
type Options struct {
	// StatusMessage is returned by GET /.
	StatusMessage string
	// AllowedOrigins lists the CORS origins; "*" allows every origin.
	AllowedOrigins []string
	// GoroutineThreshold fails the liveness check when exceeded.
	GoroutineThreshold int
	Logger             *zap.SugaredLogger
	Debug              bool
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store  store.Store
	logger *zap.SugaredLogger
	router *gin.Engine
	health healthcheck.Handler
	opts   Options
}

// New creates a Handler and wires up all routes.
func New(s store.Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.StatusMessage == "" {
		opts.StatusMessage = DefaultStatusMessage
	}
	if opts.GoroutineThreshold <= 0 {
		opts.GoroutineThreshold = 10000
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &Handler{
		store:  s,
		logger: opts.Logger,
		router: gin.New(),
		health: healthcheck.NewHandler(),
		opts:   opts,
	}
	h.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.GoroutineThreshold))
	h.health.AddReadinessCheck("store", healthcheck.Timeout(func() error {
		return s.Ping(context.Background())
	}, 5*time.Second))

	h.middleware()
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Health exposes the health handler so callers can add their own checks.
func (h *Handler) Health() healthcheck.Handler {
	return h.health
}

func (h *Handler) middleware() {
	base := h.logger.Desugar()

	// Access log in RFC3339/UTC and panics logged with their stack.
	h.router.Use(ginzap.Ginzap(base, time.RFC3339, true))
	h.router.Use(ginzap.RecoveryWithZap(base, true))

	h.router.Use(metricsMiddleware())
	h.router.Use(corsMiddleware(h.opts.AllowedOrigins))
	// promhttp compresses its own output.
	h.router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
}

func (h *Handler) routes() {
	// Health / status
	h.router.GET("/", h.root)
	h.router.GET("/health", h.healthz)
	h.router.GET("/live", gin.WrapH(h.health))
	h.router.GET("/ready", gin.WrapH(h.health))
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Generic collection endpoints
	collections := h.router.Group("/collections")
	{
		collections.GET("/:collection", h.getCollection)
		collections.GET("/:collection/:id", h.getDocument)
	}

	h.router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Not Found")
	})
}

// ---------- status endpoints ----------

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.opts.StatusMessage})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ---------- documents ----------

func (h *Handler) getCollection(c *gin.Context) {
	collection := c.Param("collection")

	q, err := parsePageQuery(c)
	if err != nil {
		h.handleInvalidInput(c, err)
		return
	}

	snaps, err := h.store.FetchPage(c.Request.Context(), collection, q)
	if err != nil {
		h.handleStoreError(c, err, "collection", collection, "")
		return
	}
	h.renderJSON(c, normalize.Page(snaps))
}

func (h *Handler) getDocument(c *gin.Context) {
	collection := c.Param("collection")
	id := c.Param("id")

	snap, err := h.store.FetchOne(c.Request.Context(), collection, id)
	if err != nil {
		h.handleStoreError(c, err, "document", collection, id)
		return
	}
	h.renderJSON(c, normalize.Document(snap))
}
