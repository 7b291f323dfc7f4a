package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tagScope/internal/feedapi"
	"tagScope/internal/metrics"
	"tagScope/internal/model"
)

// maxTokens bounds one pricing request.
const maxTokens = 1000

// Pricer is the resolver surface the API exposes.
type Pricer interface {
	ResolvePrices(ctx context.Context, descs []model.TokenDescriptor) (map[string]float64, error)
	ResolvePricesAndSupplies(ctx context.Context, descs []model.TokenDescriptor) (model.PriceSet, error)
	ResolveSupplies(ctx context.Context, descs []model.TokenDescriptor) (map[string]float64, error)
}

// Snapshots builds fiat valuations on demand.
type Snapshots interface {
	MarketCaps(ctx context.Context, sort feedapi.Sort, first, pages int) ([]model.MarketCapRecord, error)
	AgentRewards(ctx context.Context, first, pages int) ([]model.AgentRewardTotal, error)
}

type pricesRequest struct {
	Tokens     []model.TokenDescriptor `json:"tokens"`
	WithSupply bool                    `json:"withSupply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	pricer    Pricer
	snapshots Snapshots
	logger    *zap.Logger
}

// New builds the gin engine. An empty or "*" origin list allows every origin.
func New(pricer Pricer, snapshots Snapshots, corsOrigins []string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{pricer: pricer, snapshots: snapshots, logger: logger}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if allowAll(corsOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = corsOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/prices", h.prices)
		api.POST("/supplies", h.supplies)
		if snapshots != nil {
			api.GET("/communities/marketcaps", h.marketCaps)
			api.GET("/agents/rewards", h.agentRewards)
		}
	}
	return router
}

func (h *handler) prices(c *gin.Context) {
	req, ok := h.bindTokens(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if !req.WithSupply {
		prices, err := h.pricer.ResolvePrices(ctx, req.Tokens)
		if err != nil {
			h.upstreamError(c, "resolve prices", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"prices": prices})
		return
	}
	set, err := h.pricer.ResolvePricesAndSupplies(ctx, req.Tokens)
	if err != nil {
		h.upstreamError(c, "resolve prices", err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *handler) supplies(c *gin.Context) {
	req, ok := h.bindTokens(c)
	if !ok {
		return
	}
	supplies, err := h.pricer.ResolveSupplies(c.Request.Context(), req.Tokens)
	if err != nil {
		h.upstreamError(c, "resolve supplies", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supplies": supplies})
}

func (h *handler) marketCaps(c *gin.Context) {
	sort, err := feedapi.ParseSort(c.DefaultQuery("sort", string(feedapi.SortMarketCap)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	page, ok := pageParam(c)
	if !ok {
		return
	}
	records, err := h.snapshots.MarketCaps(c.Request.Context(), sort, page, 1)
	if err != nil {
		h.upstreamError(c, "market caps", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communities": records})
}

func (h *handler) agentRewards(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	totals, err := h.snapshots.AgentRewards(c.Request.Context(), page, 1)
	if err != nil {
		h.upstreamError(c, "agent rewards", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": totals})
}

func (h *handler) bindTokens(c *gin.Context) (pricesRequest, bool) {
	var req pricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return pricesRequest{}, false
	}
	if len(req.Tokens) > maxTokens {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "too many tokens, max " + strconv.Itoa(maxTokens)})
		return pricesRequest{}, false
	}
	return req, true
}

func (h *handler) upstreamError(c *gin.Context, op string, err error) {
	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}
	h.logger.Warn(op+" failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadGateway, errorResponse{Error: op + ": " + err.Error()})
}

func pageParam(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "page must be a positive integer"})
		return 0, false
	}
	return page, true
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger logs every request and records it in the HTTP metrics.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}
