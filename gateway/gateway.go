package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/bistro/pkg/cart"
	"github.com/example/bistro/pkg/catalog"
	"github.com/example/bistro/pkg/config"
	"github.com/example/bistro/pkg/images"
	"github.com/example/bistro/pkg/order"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Services are the components the HTTP surface delegates to.
type Services struct {
	Carts   *cart.Manager
	Orders  *order.Service
	Catalog *catalog.Service
	Images  *images.Store
	// Ping reports storage health for /health; nil means always healthy.
	Ping func(ctx context.Context) error
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	// The client key is the TCP peer address; forwarding headers are ignored.
	if err := router.SetTrustedProxies(nil); err != nil {
		logger.Warn("Failed to disable trusted proxies", zap.Error(err))
	}

	return &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", g.health)

	// Menu and configuration
	g.router.GET("/menu", g.getMenu)
	g.router.POST("/update-menu", g.updateMenu)
	g.router.GET("/config", g.getConfig)
	g.router.POST("/config", g.setConfig)

	// Cart
	cartRoutes := g.router.Group("/cart")
	{
		cartRoutes.GET("", g.getCart)
		cartRoutes.POST("/add", g.addToCart)
		cartRoutes.PUT("/item/:cart_item_id", g.updateCartItem)
		cartRoutes.DELETE("/item/:cart_item_id", g.removeCartItem)
	}

	// Orders
	g.router.POST("/place-order", g.placeOrder)
	g.router.GET("/orders", g.listOrders)
	g.router.POST("/orders/:order_id/status", g.updateOrderStatus)
	g.router.GET("/history", g.history)
	g.router.GET("/order/:order_id", g.getOrder)
	g.router.DELETE("/order/:order_id", g.deleteOrder)
	g.router.POST("/recart/:order_id", g.recartOrder)

	// Images
	g.router.POST("/upload-image", g.uploadImage)
	if g.services.Images != nil {
		g.router.Static("/"+g.config.Images.URLPrefix, g.services.Images.Dir())
	}

	// Swagger, served from the spec registered by the docs package
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	if g.services.Ping != nil {
		if err := g.services.Ping(c.Request.Context()); err != nil {
			g.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("client", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
