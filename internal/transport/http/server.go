package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/perf"
)

// NewServer builds the HTTP server: REST surface plus the /ws endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, metrics *perf.Metrics, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	handlers := &apiHandlers{
		authService: authService,
		hub:         hub,
		metrics:     metrics,
		cfg:         cfg,
		log:         logger,
	}

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", handlers.register)
		api.POST("/auth/login", handlers.login)
		api.POST("/auth/guest", handlers.guest)
		api.GET("/config", handlers.clientConfig)
		api.GET("/metrics", handlers.metricsSnapshot)

		protected := api.Group("", AuthMiddleware(authService, logger))
		{
			protected.POST("/metrics/reset", RequireCapability(core.CapabilityModerate), handlers.metricsReset)
			protected.POST("/notifications", RequireCapability(core.CapabilityModerate), handlers.notify)
		}
	}

	wsHandler := NewWSHandler(hub, authService, metrics, WSOptions{
		HandshakeTimeout:   cfg.HandshakeTimeout,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
