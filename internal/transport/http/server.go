package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/heartline-app/relay-server/internal/auth"
	"github.com/heartline-app/relay-server/internal/config"
	"github.com/heartline-app/relay-server/internal/relay"
	"github.com/heartline-app/relay-server/internal/store"
)

// NewServer builds the HTTP server hosting the relay WebSocket endpoint and
// the REST surface.
func NewServer(engine *relay.Engine, authService *auth.Service, identity store.IdentityStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	handlers := NewAPIHandlers(authService, identity, logger)
	api := router.Group("/api")
	api.POST("/register", handlers.Register)
	api.POST("/login", handlers.Login)

	authorized := api.Group("")
	authorized.Use(AuthMiddleware(authService, logger))
	authorized.GET("/profile/:username", handlers.GetProfile)

	// The upgrade must hijack the raw ResponseWriter, which gin's wrapped
	// writer refuses, so /ws hangs off a plain mux in front of the router.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(engine, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
