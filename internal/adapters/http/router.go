package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/adapters/signal"
	"github.com/dkeye/Call/internal/config"
)

// SetupRouter wires the admin REST surface and the signaling upgrade.
// ctx outlives individual requests and bounds every WebSocket session.
func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, ctrl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(IdentityMiddleware(h.Tokens))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	api.POST("/member/register", h.registerMember)
	api.POST("/room/create", h.createRoom)
	api.POST("/room/:code/guest", h.addGuest)
	api.GET("/room/:code", h.getRoom)
	api.DELETE("/room/:code", h.deleteRoom)
	api.GET("/rooms", h.listRooms)
	api.GET("/ice-servers", h.iceServers)

	r.GET("/ws-signaling", RequireIdentity(), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signaling endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
