package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vbridge-io/vbridge/internal/adapters/signal"
	"github.com/vbridge-io/vbridge/internal/config"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *ConferenceHandler, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VBridgeSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", h.Health)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	api := r.Group("/api")

	api.POST("/conferences", h.ProcessConference)
	api.GET("/conferences", h.ListConferences)
	api.GET("/conferences/:id", h.GetConference)
	api.DELETE("/conferences/:id", h.ExpireConference)
	api.GET("/conferences/:id/relay", h.GetRelay)

	api.GET("/ws/colibri", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws colibri endpoint hit")
		ctl.HandleColibri(ctx, c)
	})

	return r
}
