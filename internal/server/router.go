package server

import (
	"context"
	"time"

	"yaca/internal/auth"
	"yaca/internal/config"
	"yaca/internal/metrics"
	"yaca/internal/mw"
	"yaca/internal/service"
	"yaca/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Accounts *service.AccountService
	Messages *service.MessageService
	Gate     *auth.Gate
	Hub      *ws.Hub
}

// SetupRouter builds the gin engine: middleware, REST API and websocket
// endpoint. Background work it starts stops with ctx.
func SetupRouter(ctx context.Context, cfg config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))

	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute, nil)
	go limiter.Run(ctx)
	r.Use(limiter.Middleware(writeError))

	h := NewHandler(d.Accounts, d.Messages, d.Hub)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	authGroup := api.Group("/auth")
	authGroup.POST("/users", h.Register)
	authGroup.POST("/tokens/:username", h.Login)

	chat := api.Group("/chat")
	chat.Use(d.Gate.Middleware(writeError))
	chat.POST("/messages", h.PostMessage)
	chat.GET("/messages", h.ListMessages)
	chat.GET("/usernames", h.ListUsernames)
	chat.GET("/users/:username", h.GetUser)

	r.GET("/ws", ws.Serve(d.Hub, d.Gate, d.Messages, writeError))
	return r
}
