package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

// SessionReader is the read side of the session ledger.
type SessionReader interface {
	ListSessions(ctx context.Context, room domain.RoomID) ([]domain.SessionRecord, error)
}

type Deps struct {
	Signal   *signal.SignalWSController
	Rooms    *core.Table
	Sessions SessionReader
	Metrics  *metrics.Metrics
	// Health reports whether the durable store is reachable.
	Health func(ctx context.Context) error
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a per-browser token in the signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("InterviewSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Rooms.List()})
	})

	api.GET("/rooms/:room/sessions", func(c *gin.Context) {
		room := domain.RoomID(c.Param("room"))
		if err := domain.ValidateRoomID(room); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		list, err := deps.Sessions.ListSessions(c.Request.Context(), room)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("list sessions")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list sessions failed"})
			return
		}
		if list == nil {
			list = []domain.SessionRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"room": room, "sessions": list})
	})

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ice_servers": cfg.WebRTCICEServers()})
	})

	return r
}
