package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/ideagraph/config"
	_ "github.com/d60-Lab/ideagraph/docs"
	"github.com/d60-Lab/ideagraph/internal/api/handler"
	"github.com/d60-Lab/ideagraph/internal/api/middleware"
)

// Setup 注册中间件与路由
func Setup(cfg *config.Config, h *handler.Handler, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	throttle := limiter.Middleware()

	api := r.Group("/api/v1")
	api.Use(middleware.Identity(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
	{
		api.PUT("/users/me", h.RegisterMe)

		rel := api.Group("/relations")
		rel.POST("/follow", throttle, h.Follow)
		rel.POST("/unfollow", throttle, h.Unfollow)
		rel.GET("/:user_id/following", h.ListFollowing)
		rel.GET("/:user_id/followers", h.ListFollowers)

		ideas := api.Group("/ideas")
		ideas.POST("", throttle, h.SubmitIdea)
		ideas.GET("/count", h.CountIdeas)
		ideas.GET("/idea-of-the-day", h.IdeaOfTheDay)
		ideas.GET("/feed", h.Feed)
		ideas.GET("/followed", h.FollowedFeed)
		ideas.GET("/mine", h.MyIdeas)
		ideas.GET("/by-user/:user_id", h.IdeasByUser)
		ideas.GET("/liked-by/:user_id", h.IdeasLikedBy)
		ideas.POST("/:idea_id/like", throttle, h.ToggleLike)
		ideas.POST("/:idea_id/collaborate", throttle, h.ToggleCollaborate)
		ideas.GET("/:idea_id/collaborators", h.Collaborators)
		ideas.GET("/:idea_id/likes-per-day", h.LikesPerDay)

		chat := api.Group("/chat")
		chat.POST("/messages", throttle, h.SendMessage)
		chat.POST("/mark-seen", h.MarkSeen)
		chat.GET("/inbox", h.Inbox)
		chat.GET("/:user_id", h.Conversation)
	}
	return r
}
