package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memeshare/api/internal/config"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/middleware"
	"memeshare/api/internal/service"
	"memeshare/api/internal/storage"
)

// Deps are the collaborators the HTTP layer is built from. Cache and Redis
// are optional.
type Deps struct {
	Images  service.ImageStore
	Gateway gateway.Gateway
	Files   *storage.LocalStore
	Cache   service.ContentCache
	Redis   *redis.Client
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	uploads    *service.UploadService
	moderation *service.ModerationService
	delivery   *service.DeliveryService
	reactions  *service.ReactionService
	lists      *service.ListService
	redis      *redis.Client
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	auth := service.NewAuthService(cfg.Security, log)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       auth,
		uploads:    service.NewUploadService(deps.Images, deps.Gateway, deps.Files, cfg, log),
		moderation: service.NewModerationService(deps.Images, deps.Files, deps.Cache, auth.AuthorizeAdmin, cfg, log),
		delivery:   service.NewDeliveryService(deps.Images, deps.Gateway, deps.Files, deps.Cache, log),
		reactions:  service.NewReactionService(deps.Images),
		lists:      service.NewListService(deps.Images, cfg),
		redis:      deps.Redis,
	}
}

func (h HandlerSet) Register(router gin.IRouter) {
	router.GET("/health", h.Health)

	router.GET("/image", h.RandomImage)
	router.GET("/image-info", h.RandomImageInfo)
	router.GET("/image/random", h.RandomImageContent)
	router.GET("/image/checked/:id", h.CheckedImageContent)
	router.GET("/image/unchecked/:id", h.UncheckedImageContent)
	router.POST("/image/:id/like", h.Like)
	router.POST("/image/:id/dislike", h.Dislike)
	router.DELETE("/image/:id/like", h.Unlike)
	router.DELETE("/image/:id/dislike", h.Undislike)
	router.GET("/images/list", h.ListImages)
	router.GET("/picgo/status", h.GatewayStatus)

	router.POST("/upload/", h.Upload)

	requireAdmin := middleware.AdminAuth(h.auth.AuthorizeAdmin)

	router.POST("/image/:id/check", requireAdmin, h.CheckImage)

	hosted := router.Group("/upload", requireAdmin)
	hosted.POST("/picgo", h.UploadHosted)
	hosted.POST("/picgo/album/:album_id", h.UploadHosted)
	hosted.POST("/picgo/album/:album_id/batch", h.BatchUploadHosted)
	hosted.POST("/picgo-url", h.UploadFromURL)

	router.POST("/admin/verify", h.AdminVerify)
	admin := router.Group("/admin", requireAdmin)
	admin.GET("/pending-images", h.PendingImages)
	admin.GET("/checked-images", h.CheckedImages)
	admin.POST("/review-image/:id", h.ReviewImage)
	admin.DELETE("/image/:id", h.DeleteImage)
}
