package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Gateway     string `json:"gateway"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	res := healthResponse{
		Status:      "ok",
		Database:    "ok",
		Cache:       "disabled",
		Gateway:     h.uploads.GatewayStatus().Driver,
		Environment: h.cfg.Environment,
	}

	if err := h.lists.Ready(ctx); err != nil {
		res.Status = "degraded"
		res.Database = "error"
		status = http.StatusServiceUnavailable
		h.log.Error().Err(err).Msg("database ping failed")
	}

	if h.redis != nil {
		res.Cache = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			res.Cache = "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	}

	c.JSON(status, res)
}
