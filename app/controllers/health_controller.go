package controllers

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/datajunction/djqs/pkg/database"
	"github.com/datajunction/djqs/pkg/logger"
	"github.com/datajunction/djqs/pkg/response"
)

type HealthController struct {
	db *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// Check handles GET /health by pinging the index database.
func (c *HealthController) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx, c.db); err != nil {
		logger.WithCtx(ctx).Warn("health: index database unreachable", "error", err)
		response.Write(w, response.MediaJSON, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": err.Error(),
		})
		return
	}
	response.Success(w, map[string]string{"status": "ok", "database": "ok"})
}
