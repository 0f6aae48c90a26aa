package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"polyfolio/internal/service"
)

// MonitorHandler exposes manual refresh/backfill triggers for the dashboard.
type MonitorHandler struct {
	Service *service.RefreshService
}

func (h *MonitorHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/refresh", h.refresh)
	r.POST("/api/v1/backfill", h.backfill)
}

// @Summary Trigger a portfolio refresh
// @Tags monitor
// @Router /api/v1/refresh [post]
func (h *MonitorHandler) refresh(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	res, err := h.Service.Refresh(c.Request.Context())
	if errors.Is(err, service.ErrRefreshInFlight) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"snapshotId": res.SnapshotID,
		"events":     res.Events,
	}, nil)
}

// @Summary Trigger a historical backfill
// @Tags monitor
// @Router /api/v1/backfill [post]
func (h *MonitorHandler) backfill(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	res, err := h.Service.Backfill(c.Request.Context())
	if errors.Is(err, service.ErrRefreshInFlight) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res, nil)
}
