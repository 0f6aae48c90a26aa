package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"polyfolio/internal/repository"
)

type SnapshotHandler struct {
	Repo repository.Repository
}

func (h *SnapshotHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/snapshots")
	g.GET("", h.list)
	g.GET("/latest", h.latest)
	g.GET("/:id/positions", h.positions)
}

// @Summary Snapshot history
// @Tags snapshots
// @Router /api/v1/snapshots [get]
func (h *SnapshotHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 168)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPortfolioSnapshotsParams{
		Limit:  limit,
		Offset: offset,
		Since:  timeQuery(c, "since"),
		Until:  timeQuery(c, "until"),
		Asc:    strings.EqualFold(c.Query("order"), "asc"),
	}
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPortfolioSnapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Latest snapshot with positions
// @Tags snapshots
// @Router /api/v1/snapshots/latest [get]
func (h *SnapshotHandler) latest(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	item, err := h.Repo.GetMostRecentSnapshot(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "no snapshots yet", nil)
		return
	}
	positions, err := h.Repo.ListPositionsBySnapshotID(c.Request.Context(), item.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	item.Positions = positions
	Ok(c, item, nil)
}

// @Summary Positions of one snapshot
// @Tags snapshots
// @Router /api/v1/snapshots/{id}/positions [get]
func (h *SnapshotHandler) positions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	snap, err := h.Repo.GetSnapshotByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if snap == nil {
		Error(c, http.StatusNotFound, "snapshot not found", nil)
		return
	}
	items, err := h.Repo.ListPositionsBySnapshotID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
