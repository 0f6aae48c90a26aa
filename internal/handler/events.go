package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"polyfolio/internal/repository"
)

type EventHandler struct {
	Repo repository.Repository
}

func (h *EventHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/events")
	g.GET("", h.list)
}

// @Summary Copy-trading event log
// @Tags events
// @Router /api/v1/events [get]
func (h *EventHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	var eventType *string
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		eventType = &v
	}
	var trader *string
	if v := strings.TrimSpace(c.Query("trader")); v != "" {
		trader = &v
	}

	params := repository.ListCopyTradingEventsParams{
		Limit:      limit,
		Offset:     offset,
		EventType:  eventType,
		TraderName: trader,
		Since:      timeQuery(c, "since"),
		Asc:        strings.EqualFold(c.Query("order"), "asc"),
	}
	items, err := h.Repo.ListCopyTradingEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountCopyTradingEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
