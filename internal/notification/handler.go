package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"notifier/internal/logger"
	pkgerrors "notifier/pkg/errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Response is the envelope every REST endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.list)
		notifications.GET("/unread", h.listUnread)
		notifications.GET("/:id", h.get)
		notifications.PUT("/:id/read", h.markRead)
	}
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := pagination(c)

	items, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Notificações recuperadas",
		Data:    ToDTOs(items),
	})
}

func (h *Handler) listUnread(c *gin.Context) {
	limit, offset := pagination(c)

	items, err := h.service.ListUnread(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Notificações não lidas recuperadas",
		Data:    ToDTOs(items),
	})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	n, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Notificação recuperada",
		Data:    n.DTO(),
	})
}

func (h *Handler) markRead(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Notificação marcada como lida",
		Data:    n.DTO(),
	})
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid notification id",
		})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := pkgerrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}

	message := "internal error"
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}
