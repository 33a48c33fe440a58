package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifier/internal/constants"
	"notifier/internal/logger"
	pkgerrors "notifier/pkg/errors"
)

type handlerRepo struct {
	fakeRepo
	items  []Notification
	getErr error
}

func (h *handlerRepo) List(ctx context.Context, limit, offset int) ([]Notification, error) {
	if offset >= len(h.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(h.items) {
		end = len(h.items)
	}
	return h.items[offset:end], nil
}

func (h *handlerRepo) ListUnread(ctx context.Context, limit, offset int) ([]Notification, error) {
	var unread []Notification
	for _, n := range h.items {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

func (h *handlerRepo) GetByID(ctx context.Context, id int64) (*Notification, error) {
	if h.getErr != nil {
		return nil, h.getErr
	}
	for i := range h.items {
		if h.items[i].ID == id {
			return &h.items[i], nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("message", "notification not found")
}

func (h *handlerRepo) MarkRead(ctx context.Context, id int64) (*Notification, error) {
	n, err := h.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

func newTestRouter(repo Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := newTestService(repo, newFakeCache(), &fakeBroadcaster{}, constants.FallbackAllow)
	handler := NewHandler(svc, logger.NopLogger())

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func sampleNotifications() []Notification {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Notification{
		{
			ID: 1, EventID: "e1", EventType: "user.created",
			Title: "Novo Usuário Criado", Message: "Usuário Ana criado com sucesso",
			Data: `{"userName":"Ana"}`, EventTime: now,
		},
		{
			ID: 2, EventID: "e2", EventType: "user.disabled",
			Title: "Usuário Desabilitado", Message: "Usuário Bea foi desabilitado",
			Read: true, EventTime: now.Add(time.Minute),
		},
	}
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandlerList(t *testing.T) {
	repo := &handlerRepo{items: sampleNotifications()}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/notifications")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)

	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", first["id"], "DTO exposes the id as a string")
	assert.Equal(t, "user.created", first["type"])
	assert.Equal(t, "2025-03-01T12:00:00Z", first["timestamp"])

	parsed, ok := first["data"].(map[string]interface{})
	require.True(t, ok, "stored data JSON is returned parsed")
	assert.Equal(t, "Ana", parsed["userName"])
}

func TestHandlerListPagination(t *testing.T) {
	repo := &handlerRepo{items: sampleNotifications()}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/notifications?limit=1&offset=1")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "2", data[0].(map[string]interface{})["id"])
}

func TestHandlerListUnread(t *testing.T) {
	repo := &handlerRepo{items: sampleNotifications()}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/notifications/unread")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "1", data[0].(map[string]interface{})["id"])
}

func TestHandlerGetNotFound(t *testing.T) {
	repo := &handlerRepo{items: sampleNotifications()}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/notifications/99")
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestHandlerGetInvalidID(t *testing.T) {
	router := newTestRouter(&handlerRepo{})

	w := performRequest(router, http.MethodGet, "/api/v1/notifications/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerMarkRead(t *testing.T) {
	repo := &handlerRepo{items: sampleNotifications()}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodPut, "/api/v1/notifications/1/read")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	dto := resp.Data.(map[string]interface{})
	assert.Equal(t, true, dto["read"])
}

func TestHandlerInternalError(t *testing.T) {
	repo := &handlerRepo{getErr: pkgerrors.ErrInternal}
	router := newTestRouter(repo)

	w := performRequest(router, http.MethodGet, "/api/v1/notifications/1")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
}
