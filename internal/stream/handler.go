package stream

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"notifier/internal/auth"
	"notifier/internal/logger"
	pkgerrors "notifier/pkg/errors"
	"notifier/pkg/logging"
)

// Handler authenticates websocket upgrade requests and pumps inbound
// session messages.
type Handler struct {
	registry *Registry
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewHandler(registry *Registry, verifier *auth.Verifier, log logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The token is the access control; browser clients cannot
			// set Authorization headers on websocket requests.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Serve handles one websocket connection for its whole lifetime.
// Authentication happens before the upgrade so rejects are plain HTTP
// status codes the client can inspect.
func (h *Handler) Serve(c *gin.Context) {
	token, viaProtocol := extractToken(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "missing authentication token",
		})
		return
	}

	subject, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(pkgerrors.ToHTTPStatus(err), gin.H{
			"success": false,
			"message": "invalid authentication token",
		})
		return
	}

	// When the token rode in on the subprotocol header, echo the
	// protocol back or the browser aborts the handshake.
	var responseHeader http.Header
	if viaProtocol != "" {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": []string{viaProtocol}}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, responseHeader)
	if err != nil {
		h.logger.Warnw("Websocket upgrade failed", "user_id", subject.UserID, "error", err)
		return
	}

	session := h.registry.Register(conn, subject)
	ctx := logging.WithSessionID(c.Request.Context(), session.ID)
	defer h.registry.Unregister(session.ID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WarnwCtx(ctx, "Session read failed", "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.DebugwCtx(ctx, "Ignoring malformed client message")
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			if err := session.enqueue(pongMessage()); err != nil {
				return
			}
		case MessageTypeSubscribe:
			if err := session.enqueue(subscribedMessage()); err != nil {
				return
			}
		default:
			h.logger.DebugwCtx(ctx, "Ignoring unknown client message type", "type", msg.Type)
		}
	}
}

// extractToken pulls the bearer token from the request, in priority
// order: token query parameter, Authorization header, then the
// Sec-WebSocket-Protocol subprotocol list ("Bearer" followed by the
// token). The second return is the subprotocol entry to echo back, set
// only when the token came from the subprotocol.
func extractToken(r *http.Request) (token, viaProtocol string) {
	if t := r.URL.Query().Get("token"); t != "" {
		return t, ""
	}

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t, ""
		}
	}

	protocols := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	for i := 0; i < len(protocols); i++ {
		p := strings.TrimSpace(protocols[i])
		if p == "Bearer" && i+1 < len(protocols) {
			if t := strings.TrimSpace(protocols[i+1]); t != "" {
				return t, p
			}
		}
		if t := strings.TrimPrefix(p, "Bearer "); t != p && t != "" {
			return t, p
		}
	}

	return "", ""
}
