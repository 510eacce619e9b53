package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/repositories"
	"messaging-service/internal/session"
	"messaging-service/pkg/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hubStream adapts the hub to the controller's subscription interface.
type hubStream struct {
	hub *Hub
}

func (s hubStream) Subscribe(groupID int) (<-chan models.GroupEvent, func()) {
	sub := s.hub.Subscribe(groupID)
	return sub.C, func() { s.hub.Unsubscribe(sub) }
}

// SessionHandler owns the live session websocket endpoint. Each connection
// gets its own controller; the client switches conversations with control
// frames and receives the merged view stream back.
type SessionHandler struct {
	hub       *Hub
	fetcher   session.MessageFetcher
	typing    presence.TypingSource
	groupRepo repositories.GroupRepository
	jwt       *auth.JWTManager
	log       *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, fetcher session.MessageFetcher, typing presence.TypingSource, groupRepo repositories.GroupRepository, jwt *auth.JWTManager, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{
		hub:       hub,
		fetcher:   fetcher,
		typing:    typing,
		groupRepo: groupRepo,
		jwt:       jwt,
		log:       log,
	}
}

type controlFrame struct {
	Type    string `json:"type"`
	GroupID int    `json:"group_id,omitempty"`
}

type serverFrame struct {
	Type     string             `json:"type"`
	GroupID  int                `json:"group_id,omitempty"`
	Messages []models.Message   `json:"messages,omitempty"`
	Event    *models.GroupEvent `json:"event,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Handle upgrades the connection and runs the session loop until the client
// disconnects.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if qt := c.Query("token"); qt != "" {
			token = "Bearer " + qt
		}
	}
	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := newConnInfo(c.Request, userID)

	ctrl := session.NewController(h.fetcher, hubStream{hub: h.hub}, h.typing, h.log)

	var writeMu sync.Mutex
	writeFrame := func(frame serverFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(frame)
	}

	// view stream pump
	go func() {
		for ev := range ctrl.Events() {
			ev := ev
			if err := writeFrame(serverFrame{Type: "event", GroupID: ev.GroupID, Event: &ev}); err != nil {
				return
			}
		}
	}()

	defer func() {
		ctrl.Close()
		conn.Close()
		h.log.Info("session closed",
			zap.String("conn_id", info.ConnID),
			zap.Int("user_id", info.UserID))
	}()

	for {
		var frame controlFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "select_group":
			member, err := h.groupRepo.IsMember(c.Request.Context(), frame.GroupID, userID)
			if err != nil {
				_ = writeFrame(serverFrame{Type: "error", GroupID: frame.GroupID, Error: "membership check failed"})
				continue
			}
			if !member {
				_ = writeFrame(serverFrame{Type: "error", GroupID: frame.GroupID, Error: "not a member"})
				continue
			}

			msgs, err := ctrl.Select(c.Request.Context(), frame.GroupID)
			if err != nil {
				// Surfaced inline; the session stays open and Idle rather
				// than retrying on its own.
				if errors.Is(err, session.ErrLoadFailed) {
					_ = writeFrame(serverFrame{Type: "error", GroupID: frame.GroupID, Error: "conversation load failed"})
					continue
				}
				_ = writeFrame(serverFrame{Type: "error", GroupID: frame.GroupID, Error: "internal error"})
				continue
			}
			_ = writeFrame(serverFrame{Type: "loaded", GroupID: frame.GroupID, Messages: msgs})
		case "deselect":
			ctrl.Deselect()
			_ = writeFrame(serverFrame{Type: "idle"})
		default:
			_ = writeFrame(serverFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

func (h *SessionHandler) validateToken(header string) (int, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return 0, errors.New("invalid token")
	}
	return h.jwt.Verify(header[len(prefix):])
}
