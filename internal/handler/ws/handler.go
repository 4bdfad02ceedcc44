// Package ws streams chat turns over WebSocket for clients that prefer a
// bidirectional connection to SSE. Event semantics are identical to the
// POST /chat stream.
package ws

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	chatmodel "github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

const writeTimeout = 10 * time.Second

// Handler upgrades connections and relays turn events as JSON frames.
type Handler struct {
	turns    *turn.Manager
	store    storage.Store
	upgrader websocket.Upgrader
}

// New creates the WebSocket chat handler.
func New(turns *turn.Manager, store storage.Store) *Handler {
	return &Handler{
		turns: turns,
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleConn)
}

type turnFrame struct {
	ChatID              string `json:"chatId"`
	Message             string `json:"message"`
	SelectedPersonaHint string `json:"selectedPersonaHint,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleConn serves one connection: each inbound frame starts a turn whose
// events are written back in order until the terminal event.
func (h *Handler) handleConn(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var frame turnFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}
		if strings.TrimSpace(frame.Message) == "" {
			h.writeError(conn, "message is required")
			continue
		}
		h.runTurn(r, conn, session, frame)
	}
}

func (h *Handler) runTurn(r *http.Request, conn *websocket.Conn, session auth.Session, frame turnFrame) {
	c, err := h.resolveChat(r, session, frame)
	if err != nil {
		h.writeError(conn, err.Error())
		return
	}

	events, err := h.turns.StartTurn(r.Context(), turn.Request{
		Chat:        c,
		Message:     frame.Message,
		PersonaHint: frame.SelectedPersonaHint,
		UserName:    session.UserID,
	})
	if err != nil {
		if errors.Is(err, turn.ErrTurnInFlight) {
			h.writeError(conn, "a response is already being generated for this chat")
			return
		}
		h.writeError(conn, "failed to start turn")
		return
	}

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("[ws] write failed for chat=%s: %v", c.ID, err)
			// Keep draining so finalization still runs server-side.
			for range events {
			}
			return
		}
	}
}

func (h *Handler) resolveChat(r *http.Request, session auth.Session, frame turnFrame) (chatmodel.Chat, error) {
	if frame.ChatID == "" {
		frame.ChatID = uuid.NewString()
	}
	c, err := h.store.GetChat(r.Context(), frame.ChatID)
	switch {
	case err == nil:
		if c.UserID != session.UserID {
			return chatmodel.Chat{}, errors.New("forbidden")
		}
		return c, nil
	case errors.Is(err, storage.ErrNotFound):
		c = chatmodel.Chat{
			ID:         frame.ChatID,
			UserID:     session.UserID,
			Title:      frame.Message,
			Visibility: chatmodel.VisibilityPrivate,
		}
		if err := h.store.SaveChat(r.Context(), c); err != nil {
			return chatmodel.Chat{}, errors.New("failed to create chat")
		}
		return c, nil
	default:
		return chatmodel.Chat{}, errors.New("internal error")
	}
}

func (h *Handler) writeError(conn *websocket.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(errorFrame{Type: "error", Error: message}); err != nil {
		log.Printf("[ws] error write failed: %v", err)
	}
}
