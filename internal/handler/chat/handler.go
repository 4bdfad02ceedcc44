package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	chatmodel "github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/ratelimit"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
	"github.com/jordanmt/career-compass/backend/pkg/utils"
)

// Quotas carries the per-user-type daily message limits.
type Quotas struct {
	Guest   int
	Regular int
}

// Handler serves the chat HTTP surface: the streaming turn endpoint,
// history, and deletion.
type Handler struct {
	turns   *turn.Manager
	store   storage.Store
	limiter ratelimit.Limiter
	quotas  Quotas
}

// New creates the chat handler.
func New(turns *turn.Manager, store storage.Store, limiter ratelimit.Limiter, quotas Quotas) *Handler {
	return &Handler{turns: turns, store: store, limiter: limiter, quotas: quotas}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleTurn)
	r.Delete("/chat", h.handleDelete)
	r.Get("/chat/{chatID}/messages", h.handleMessages)
}

// TurnPayload is the POST /chat request body.
type TurnPayload struct {
	ChatID              string `json:"chatId"`
	Message             string `json:"message"`
	SelectedPersonaHint string `json:"selectedPersonaHint,omitempty"`
	Visibility          string `json:"visibility,omitempty"`
}

// handleTurn validates the request, then streams the turn's events as SSE.
// All client-input errors surface before any streaming begins.
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload TurnPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), "user:"+session.UserID, h.quotaFor(session.UserType))
	if err != nil {
		// Limiter malfunction fails open.
		log.Printf("[chat] limiter error for user=%s: %v", session.UserID, err)
		allowed = true
	}
	if !allowed {
		utils.RespondError(w, http.StatusTooManyRequests, "daily message limit reached")
		return
	}

	c, err := h.resolveChat(r, session, &payload)
	if err != nil {
		respondChatError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := h.turns.StartTurn(r.Context(), turn.Request{
		Chat:        c,
		Message:     payload.Message,
		PersonaHint: payload.SelectedPersonaHint,
		UserName:    session.UserID,
	})
	if err != nil {
		if errors.Is(err, turn.ErrTurnInFlight) {
			utils.RespondError(w, http.StatusConflict, "a response is already being generated for this chat")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to start turn")
		return
	}

	utils.SetupSSEHeaders(w)
	for ev := range events {
		utils.SendSSEChunk(w, flusher, ev)
	}
}

// handleMessages returns persisted history for a chat the caller may read.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chatID := chi.URLParam(r, "chatID")
	c, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		respondChatError(w, err)
		return
	}
	if c.UserID != session.UserID && c.Visibility != chatmodel.VisibilityPublic {
		utils.RespondError(w, http.StatusForbidden, "forbidden")
		return
	}

	msgs, err := h.store.MessagesByChat(r.Context(), chatID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, msgs)
}

// handleDelete removes a chat owned by the caller.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	chatID := r.URL.Query().Get("id")
	if chatID == "" {
		utils.RespondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	c, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		respondChatError(w, err)
		return
	}
	if c.UserID != session.UserID {
		utils.RespondError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.store.DeleteChat(r.Context(), chatID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// resolveChat loads an existing chat (verifying ownership) or creates one
// when the id is new.
func (h *Handler) resolveChat(r *http.Request, session auth.Session, payload *TurnPayload) (chatmodel.Chat, error) {
	if payload.ChatID == "" {
		payload.ChatID = uuid.NewString()
	}

	c, err := h.store.GetChat(r.Context(), payload.ChatID)
	switch {
	case err == nil:
		if c.UserID != session.UserID {
			return chatmodel.Chat{}, errForbidden
		}
		return c, nil
	case errors.Is(err, storage.ErrNotFound):
		visibility := chatmodel.VisibilityPrivate
		if payload.Visibility == string(chatmodel.VisibilityPublic) {
			visibility = chatmodel.VisibilityPublic
		}
		c = chatmodel.Chat{
			ID:         payload.ChatID,
			UserID:     session.UserID,
			Title:      titleFrom(payload.Message),
			Visibility: visibility,
		}
		if err := h.store.SaveChat(r.Context(), c); err != nil {
			return chatmodel.Chat{}, err
		}
		return c, nil
	default:
		return chatmodel.Chat{}, err
	}
}

var errForbidden = errors.New("forbidden")

func respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errForbidden):
		utils.RespondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "chat not found")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

// titleFrom derives a chat title from the first message, truncated on rune
// boundaries so multi-byte text stays valid UTF-8.
func titleFrom(message string) string {
	title := strings.TrimSpace(message)
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	return title
}

func (h *Handler) quotaFor(t auth.UserType) int {
	if t == auth.UserTypeGuest {
		return h.quotas.Guest
	}
	return h.quotas.Regular
}
