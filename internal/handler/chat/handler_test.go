package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	chathandler "github.com/jordanmt/career-compass/backend/internal/handler/chat"
	chatmodel "github.com/jordanmt/career-compass/backend/internal/model/chat"
	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/ratelimit"
	"github.com/jordanmt/career-compass/backend/internal/service/agent"
	memoryservice "github.com/jordanmt/career-compass/backend/internal/service/memory"
	"github.com/jordanmt/career-compass/backend/internal/service/routing"
	"github.com/jordanmt/career-compass/backend/internal/service/tools"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

type staticProvider struct {
	text string
	gate chan struct{}
}

func (p *staticProvider) Stream(_ context.Context, _ string, _ []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	if p.gate != nil {
		<-p.gate
	}
	return schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: p.text},
	}), nil
}

type fixture struct {
	router  chi.Router
	store   *storage.MemoryStore
	manager *turn.Manager
}

func newFixture(t *testing.T, provider agent.ModelProvider, quotas chathandler.Quotas) fixture {
	t.Helper()
	registry, err := persona.NewRegistry(persona.Seed())
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	store := storage.NewMemoryStore()
	memory := memoryservice.NewService(store, 50)
	adapter := agent.New(registry, provider, tools.NewRegistry(nil))
	manager := turn.NewManager(registry, routing.New(registry), adapter, store, memory, 5*time.Second)

	limiter := ratelimit.NewDailyQuota()
	t.Cleanup(func() { limiter.Close() })

	h := chathandler.New(manager, store, limiter, quotas)
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return fixture{router: router, store: store, manager: manager}
}

func authed(req *http.Request, userID string, userType auth.UserType) *http.Request {
	session := auth.Session{UserID: userID, UserType: userType}
	return req.WithContext(auth.WithSession(req.Context(), session))
}

func postTurn(fx fixture, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	if userID != "" {
		req = authed(req, userID, auth.UserTypeRegular)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestTurnRequiresSession(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})

	rec := postTurn(fx, "", `{"message":"hello"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTurnRejectsEmptyMessage(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})

	rec := postTurn(fx, "user-1", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTurnRejectsInvalidBody(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})

	rec := postTurn(fx, "user-1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTurnStreamsSSE(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "Welcome aboard."}, chathandler.Quotas{})

	rec := postTurn(fx, "user-1", `{"message":"hello there"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"text-delta"`) {
		t.Fatalf("missing text-delta frame: %s", body)
	}
	if !strings.Contains(body, `"type":"finish"`) {
		t.Fatalf("missing finish frame: %s", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Fatalf("not SSE framed: %s", body)
	}
}

func TestNewChatTitleKeepsRuneBoundaries(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})

	// Multi-byte runes positioned so a byte-wise 80-char cut would land
	// mid-rune and corrupt the title.
	message := "a" + strings.Repeat("é", 100)
	rec := postTurn(fx, "user-1", `{"chatId":"chat-title","message":"`+message+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	c, err := fx.store.GetChat(context.Background(), "chat-title")
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	if !utf8.ValidString(c.Title) {
		t.Fatalf("title is not valid UTF-8: %q", c.Title)
	}
	if n := utf8.RuneCountInString(c.Title); n != 80 {
		t.Fatalf("expected an 80-rune title, got %d runes", n)
	}
}

func TestTurnEnforcesDailyQuota(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{Guest: 1, Regular: 1})

	first := postTurn(fx, "user-1", `{"message":"one"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", first.Code)
	}
	second := postTurn(fx, "user-1", `{"message":"two"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestTurnRejectsForeignChat(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})
	ctx := context.Background()
	if err := fx.store.SaveChat(ctx, chatmodel.Chat{ID: "chat-1", UserID: "owner"}); err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}

	rec := postTurn(fx, "intruder", `{"chatId":"chat-1","message":"hello"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestTurnConflictWhenInFlight(t *testing.T) {
	provider := &staticProvider{text: "slow", gate: make(chan struct{})}
	fx := newFixture(t, provider, chathandler.Quotas{})
	ctx := context.Background()
	if err := fx.store.SaveChat(ctx, chatmodel.Chat{ID: "chat-1", UserID: "user-1"}); err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}

	// Occupy the chat directly, then hit the endpoint.
	events, err := fx.manager.StartTurn(ctx, turn.Request{
		Chat:    chatmodel.Chat{ID: "chat-1", UserID: "user-1"},
		Message: "first",
	})
	if err != nil {
		t.Fatalf("StartTurn err: %v", err)
	}

	rec := postTurn(fx, "user-1", `{"chatId":"chat-1","message":"second"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	close(provider.gate)
	for range events {
	}
}

func TestMessagesVisibility(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})
	ctx := context.Background()

	if err := fx.store.SaveChat(ctx, chatmodel.Chat{ID: "private-1", UserID: "owner", Visibility: chatmodel.VisibilityPrivate}); err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}
	if err := fx.store.SaveChat(ctx, chatmodel.Chat{ID: "public-1", UserID: "owner", Visibility: chatmodel.VisibilityPublic}); err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}
	if err := fx.store.SaveMessages(ctx, []chatmodel.Message{
		{ID: "m1", ChatID: "public-1", Role: chatmodel.RoleUser, Parts: []chatmodel.Part{chatmodel.TextPart("hi")}},
	}); err != nil {
		t.Fatalf("SaveMessages err: %v", err)
	}

	get := func(userID, chatID string) *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodGet, "/chat/"+chatID+"/messages", nil), userID, auth.UserTypeRegular)
		rec := httptest.NewRecorder()
		fx.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := get("stranger", "private-1"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for private chat, got %d", rec.Code)
	}
	if rec := get("owner", "private-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", rec.Code)
	}
	if rec := get("stranger", "missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown chat, got %d", rec.Code)
	}

	rec := get("stranger", "public-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for public chat, got %d", rec.Code)
	}
	var msgs []chatmodel.Message
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text() != "hi" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestDeleteChatOwnership(t *testing.T) {
	fx := newFixture(t, &staticProvider{text: "hi"}, chathandler.Quotas{})
	ctx := context.Background()
	if err := fx.store.SaveChat(ctx, chatmodel.Chat{ID: "chat-1", UserID: "owner"}); err != nil {
		t.Fatalf("SaveChat err: %v", err)
	}

	del := func(userID, chatID string) *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodDelete, "/chat?id="+chatID, nil), userID, auth.UserTypeRegular)
		rec := httptest.NewRecorder()
		fx.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := del("stranger", "chat-1"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := del("owner", "chat-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := del("owner", "chat-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
