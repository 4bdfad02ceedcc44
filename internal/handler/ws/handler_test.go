package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jordanmt/career-compass/backend/internal/auth"
	wshandler "github.com/jordanmt/career-compass/backend/internal/handler/ws"
	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/service/agent"
	memoryservice "github.com/jordanmt/career-compass/backend/internal/service/memory"
	"github.com/jordanmt/career-compass/backend/internal/service/routing"
	"github.com/jordanmt/career-compass/backend/internal/service/tools"
	"github.com/jordanmt/career-compass/backend/internal/service/turn"
	"github.com/jordanmt/career-compass/backend/internal/storage"
)

type staticProvider struct{ text string }

func (p *staticProvider) Stream(_ context.Context, _ string, _ []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: p.text},
	}), nil
}

func newTestServer(t *testing.T, provider agent.ModelProvider) *httptest.Server {
	t.Helper()
	registry, err := persona.NewRegistry(persona.Seed())
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	store := storage.NewMemoryStore()
	memory := memoryservice.NewService(store, 50)
	adapter := agent.New(registry, provider, tools.NewRegistry(nil))
	manager := turn.NewManager(registry, routing.New(registry), adapter, store, memory, 5*time.Second)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.Session{UserID: "user-1", UserType: auth.UserTypeRegular}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	})
	wshandler.New(manager, store).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTurnOverWebSocket(t *testing.T) {
	srv := newTestServer(t, &staticProvider{text: "Hello from the counselor."})
	conn := dial(t, srv)

	err := conn.WriteJSON(map[string]string{"message": "hi there"})
	if err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var sawDelta, sawFinish bool
	deadline := time.Now().Add(5 * time.Second)
	for !sawFinish {
		conn.SetReadDeadline(deadline)
		var ev agent.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		switch ev.Type {
		case agent.EventTextDelta:
			sawDelta = true
		case agent.EventFinish:
			sawFinish = true
		case agent.EventError:
			t.Fatalf("unexpected error event: %+v", ev)
		}
	}
	if !sawDelta {
		t.Fatal("no text-delta received")
	}
}

func TestEmptyMessageReturnsErrorFrame(t *testing.T) {
	srv := newTestServer(t, &staticProvider{text: "unused"})
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]string{"message": "   "}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "error" || frame.Error == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}
