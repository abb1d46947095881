package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
)

const testChat int64 = -3003

type wsMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

func newTestServer(t *testing.T) (*app.Engine, *httptest.Server) {
	t.Helper()
	engine := app.NewEngine()
	engine.RegisterPoll(domain.PollRecord{PollID: "p1", Subject: "math", CorrectOption: 1, ChatID: testChat})
	server := httptest.NewServer(NewRouter(engine, RouterConfig{AdminToken: "secret", LeaderboardSize: 10}, nil))
	t.Cleanup(server.Close)
	return engine, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg
}

func TestWebSocketStreamsLeaderboard(t *testing.T) {
	engine, server := newTestServer(t)
	conn := dial(t, server, "chatId=-3003&top=5")

	// Current board first.
	initial := readNext(conn, t, "leaderboard")
	if len(initial.Payload.Entries) != 0 {
		t.Fatalf("expected empty initial board, got %+v", initial.Payload)
	}

	engine.RecordAnswer(domain.AnswerEvent{PollID: "p1", ParticipantID: 9, DisplayName: "Ann", OptionIDs: []int{1}})

	update := readNext(conn, t, "leaderboard")
	if len(update.Payload.Entries) != 1 || update.Payload.Entries[0].DisplayName != "Ann" {
		t.Fatalf("unexpected update %+v", update.Payload)
	}
	if update.Payload.ChatID != testChat {
		t.Fatalf("expected chat %d, got %d", testChat, update.Payload.ChatID)
	}
}

func TestWebSocketRefreshAndUnknownType(t *testing.T) {
	_, server := newTestServer(t)
	conn := dial(t, server, "chatId=-3003")
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "refresh"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(conn, t, "leaderboard")

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(conn, t, "error")
}

func TestWebSocketRejectsBadQuery(t *testing.T) {
	_, server := newTestServer(t)
	for _, q := range []string{"", "chatId=abc", "chatId=1&top=-2"} {
		resp, err := http.Get(server.URL + "/ws?" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}
