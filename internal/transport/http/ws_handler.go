package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"quiz-poll-bot/internal/app"
)

type WSHandler struct {
	engine     *app.Engine
	defaultTop int
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewWSHandler(engine *app.Engine, defaultTop int, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		engine:     engine,
		defaultTop: defaultTop,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams the live leaderboard of one chat to a websocket client.
// Clients may send {"type":"refresh"} to get the current board on demand.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid chatId", http.StatusBadRequest)
		return
	}
	top := h.defaultTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, err = strconv.Atoi(raw)
		if err != nil || top < 0 {
			http.Error(w, "invalid top", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.Int64("chat_id", chatID), zap.String("remote", r.RemoteAddr))
	logger.Debug("leaderboard subscriber connected")

	updates, cancel := h.engine.Subscribe(chatID, top)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var msg outboundMessage[any]
		switch inbound.Type {
		case "refresh":
			msg = outboundMessage[any]{Type: "leaderboard", Payload: h.engine.Leaderboard(chatID, top)}
		case "ping":
			msg = outboundMessage[any]{Type: "pong"}
		default:
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	logger.Debug("leaderboard subscriber disconnected")
}
