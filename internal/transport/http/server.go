package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/export"
)

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	// AdminToken guards /export.csv; an empty token disables the endpoint.
	AdminToken      string
	LeaderboardSize int
}

// NewRouter serves health, the live leaderboard socket and the score export.
func NewRouter(engine *app.Engine, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := NewWSHandler(engine, cfg.LeaderboardSize, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("/export.csv", exportHandler(engine, cfg.AdminToken, logger))
	return mux
}

func exportHandler(engine *app.Engine, token string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token == "" {
			http.NotFound(w, r)
			return
		}
		if !authorized(r, token) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="scores_export.csv"`)
		if err := export.WriteCSV(w, engine.ScoreSnapshot()); err != nil {
			logger.Error("write export failed", zap.Error(err))
		}
	}
}

func authorized(r *http.Request, token string) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
