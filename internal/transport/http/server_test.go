package http

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"quiz-poll-bot/internal/domain"
)

func TestHealthz(t *testing.T) {
	_, server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
}

func TestExportRequiresToken(t *testing.T) {
	engine, server := newTestServer(t)
	engine.RecordAnswer(domain.AnswerEvent{PollID: "p1", ParticipantID: 9, DisplayName: "Ann", OptionIDs: []int{1}})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Basic secret", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/export.csv", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
		if tc.status == http.StatusOK {
			lines := strings.Split(strings.TrimSpace(string(body)), "\n")
			if len(lines) != 2 || !strings.HasPrefix(lines[1], "9,Ann,math,1,1,0") {
				t.Fatalf("unexpected csv %q", body)
			}
		}
	}
}
