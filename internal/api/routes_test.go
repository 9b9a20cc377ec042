package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/adapters/memory"
	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/internal/audio"
	"github.com/ob1hnk/triolingo/internal/auth"
	"github.com/ob1hnk/triolingo/internal/websocket"
	"github.com/ob1hnk/triolingo/usecase"
)

type stubWriter struct {
	reply string
}

func (s *stubWriter) Respond(ctx context.Context, text string, history *entities.ConversationHistory) (string, error) {
	return s.reply, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, input entities.VoiceInput, language string) (string, error) {
	return "hello", nil
}

func newTestServer(t *testing.T, tokens *auth.TokenIssuer) (*echo.Echo, *websocket.Hub) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewConversationStore()

	hub := websocket.NewHub(websocket.HubDeps{
		Assembler: audio.NewAssembler(logger),
		TwoStage:  usecase.NewTwoStageConversation(stubTranscriber{}, &stubWriter{reply: "hi"}, store, logger),
		Store:     store,
	}, logger)
	go hub.Run()

	e := echo.New()
	InitRoutes(e, Deps{
		Hub:          hub,
		Letters:      usecase.NewLetterService(&stubWriter{reply: "Dear child, thank you."}, memory.NewLetterRepository(), logger),
		Tokens:       tokens,
		ClientSecret: "client-secret",
	}, logger)
	return e, hub
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec := doJSON(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestLetterRoutes(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/api/v1/letter/generate",
		`{"user_id": "u1", "user_letter": "Hello mom!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var generated GenerateLetterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &generated); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if generated.LetterID == "" || generated.UserLetter != "Hello mom!" {
		t.Errorf("Unexpected response: %+v", generated)
	}
	if generated.GeneratedResponseLetter != "Dear child, thank you." {
		t.Errorf("Unexpected reply: %s", generated.GeneratedResponseLetter)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/letter/"+generated.LetterID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var letter entities.Letter
	json.Unmarshal(rec.Body.Bytes(), &letter)
	if letter.UserID != "u1" {
		t.Errorf("Expected user u1, got %s", letter.UserID)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/users/u1/letters", "")
	var letters []entities.Letter
	json.Unmarshal(rec.Body.Bytes(), &letters)
	if rec.Code != http.StatusOK || len(letters) != 1 {
		t.Errorf("Expected one letter, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/users/nobody/letters", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty list, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLetterRoutes_Errors(t *testing.T) {
	e, _ := newTestServer(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"missing letter", http.MethodPost, "/api/v1/letter/generate", `{"user_id": "u1"}`, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/api/v1/letter/generate", `{"user_letter": "hi"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/letter/generate", `{"user_id":`, http.StatusBadRequest},
		{"unknown letter", http.MethodGet, "/api/v1/letter/does-not-exist", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(e, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIssueToken(t *testing.T) {
	issuer, _ := auth.NewTokenIssuer("jwt-secret", time.Hour)
	e, _ := newTestServer(t, issuer)

	rec := doJSON(e, http.MethodPost, "/api/v1/auth/token",
		`{"client_id": "unity", "client_secret": "client-secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if _, err := issuer.Validate(resp.Token); err != nil {
		t.Errorf("Expected issued token to validate, got %v", err)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/token",
		`{"client_id": "unity", "client_secret": "wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/token", `{"client_id": "unity"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	disabled, _ := newTestServer(t, nil)
	rec = doJSON(disabled, http.MethodPost, "/api/v1/auth/token",
		`{"client_id": "unity", "client_secret": "client-secret"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with auth disabled, got %d", rec.Code)
	}
}

func TestRealtimeStatus(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doJSON(e, http.MethodGet, "/api/v1/realtime/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status RealtimeStatusResponse
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status != "unavailable" {
		t.Errorf("Expected unavailable without realtime backend, got %s", status.Status)
	}
	if status.AvailableEndpoints[string(websocket.EndpointRealtime)] != "/ws/realtime/v1" {
		t.Errorf("Unexpected endpoints: %v", status.AvailableEndpoints)
	}
}

func TestWebSocketAuth(t *testing.T) {
	issuer, _ := auth.NewTokenIssuer("jwt-secret", time.Hour)
	e, hub := newTestServer(t, issuer)
	server := httptest.NewServer(e)
	defer server.Close()
	base := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := gorilla.DefaultDialer.Dial(base+"/ws/speech/v1", nil)
	if err == nil {
		t.Fatal("Expected connection without token to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %v", resp)
	}

	_, resp, err = gorilla.DefaultDialer.Dial(base+"/ws/speech/v1?token=garbage", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected invalid token to be rejected, got %v", err)
	}

	token, _, _ := issuer.Issue("unity")
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, _, err := gorilla.DefaultDialer.Dial(base+"/ws/speech/v1", header)
	if err != nil {
		t.Fatalf("Expected authenticated connection, got %v", err)
	}
	defer ws.Close()

	ws.WriteJSON(map[string]interface{}{"type": "SESSION_START", "session_id": "s1"})
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack map[string]interface{}
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("Failed to read ACK: %v", err)
	}
	if ack["type"] != "ACK" {
		t.Errorf("Expected ACK, got %v", ack)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.ActiveClients()[websocket.EndpointSpeechTwoStage] != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ActiveClients()[websocket.EndpointSpeechTwoStage] != 1 {
		t.Errorf("Expected 1 active client, got %v", hub.ActiveClients())
	}
}

func TestWebSocketWithoutAuth(t *testing.T) {
	e, _ := newTestServer(t, nil)
	server := httptest.NewServer(e)
	defer server.Close()

	ws, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/realtime/v1", nil)
	if err != nil {
		t.Fatalf("Expected connection, got %v", err)
	}
	defer ws.Close()

	// no realtime backend is wired, so the stream cannot start
	ws.WriteJSON(map[string]interface{}{"type": "STREAM_START", "session_id": "rt"})
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]interface{}
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if msg["type"] != "STREAM_ERROR" || msg["error_code"] != websocket.ErrorCodeUpstream {
		t.Errorf("Expected upstream error, got %v", msg)
	}
}
