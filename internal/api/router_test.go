package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/isdelr/ender-watch/internal/auth"
	"github.com/isdelr/ender-watch/internal/models"
	"github.com/isdelr/ender-watch/internal/monitoring"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/isdelr/ender-watch/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	running bool
}

func (f *fakeCapture) Start() error {
	if f.running {
		return monitoring.ErrCaptureRunning
	}
	f.running = true
	return nil
}

func (f *fakeCapture) Stop() error {
	if !f.running {
		return monitoring.ErrCaptureStopped
	}
	f.running = false
	return nil
}

func (f *fakeCapture) Running() bool { return f.running }

type fakeAnalyzer struct {
	lastWindow int
}

func (f *fakeAnalyzer) Run(_ context.Context, windowHours int) models.Report {
	f.lastWindow = windowHours
	return models.Report{ID: "rep", WindowHours: windowHours, Alerts: []models.Alert{}, Empty: true}
}

type testEnv struct {
	router   http.Handler
	capture  *fakeCapture
	analyzer *fakeAnalyzer
	events   *services.EventService
}

func newTestEnv(t *testing.T, secret []byte) *testEnv {
	t.Helper()
	root := t.TempDir()
	events := services.NewEventService(root + "/db/logs.db")
	require.NoError(t, events.Initialize(context.Background()))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	env := &testEnv{capture: &fakeCapture{}, analyzer: &fakeAnalyzer{}, events: events}
	env.router = NewRouter(
		RouterOptions{AllowedOrigin: "http://localhost:3000", TokenSecret: secret, DefaultWindowHours: 1},
		hub, env.capture, events, env.analyzer, services.NewWorkspaceService(root, events.Path()),
	)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCaptureRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/capture/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running":false}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/v1/capture/start", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"running":true}`, rec.Body.String())

	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/api/v1/capture/start", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/v1/capture/stop", "").Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/api/v1/capture/stop", "").Code)
}

func TestAnalysisRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.analyzer.lastWindow)

	rec = env.do(http.MethodGet, "/api/v1/analysis?window_hours=24", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, env.analyzer.lastWindow)

	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "rep", report.ID)
	assert.True(t, report.Empty)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/analysis?window_hours=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/analysis?window_hours=abc", "").Code)
}

func TestEventsRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/v1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ctx := context.Background()
	for _, d := range []string{"a", "b", "c"} {
		_, err := env.events.Append(ctx, time.Now(), models.EventAppOpened, d)
		require.NoError(t, err)
	}

	rec = env.do(http.MethodGet, "/api/v1/events?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.LogEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Details)
	assert.Equal(t, "c", got[1].Details)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/events?since=yesterday", "").Code)
}

func TestWorkspaceRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/v1/workspace/files", `{"name":"hello.txt"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello.txt")

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/v1/workspace/files/hello.txt", "").Code)
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/v1/workspace/folders", `{"name":"inbox"}`).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/v1/workspace/folders/inbox", "").Code)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/workspace/files", `{"name":"../escape"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/workspace/files", `not json`).Code)

	// The store and the folder holding it are off limits.
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, "/api/v1/workspace/folders/db", "").Code)
	assert.FileExists(t, env.events.Path())
}

func TestTokenRequiredWhenSecretSet(t *testing.T) {
	secret := []byte("s3cret")
	env := newTestEnv(t, secret)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/capture/", "").Code)

	token, err := auth.GenerateToken(secret, "operator", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/capture/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Metrics stay reachable without a token.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/metrics", "").Code)
}

func TestWebSocketRunAnalysis(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.Message{
		Action:  websocket.ActionRunAnalysis,
		Payload: map[string]int{"window_hours": 3},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply struct {
		Action  string        `json:"action"`
		Payload models.Report `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, websocket.ActionAnalysisReport, reply.Action)
	assert.Equal(t, 3, reply.Payload.WindowHours)

	require.NoError(t, conn.WriteJSON(websocket.Message{Action: "reboot"}))
	var errReply websocket.Message
	require.NoError(t, conn.ReadJSON(&errReply))
	assert.Equal(t, websocket.ActionError, errReply.Action)
}
