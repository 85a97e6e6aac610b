package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/engine"
	"github.com/hupe1980/ordermesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTurner struct {
	mu       sync.Mutex
	posted   []string
	sessions map[string]*core.Session
	ended    []string
}

func newFakeTurner() *fakeTurner {
	return &fakeTurner{sessions: map[string]*core.Session{}}
}

func (f *fakeTurner) PostTurn(_ context.Context, sessionID, text string) (core.TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return core.TurnResult{}, engine.ErrEmptyMessage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, sessionID+":"+text)
	return core.TurnResult{SessionID: sessionID, Reply: "echo: " + text, OrderState: core.OrderIdle, Guard: core.GuardAllowed}, nil
}

func (f *fakeTurner) Session(_ context.Context, id string) (*core.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s.Snapshot(), nil
}

func (f *fakeTurner) EndSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	delete(f.sessions, id)
	return nil
}

func (f *fakeTurner) ActiveSessions() int { return len(f.sessions) }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostSessionTurn(t *testing.T) {
	ft := newFakeTurner()
	h := New(ft).Handler()

	rec := do(t, h, http.MethodPost, "/v1/sessions/s1/turns", `{"message":"a latte"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res core.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, "echo: a latte", res.Reply)
	assert.Equal(t, []string{"s1:a latte"}, ft.posted)
}

func TestPostTurn_GeneratesSessionID(t *testing.T) {
	h := New(newFakeTurner()).Handler()

	rec := do(t, h, http.MethodPost, "/v1/turns", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res core.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.SessionID)
}

func TestPostTurn_BadRequests(t *testing.T) {
	h := New(newFakeTurner()).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/turns", `{"message":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/turns", `not json`).Code)
}

func TestPostTurn_RateLimitedPerSession(t *testing.T) {
	h := New(newFakeTurner(), func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 2
	}).Handler()

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/sessions/s1/turns", `{"message":"hi"}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/v1/sessions/s1/turns", `{"message":"hi"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/sessions/s2/turns", `{"message":"hi"}`).Code)
}

func TestGetAndDeleteSession(t *testing.T) {
	ft := newFakeTurner()
	ft.sessions["s1"] = testutil.NewSessionBuilder("s1").
		User("two lattes").Assistant("added").
		Line("latte", "Latte", "4.50", 2).
		State(core.OrderCollecting).
		Build()
	h := New(ft).Handler()

	rec := do(t, h, http.MethodGet, "/v1/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SessionID  string `json:"session_id"`
		Total      string `json:"total"`
		OrderState string `json:"order_state"`
		History    []core.Message
		Cart       []core.CartLine
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.SessionID)
	assert.Equal(t, "9", body.Total)
	assert.Equal(t, "collecting", body.OrderState)
	assert.Len(t, body.History, 2)
	assert.Len(t, body.Cart, 1)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/sessions/missing", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/sessions/s1", "").Code)
	assert.Equal(t, []string{"s1"}, ft.ended)
}

func TestHealthAndStats(t *testing.T) {
	h := New(newFakeTurner()).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active_sessions":0}`, rec.Body.String())
}
