package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

func transcriptRouter(store Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/conversations/{conversationID}/session", NewHandler(store, logging.Discard()).GetTranscript)
	return r
}

func TestHandler_GetTranscript(t *testing.T) {
	store := NewMemoryStore()
	sess := New("5215512345678", time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	sess.UserName = "Juan"
	sess.AppendTurn("Hola, soy Juan", "¡Hola Juan! ¿En qué vehículo estás interesado?", 4000)
	require.NoError(t, store.Upsert(context.Background(), sess))

	rec := httptest.NewRecorder()
	transcriptRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/5215512345678/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Juan", resp.Session.UserName)
	require.Len(t, resp.Turns, 2)
	assert.True(t, resp.Turns[0].FromCustomer)
	assert.Equal(t, "Hola, soy Juan", resp.Turns[0].Text)
	assert.False(t, resp.Turns[1].FromCustomer)
}

func TestHandler_GetTranscriptNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	transcriptRouter(NewMemoryStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/521/session", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, id string) (*Session, error) {
	return nil, errors.New("redis down")
}

func (failingStore) Upsert(ctx context.Context, s *Session) error { return nil }

func TestHandler_GetTranscriptStoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	transcriptRouter(failingStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/conversations/521/session", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
