package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/store"
)

func TestHistoryHandlerListRuns(t *testing.T) {
	t.Parallel()

	repo := &mockRunRepo{
		runs: []store.Run{{
			ID:        uuid.New(),
			Kind:      "audio",
			Status:    store.RunDone,
			StartedAt: time.Now().Add(-time.Hour),
		}},
	}
	handler := NewHistoryHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/history?status=success&limit=10000&offset=2", nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["runs"], 1)
	require.Equal(t, "audio", body["runs"][0]["kind"])
	require.NotNil(t, repo.lastStatus)
	require.Equal(t, store.RunDone, *repo.lastStatus)
	require.Equal(t, maxRunLimit, repo.lastLimit)
	require.Equal(t, 2, repo.lastOffset)
}

func TestHistoryHandlerRejectsBadQuery(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(&mockRunRepo{}, zap.NewNop())
	for _, target := range []string{
		"/v1/history?limit=-1",
		"/v1/history?offset=x",
		"/v1/history?status=paused",
	} {
		rec := httptest.NewRecorder()
		handler.ListRuns(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHistoryHandlerUnavailable(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(nil, nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	id := uuid.New()
	rec = httptest.NewRecorder()
	handler.GetRun(rec, withRunIDParam(httptest.NewRequest(http.MethodGet, "/v1/history/"+id.String(), nil), id.String()))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryHandlerGetRun(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	msg := "audio: item 2 of 3: boom"
	repo := &mockRunRepo{runs: []store.Run{{ID: id, Kind: "audio", Status: store.RunFailed, ErrorMessage: &msg}}}
	handler := NewHistoryHandler(repo, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.GetRun(rec, withRunIDParam(httptest.NewRequest(http.MethodGet, "/", nil), id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), msg)

	missing := uuid.New()
	rec = httptest.NewRecorder()
	handler.GetRun(rec, withRunIDParam(httptest.NewRequest(http.MethodGet, "/", nil), missing.String()))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.GetRun(rec, withRunIDParam(httptest.NewRequest(http.MethodGet, "/", nil), "nope"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryHandlerRepoError(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(&mockRunRepo{err: errors.New("db down")}, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type mockRunRepo struct {
	runs       []store.Run
	err        error
	lastStatus *store.RunStatus
	lastLimit  int
	lastOffset int
}

func (m *mockRunRepo) UpsertRunStart(context.Context, uuid.UUID, string, int, time.Time) error {
	return nil
}

func (m *mockRunRepo) AddTicks(context.Context, uuid.UUID, int64, time.Time) error {
	return nil
}

func (m *mockRunRepo) CompleteRun(context.Context, uuid.UUID, time.Time, store.RunStatus, *string) error {
	return nil
}

func (m *mockRunRepo) GetRun(_ context.Context, id uuid.UUID) (store.Run, error) {
	if m.err != nil {
		return store.Run{}, m.err
	}
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return store.Run{}, store.ErrNotFound
}

func (m *mockRunRepo) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	m.lastStatus = status
	m.lastLimit = limit
	m.lastOffset = offset
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

func withRunIDParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("run_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
