package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quitpool/challenge-engine/pool"
	"github.com/quitpool/challenge-engine/pool/store"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type fixture struct {
	router  http.Handler
	store   *store.TxMemory
	repo    *pool.Repository
	tracker *pool.Tracker
}

func newFixture(now time.Time) *fixture {
	mem := store.NewTxMemory()
	clock := pool.ClockFunc(func() time.Time { return now })
	repo := pool.NewRepository(mem, clock, pool.StaticSettings{})
	tracker := pool.NewTracker(mem, clock)
	h := NewHandler(repo, tracker, zap.NewNop())
	return &fixture{
		router:  NewRouter(h, []string{"*"}),
		store:   mem,
		repo:    repo,
		tracker: tracker,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodePool(t *testing.T, rec *httptest.ResponseRecorder) PoolDTO {
	t.Helper()
	var dto PoolDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

// =============================================================================
// POOL ENDPOINTS
// =============================================================================

func TestGetCurrentPool_NotFound(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodGet, "/api/pools/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollChallenger_CreatesPoolLazily(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodPost, "/api/pools/current/challengers", EnrollRequest{Count: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decodePool(t, rec)
	assert.Equal(t, "July 2024", dto.Title)
	assert.Equal(t, "88.88", dto.Amount)
	assert.Equal(t, 2, dto.NextChallengerNum)

	// The pool now exists for GET /current.
	rec = f.do(t, http.MethodGet, "/api/pools/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.ID, decodePool(t, rec).ID)
}

func TestEnrollChallenger_InvalidBody(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	req := httptest.NewRequest(http.MethodPost, "/api/pools/current/challengers",
		bytes.NewBufferString(`{"count": "three"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnrollChallenger_ClosedPoolConflict(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	p, err := f.repo.CurrentOrCreatePool(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.ClosePool(ctx, p.ID))

	rec := f.do(t, http.MethodPost, "/api/pools/current/challengers", EnrollRequest{Count: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetPrize(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	p, err := f.repo.CurrentOrCreatePool(ctx)
	require.NoError(t, err)
	got, err := f.store.GetPool(ctx, p.ID)
	require.NoError(t, err)
	got.Award = decimal.RequireFromString("88.88")
	require.NoError(t, f.store.UpdatePool(ctx, got))

	rec := f.do(t, http.MethodGet, "/api/pools/"+string(p.ID)+"/prize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// 88.88 - 12% = 78.2144 -> 78.21
	assert.Equal(t, "78.21", body["prize"])
	assert.Equal(t, "$78.21", body["prize_formatted"])
}

func TestGetPool_NotFound(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodGet, "/api/pools/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOpenAndAvailablePools(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodPost, "/api/pools/current/challengers", EnrollRequest{Count: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, path := range []string{"/api/pools/open", "/api/pools/available"} {
		rec := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var pools []PoolDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pools))
		assert.Len(t, pools, 1, path)
	}
}

func TestRecalculateAward_Endpoint(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	p, err := f.repo.CurrentOrCreatePool(ctx)
	require.NoError(t, err)
	_, err = f.tracker.AddChallenger(ctx, p.ID, 2, pool.AppointmentParticipant)
	require.NoError(t, err)

	chs, err := f.store.Challengers(ctx, p.ID)
	require.NoError(t, err)
	for _, ch := range chs {
		require.NoError(t, f.tracker.SetActivity(ctx, ch.ID, true, false))
	}

	rec := f.do(t, http.MethodPost, "/api/pools/"+string(p.ID)+"/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decodePool(t, rec)
	assert.Equal(t, "88.88", dto.Award) // 177.76 / 2
}

// =============================================================================
// CHALLENGER ENDPOINTS
// =============================================================================

func TestSetActivity_Endpoint(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	p, err := f.repo.CurrentOrCreatePool(ctx)
	require.NoError(t, err)
	_, err = f.tracker.AddChallenger(ctx, p.ID, 1, pool.AppointmentParticipant)
	require.NoError(t, err)
	chs, err := f.store.Challengers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, chs, 1)

	rec := f.do(t, http.MethodPost, "/api/challengers/"+string(chs[0].ID)+"/activity",
		ActivityRequest{Active: true, StrictOK: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := f.store.GetChallenger(ctx, chs[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.True(t, got.StrictOK)
}

func TestSetActivity_UnknownChallenger(t *testing.T) {
	f := newFixture(time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodPost, "/api/challengers/missing/activity",
		ActivityRequest{Active: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListChallengers_Endpoints(t *testing.T) {
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	ctx := context.Background()

	p, err := f.repo.CurrentOrCreatePool(ctx)
	require.NoError(t, err)
	_, err = f.tracker.AddChallenger(ctx, p.ID, 3, pool.AppointmentParticipant)
	require.NoError(t, err)
	chs, err := f.store.Challengers(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.tracker.SetActivity(ctx, chs[0].ID, true, false))

	rec := f.do(t, http.MethodGet, "/api/pools/"+string(p.ID)+"/challengers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []ChallengerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = f.do(t, http.MethodGet, "/api/pools/"+string(p.ID)+"/challengers/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []ChallengerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, string(chs[0].ID), active[0].ID)
}
