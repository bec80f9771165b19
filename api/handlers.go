/*
handlers.go - HTTP API handlers for the challenge pool engine

PURPOSE:
  Exposes the pool engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Pools:
    GET  /api/pools/current            Current pool (404 when none)
    POST /api/pools/current/challengers Enroll into current pool
                                        (creates the pool lazily)
    GET  /api/pools/available          Open pools up to today
    GET  /api/pools/open               All open pools
    GET  /api/pools/last-ended         Pool entering activity testing
    GET  /api/pools/last-finished      Pool with all results known
    GET  /api/pools/{id}               Pool by ID
    GET  /api/pools/{id}/prize         Tax-adjusted prize
    GET  /api/pools/{id}/challengers   All enrollment records
    GET  /api/pools/{id}/challengers/active Active challengers (?strict=true)
    POST /api/pools/{id}/recalculate   Recalculate award (?strict=true)

  Challengers:
    POST /api/challengers/{id}/activity Record activity verdict

ERROR HANDLING:
  - 400: invalid JSON body
  - 404: absent pool/challenger (a normal outcome, still a 404)
  - 409: enrollment into a closed pool
  - 500: storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Lifecycle job (close + recalculate)
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quitpool/challenge-engine/pool"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo    *pool.Repository
	Tracker *pool.Tracker
	Logger  *zap.Logger
}

func NewHandler(repo *pool.Repository, tracker *pool.Tracker, logger *zap.Logger) *Handler {
	return &Handler{Repo: repo, Tracker: tracker, Logger: logger}
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

// GetCurrentPool returns the pool for the current period. No pool yet
// is a normal outcome and maps to 404.
func (h *Handler) GetCurrentPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.CurrentPool(r.Context())
	if err != nil {
		h.writePoolError(w, "Failed to resolve current pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(p))
}

// EnrollChallenger enrolls challengers into the current pool, creating
// the pool lazily when this is the period's first enrollment.
func (h *Handler) EnrollChallenger(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appointment := pool.Appointment(req.Appointment)
	if appointment == "" {
		appointment = pool.AppointmentParticipant
	}

	p, err := h.Repo.CurrentOrCreatePool(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve pool", err)
		return
	}

	updated, err := h.Tracker.AddChallenger(r.Context(), p.ID, req.Count, appointment)
	if err != nil {
		if errors.Is(err, pool.ErrPoolClosed) {
			writeError(w, http.StatusConflict, "Pool is closed", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to enroll challenger", err)
		return
	}

	h.Logger.Info("challenger enrolled",
		zap.String("pool", string(updated.ID)),
		zap.String("title", updated.Title()),
		zap.Int("count", req.Count),
		zap.String("appointment", string(appointment)),
		zap.String("amount", updated.Amount.String()))

	writeJSON(w, http.StatusCreated, toPoolDTO(updated))
}

// ListAvailablePools returns all outstanding pools up to today.
func (h *Handler) ListAvailablePools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Repo.AvailablePools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pools", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTOs(pools))
}

// ListOpenPools returns all non-closed pools.
func (h *Handler) ListOpenPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Repo.OpenPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pools", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTOs(pools))
}

// GetLastEndedPool returns the pool whose activity testing should begin.
func (h *Handler) GetLastEndedPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.LastEndedPool(r.Context())
	if err != nil {
		h.writePoolError(w, "Failed to resolve last ended pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(p))
}

// GetLastFinishedPool returns the pool with all test results known.
func (h *Handler) GetLastFinishedPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.LastFinishedPool(r.Context())
	if err != nil {
		h.writePoolError(w, "Failed to resolve last finished pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(p))
}

// GetPool returns a pool by ID (closed pools stay readable for auditing).
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.Store.GetPool(r.Context(), pool.PoolID(chi.URLParam(r, "id")))
	if err != nil {
		h.writePoolError(w, "Failed to get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(p))
}

// GetPrize returns the pool's tax-adjusted prize in both raw and
// formatted forms.
func (h *Handler) GetPrize(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.Store.GetPool(r.Context(), pool.PoolID(chi.URLParam(r, "id")))
	if err != nil {
		h.writePoolError(w, "Failed to get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"prize":           p.Prize().String(),
		"prize_formatted": p.FormattedPrize(),
	})
}

// RecalculateAward recomputes the award from the active-challenger
// count. With zero active challengers the award is left unchanged.
func (h *Handler) RecalculateAward(w http.ResponseWriter, r *http.Request) {
	id := pool.PoolID(chi.URLParam(r, "id"))
	strict := r.URL.Query().Get("strict") == "true"

	if err := h.Tracker.RecalculateAward(r.Context(), id, strict); err != nil {
		h.writePoolError(w, "Failed to recalculate award", err)
		return
	}

	p, err := h.Repo.Store.GetPool(r.Context(), id)
	if err != nil {
		h.writePoolError(w, "Failed to get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(p))
}

// ListChallengers returns every enrollment record of a pool, including
// inactive ones, for award auditing.
func (h *Handler) ListChallengers(w http.ResponseWriter, r *http.Request) {
	chs, err := h.Repo.Store.Challengers(r.Context(), pool.PoolID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list challengers", err)
		return
	}

	dtos := make([]ChallengerDTO, len(chs))
	for i, ch := range chs {
		dtos[i] = toChallengerDTO(ch)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListActiveChallengers returns the pool's active challengers.
func (h *Handler) ListActiveChallengers(w http.ResponseWriter, r *http.Request) {
	id := pool.PoolID(chi.URLParam(r, "id"))
	strict := r.URL.Query().Get("strict") == "true"

	chs, err := h.Tracker.ActiveChallengers(r.Context(), id, strict)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list challengers", err)
		return
	}

	dtos := make([]ChallengerDTO, len(chs))
	for i, ch := range chs {
		dtos[i] = toChallengerDTO(ch)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CHALLENGER HANDLERS
// =============================================================================

// SetActivity records the activity evaluator's verdict for a
// challenger. The engine itself never computes compliance.
func (h *Handler) SetActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := pool.ChallengerID(chi.URLParam(r, "id"))
	if err := h.Tracker.SetActivity(r.Context(), id, req.Active, req.StrictOK); err != nil {
		if errors.Is(err, pool.ErrChallengerNotFound) {
			writeError(w, http.StatusNotFound, "Challenger not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to set activity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writePoolError(w http.ResponseWriter, msg string, err error) {
	if pool.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Pool not found", nil)
		return
	}
	h.Logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg, err)
}

func toPoolDTOs(pools []*pool.MonthlyPool) []PoolDTO {
	dtos := make([]PoolDTO, len(pools))
	for i, p := range pools {
		dtos[i] = toPoolDTO(p)
	}
	return dtos
}
