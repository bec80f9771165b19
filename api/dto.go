package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quitpool/challenge-engine/pool"
)

// =============================================================================
// DATA TRANSFER OBJECTS
// =============================================================================
// Money fields are rendered as strings to keep decimal precision out of
// JSON float territory.

type PoolDTO struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	FromDate          string `json:"from_date"`
	ToDate            string `json:"to_date"`
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	PoolFee           string `json:"pool_fee"`
	NextChallengerNum int    `json:"next_challenger_num"`
	Amount            string `json:"amount"`
	Award             string `json:"award"`
	Prize             string `json:"prize"`
	PrizeFormatted    string `json:"prize_formatted"`
	Closed            bool   `json:"closed"`
}

func toPoolDTO(p *pool.MonthlyPool) PoolDTO {
	return PoolDTO{
		ID:                string(p.ID),
		Title:             p.Title(),
		FromDate:          p.FromDate.Format(time.RFC3339),
		ToDate:            p.ToDate.Format(time.RFC3339),
		Year:              p.Year,
		Month:             int(p.Month),
		PoolFee:           p.PoolFee.String(),
		NextChallengerNum: p.NextChallengerNum,
		Amount:            p.Amount.String(),
		Award:             p.Award.String(),
		Prize:             p.Prize().String(),
		PrizeFormatted:    p.FormattedPrize(),
		Closed:            p.Closed,
	}
}

type ChallengerDTO struct {
	ID          string `json:"id"`
	PoolID      string `json:"pool_id"`
	Num         int    `json:"num"`
	Appointment string `json:"appointment"`
	Fee         string `json:"fee"`
	Active      bool   `json:"active"`
	StrictOK    bool   `json:"strict_ok"`
}

func toChallengerDTO(ch *pool.Challenger) ChallengerDTO {
	return ChallengerDTO{
		ID:          string(ch.ID),
		PoolID:      string(ch.PoolID),
		Num:         ch.Num,
		Appointment: string(ch.Appointment),
		Fee:         ch.Fee.String(),
		Active:      ch.Active,
		StrictOK:    ch.StrictOK,
	}
}

// EnrollRequest enrolls challengers into the current pool. Count below
// one is normalized server-side; appointment defaults to participant.
type EnrollRequest struct {
	Count       int    `json:"count"`
	Appointment string `json:"appointment"`
}

// ActivityRequest records the activity evaluator's verdict.
type ActivityRequest struct {
	Active   bool `json:"active"`
	StrictOK bool `json:"strict_ok"`
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
