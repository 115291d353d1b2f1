package match_management

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/utils"
)

// --- Find Match Handler ---
func (m *Matchmaker) FindMatchHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}
	if req.UserID == "" || req.Difficulty == "" || req.Category == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "user_id, difficulty and category are required"})
		return
	}

	result, err := m.FindMatch(r.Context(), req.UserID, req.Difficulty, req.Category)
	if err != nil {
		m.writeMatchError(w, err)
		return
	}

	switch result.Status {
	case models.StatusMatched:
		utils.WriteJSONAny(w, http.StatusOK, map[string]string{"match_id": result.MatchID})
	default:
		utils.WriteJSONAny(w, http.StatusOK, map[string]string{
			"status":  result.Status,
			"message": result.Message,
		})
	}
}

// --- Terminate Match Handler ---
func (m *Matchmaker) TerminateMatchHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := m.TerminateMatch(r.Context(), req.UserID, req.Difficulty, req.Category); err != nil {
		m.writeMatchError(w, err)
		return
	}

	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"message": "match request terminated"})
}

// --- Confirm Match Handler ---
func (m *Matchmaker) ConfirmMatchHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	matchID := chi.URLParam(r, "match_id")

	var req models.MatchConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	outcome, err := m.ConfirmMatch(r.Context(), matchID, req.UserID)
	if err != nil {
		m.writeMatchError(w, err)
		return
	}

	if !outcome.Confirmed {
		utils.WriteJSONAny(w, http.StatusOK, map[string]string{
			"status":  "partner_declined",
			"message": outcome.Message,
		})
		return
	}

	utils.WriteJSONAny(w, http.StatusOK, map[string]interface{}{
		"message":       "match confirmed",
		"match_details": outcome.Details,
	})
}

// --- Connection Check Handlers ---
func (m *Matchmaker) QueueConnectionHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)
	status := "up"
	if err := m.rdb.Ping(r.Context()).Err(); err != nil {
		status = "down"
	}
	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"redis_status": status})
}

func (m *Matchmaker) MessageConnectionHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)
	status := "up"
	if err := m.confirm.Ping(r.Context()).Err(); err != nil {
		status = "down"
	}
	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"redis_status": status})
}

func (m *Matchmaker) writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAlreadyQueued),
		errors.Is(err, models.ErrNotQueued),
		errors.Is(err, models.ErrInvalidMatch),
		errors.Is(err, models.ErrNotMember):
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: err.Error()})
	case errors.Is(err, models.ErrConflict):
		utils.WriteJSON(w, http.StatusConflict, models.Resp{OK: false, Info: err.Error()})
	default:
		m.logger.Error("matchmaker request failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "internal error"})
	}
}
