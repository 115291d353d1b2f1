package room_management

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/models"
	"github.com/CS3219-AY2526Sem1/cs3219-ay2526s1-project-g12/internal/utils"
)

const wsReadWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func userIDFrom(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// --- Reconnect Handler ---
func (rm *RoomManager) ReconnectHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := userIDFrom(r)
	if userID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "X-User-ID header required"})
		return
	}

	if err := rm.Reconnect(r.Context(), userID); err != nil {
		rm.writeRoomError(w, err)
		return
	}
	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"message": "reconnected"})
}

// --- Exit Handler ---
func (rm *RoomManager) ExitHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := userIDFrom(r)
	if userID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "X-User-ID header required"})
		return
	}

	if err := rm.Exit(r.Context(), userID); err != nil {
		rm.writeRoomError(w, err)
		return
	}
	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"message": "exited room"})
}

// --- Terminate Handler ---
func (rm *RoomManager) TerminateHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := userIDFrom(r)
	roomID := chi.URLParam(r, "room_id")
	if userID == "" || roomID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "X-User-ID header and room_id required"})
		return
	}

	var req models.TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "invalid json"})
		return
	}

	if err := rm.Terminate(r.Context(), userID, roomID, req.Data); err != nil {
		rm.writeRoomError(w, err)
		return
	}
	utils.WriteJSONAny(w, http.StatusOK, map[string]string{"message": "session terminated"})
}

// --- Connect Handler ---
func (rm *RoomManager) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	utils.EnableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := userIDFrom(r)
	roomID := chi.URLParam(r, "room_id")
	if userID == "" || roomID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: "X-User-ID header and room_id required"})
		return
	}

	resp, err := rm.Connect(r.Context(), userID, roomID)
	if err != nil {
		rm.writeRoomError(w, err)
		return
	}
	utils.WriteJSONAny(w, http.StatusOK, resp)
}

// --- Heartbeat WebSocket Handler ---
//
// Clients keep one socket open and push {"user_id": ..., "message":
// "heartbeat"} frames. The bounded read deadline lets the loop observe
// request-context cancellation instead of blocking forever.
func (rm *RoomManager) HeartbeatWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rm.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(wsReadWait))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				continue
			}
			return
		}

		var frame models.GatewayFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			rm.logger.Warn("malformed heartbeat frame", zap.Error(err))
			continue
		}
		if frame.Message == models.MsgHeartbeat && frame.UserID != "" {
			rm.HeartbeatTick(ctx, frame.UserID)
		}
	}
}

func (rm *RoomManager) writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNoRoom), errors.Is(err, models.ErrNotInRoom):
		utils.WriteJSON(w, http.StatusBadRequest, models.Resp{OK: false, Info: err.Error()})
	case errors.Is(err, models.ErrUpstream):
		utils.WriteJSON(w, http.StatusBadGateway, models.Resp{OK: false, Info: err.Error()})
	default:
		rm.logger.Error("room request failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, models.Resp{OK: false, Info: "internal error"})
	}
}
