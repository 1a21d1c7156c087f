package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/teammate/internal/event"
	"github.com/hitoshi/teammate/internal/middleware"
	"github.com/hitoshi/teammate/internal/model"
)

// sseHeartbeatInterval はSSE接続維持のためのハートビート送信間隔。
const sseHeartbeatInterval = 30 * time.Second

// EventHandler はSSEイベント配信のHTTPハンドラー。
// 認証済みユーザーごとのイベントストリームを提供する。
type EventHandler struct {
	hub *event.Hub
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(hub *event.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// Stream はSSE接続を確立し、ユーザー宛のイベントを配信する。
// クライアント切断（コンテキストキャンセル）まで接続を維持する。
// GET /api/events
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "STREAMING_UNSUPPORTED",
			Message:  "この接続ではストリーミングを利用できません。",
			Category: "system",
			Action:   "別のネットワーク経路からお試しください。",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := event.NewSSEClient(w, flusher)
	h.hub.Register(userID, client)
	defer h.hub.Unregister(userID, client)

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}
