package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/hub"
	"github.com/cinehall/seatlink/internal/room"
	"github.com/cinehall/seatlink/pkg/protocol"
)

// Handler upgrades /ws?roomId=...&userId=... into a room connection. Both
// query parameters are required; the room must already exist.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		userID := r.URL.Query().Get("userId")
		if roomID == "" || userID == "" {
			http.Error(w, "missing roomId or userId", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{ID: roomID, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, 16)
		clientID := uuid.NewString()

		rm.Inbox() <- room.Join{ClientID: clientID, UserID: userID, Outbox: out}
		defer func() { rm.Inbox() <- room.Leave{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Clean close/going-away is normal; either way the deferred
				// Leave detaches us from the room.
				return
			}

			var req protocol.Request
			if err := json.Unmarshal(data, &req); err != nil {
				log.Warn("dropping malformed client frame",
					zap.String("room", roomID),
					zap.String("user", userID),
					zap.Error(err))
				continue
			}
			switch req.Action {
			case protocol.ActionGetList, protocol.ActionJoinRoom,
				protocol.ActionUpdateStatus, protocol.ActionPayment:
			default:
				log.Warn("dropping unknown client action",
					zap.String("room", roomID),
					zap.String("action", req.Action))
				continue
			}

			rm.Inbox() <- room.FromClient{ClientID: clientID, UserID: userID, Req: req}
		}
	}
}
