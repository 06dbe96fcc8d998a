package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cinehall/seatlink/internal/hub"
	"github.com/cinehall/seatlink/internal/room"
)

type createRoomRequest struct {
	ShowtimeID  string  `json:"showtimeId"`
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
	CoupleRows  []int   `json:"coupleRows"`
	VIPRows     []int   `json:"vipRows"`
	Price       float64 `json:"price"`
	CouplePrice float64 `json:"couplePrice"`
	VIPPrice    float64 `json:"vipPrice"`
}

// CreateRoom seeds (or returns) the room for a showtime.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.ShowtimeID == "" {
			http.Error(w, "missing showtimeId", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{
			ID: req.ShowtimeID,
			Layout: room.Layout{
				Rows:        req.Rows,
				Cols:        req.Cols,
				CoupleRows:  req.CoupleRows,
				VIPRows:     req.VIPRows,
				Price:       req.Price,
				CouplePrice: req.CouplePrice,
				VIPPrice:    req.VIPPrice,
			},
			Reply: reply,
		}
		rm := <-reply
		if rm == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		state := make(chan room.View, 1)
		rm.Inbox() <- room.GetState{Reply: state}
		v := <-state

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			RoomID    string `json:"roomId"`
			SeatCount int    `json:"seatCount"`
		}{RoomID: req.ShowtimeID, SeatCount: len(v.Seats)})
	}
}

// RoomState reports a room's grid for ops inspection.
func RoomState(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{ID: id, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		state := make(chan room.View, 1)
		rm.Inbox() <- room.GetState{Reply: state}
		select {
		case v := <-state:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(v)
		case <-time.After(2 * time.Second):
			http.Error(w, "room not responding", http.StatusServiceUnavailable)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
