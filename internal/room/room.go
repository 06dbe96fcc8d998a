// Package room runs one showtime's seat-hold arbiter. A Room is an actor: a
// single goroutine owns the grid, applies client requests first-come
// first-served, drives the per-user hold countdown and broadcasts the
// resulting truth. Clients never merge conflicting updates themselves; what
// the room says is what happened.
package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/archive"
	"github.com/cinehall/seatlink/pkg/protocol"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	UserID   string
	Outbox   chan []byte // encoded frames for this connection
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

type FromClient struct {
	ClientID string
	UserID   string
	Req      protocol.Request
}

func (FromClient) isRoomMsg() {}

// RestoreBooked replays bookings the archive recorded for this showtime. The
// hub sends it after room creation; the archive lookup runs off the hub loop.
type RestoreBooked struct{ StatusIDs []int64 }

type Shutdown struct{}

func (Shutdown) isRoomMsg()      {}
func (RestoreBooked) isRoomMsg() {}

// GetState reflects internal state without data races, for tests and the
// HTTP state view.
type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	NumClients int
	Seats      []protocol.Seat
	Holds      map[string][]int64
}

type client struct {
	userID string
	outbox chan []byte
}

type Room struct {
	id      string
	inbox   chan Msg
	seats   []protocol.Seat  // canonical statuses: Available/Unavailable/Booked
	holder  map[int64]string // seat status id -> user holding it
	expires map[string]time.Time
	clients map[string]client
	holdTTL time.Duration
	arc     archive.Archive
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, id string, seats []protocol.Seat, holdTTL time.Duration, arc archive.Archive, log *zap.Logger) *Room {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64),
		seats:   seats,
		holder:  make(map[int64]string),
		expires: make(map[string]time.Time),
		clients: make(map[string]client),
		holdTTL: holdTTL,
		arc:     arc,
		log:     log.With(zap.String("room", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

// Inbox exposes the actor mailbox to the WS layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-ticker.C:
			r.tick(time.Now())

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = client{userID: msg.UserID, outbox: msg.Outbox}

			case Leave:
				if c, ok := r.clients[msg.ClientID]; ok {
					close(c.outbox)
					delete(r.clients, msg.ClientID)
				}

			case FromClient:
				r.handle(msg)

			case RestoreBooked:
				r.restoreBooked(msg.StatusIDs)

			case GetState:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handle(msg FromClient) {
	switch msg.Req.Action {
	case protocol.ActionGetList:
		r.sendSnapshot(msg.ClientID)

	case protocol.ActionJoinRoom:
		r.expires[msg.UserID] = time.Now().Add(r.holdTTL)
		r.sendTickTo(msg.UserID, int(r.holdTTL/time.Second))

	case protocol.ActionUpdateStatus:
		r.applyUpdates(msg.UserID, msg.Req.SeatStatusUpdateRequests)

	case protocol.ActionPayment:
		r.applyPayment(msg.UserID, msg.Req.SeatStatusUpdateRequests)

	default:
		r.log.Warn("unknown action dropped",
			zap.String("action", msg.Req.Action),
			zap.String("user", msg.UserID))
	}
}

// applyUpdates arbitrates select/release requests. The batch is all or
// nothing: a couple seat's two halves travel in one request and must never be
// half-applied. A batch that loses the race is dropped whole; the loser
// learns the outcome from the winner's broadcast.
func (r *Room) applyUpdates(userID string, updates []protocol.SeatStatusUpdate) {
	for _, u := range updates {
		seat := r.byStatusID(u.SeatID)
		if seat == nil {
			r.log.Warn("update for unknown seat ignored", zap.Int64("seat_status_id", u.SeatID))
			return
		}
		switch u.Status {
		case protocol.StatusSelected:
			if seat.Status != protocol.StatusAvailable || r.holder[u.SeatID] != "" {
				r.log.Info("select lost the race",
					zap.String("user", userID),
					zap.Int64("seat_status_id", u.SeatID))
				return
			}
		case protocol.StatusAvailable:
			if r.holder[u.SeatID] != userID {
				return
			}
		default:
			// Clients never set Booked or Held directly.
			r.log.Warn("client asked for a server-only status",
				zap.String("user", userID),
				zap.Stringer("status", u.Status))
			return
		}
	}

	for _, u := range updates {
		if u.Status == protocol.StatusSelected {
			r.holder[u.SeatID] = userID
		} else {
			delete(r.holder, u.SeatID)
		}
	}
	r.broadcastDelta(updates, userID)
}

// restoreBooked marks archived bookings on the live grid. Holds that raced
// ahead of the restore lose; the broadcast tells their holders.
func (r *Room) restoreBooked(statusIDs []int64) {
	var updates []protocol.SeatStatusUpdate
	for _, sid := range statusIDs {
		seat := r.byStatusID(sid)
		if seat == nil || seat.Status == protocol.StatusBooked {
			continue
		}
		seat.Status = protocol.StatusBooked
		delete(r.holder, sid)
		updates = append(updates, protocol.SeatStatusUpdate{SeatID: sid, Status: protocol.StatusBooked})
	}
	if len(updates) > 0 {
		r.broadcastDelta(updates, "")
	}
}

// applyPayment books every requested seat the user actually holds.
func (r *Room) applyPayment(userID string, updates []protocol.SeatStatusUpdate) {
	var booked []protocol.SeatStatusUpdate
	for _, u := range updates {
		if r.holder[u.SeatID] != userID {
			continue
		}
		seat := r.byStatusID(u.SeatID)
		if seat == nil {
			continue
		}
		seat.Status = protocol.StatusBooked
		delete(r.holder, u.SeatID)
		booked = append(booked, protocol.SeatStatusUpdate{SeatID: u.SeatID, Status: protocol.StatusBooked})
	}
	if len(booked) == 0 {
		return
	}
	delete(r.expires, userID)
	r.broadcastDelta(booked, userID)

	if r.arc != nil {
		ids := make([]int64, len(booked))
		for i, b := range booked {
			ids[i] = b.SeatID
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.arc.MarkBooked(ctx, r.id, ids); err != nil {
				r.log.Error("archiving booked seats failed", zap.Error(err))
			}
		}()
	}
}

// tick advances every live hold countdown and force-releases expired holds.
func (r *Room) tick(now time.Time) {
	for userID, deadline := range r.expires {
		remaining := int(deadline.Sub(now).Round(time.Second) / time.Second)
		if remaining > 0 {
			r.sendTickTo(userID, remaining)
			continue
		}

		delete(r.expires, userID)
		var released []protocol.SeatStatusUpdate
		for sid, h := range r.holder {
			if h != userID {
				continue
			}
			delete(r.holder, sid)
			released = append(released, protocol.SeatStatusUpdate{SeatID: sid, Status: protocol.StatusAvailable})
		}
		r.sendTickTo(userID, 0)
		if len(released) > 0 {
			r.log.Info("hold expired, seats released",
				zap.String("user", userID),
				zap.Int("count", len(released)))
			r.broadcastDelta(released, userID)
		}
	}
}

// statusFor personalizes a held seat: the holder sees Selected, everyone else
// sees Held.
func (r *Room) statusFor(seat protocol.Seat, viewer string) protocol.SeatStatus {
	if seat.Status != protocol.StatusAvailable {
		return seat.Status
	}
	h, held := r.holder[seat.SeatStatusID]
	if !held {
		return protocol.StatusAvailable
	}
	if h == viewer {
		return protocol.StatusSelected
	}
	return protocol.StatusHeld
}

func (r *Room) sendSnapshot(clientID string) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	seats := make([]protocol.Seat, len(r.seats))
	for i, seat := range r.seats {
		seat.Status = r.statusFor(seat, c.userID)
		seats[i] = seat
	}
	payload, err := protocol.EncodeSnapshot(seats)
	if err != nil {
		r.log.Error("encoding snapshot failed", zap.Error(err))
		return
	}
	r.send(clientID, c, payload)
}

// broadcastDelta fans the applied updates out to every client, rewriting the
// hold statuses per viewer.
func (r *Room) broadcastDelta(updates []protocol.SeatStatusUpdate, actor string) {
	for clientID, c := range r.clients {
		personalized := make([]protocol.SeatStatusUpdate, len(updates))
		for i, u := range updates {
			st := u.Status
			if st == protocol.StatusSelected && c.userID != actor {
				st = protocol.StatusHeld
			}
			personalized[i] = protocol.SeatStatusUpdate{SeatID: u.SeatID, Status: st}
		}
		payload, err := protocol.EncodeDelta(personalized)
		if err != nil {
			r.log.Error("encoding delta failed", zap.Error(err))
			return
		}
		r.send(clientID, c, payload)
	}
}

func (r *Room) sendTickTo(userID string, seconds int) {
	payload, err := protocol.EncodeTick(seconds)
	if err != nil {
		r.log.Error("encoding tick failed", zap.Error(err))
		return
	}
	for clientID, c := range r.clients {
		if c.userID == userID {
			r.send(clientID, c, payload)
		}
	}
}

func (r *Room) send(clientID string, c client, payload []byte) {
	select {
	case c.outbox <- payload:
	default:
		// Client is slow/full - drop them.
		close(c.outbox)
		delete(r.clients, clientID)
	}
}

func (r *Room) view() View {
	seats := make([]protocol.Seat, len(r.seats))
	for i, seat := range r.seats {
		if seat.Status == protocol.StatusAvailable && r.holder[seat.SeatStatusID] != "" {
			seat.Status = protocol.StatusHeld
		}
		seats[i] = seat
	}
	holds := make(map[string][]int64)
	for sid, user := range r.holder {
		holds[user] = append(holds[user], sid)
	}
	return View{NumClients: len(r.clients), Seats: seats, Holds: holds}
}

func (r *Room) byStatusID(id int64) *protocol.Seat {
	for i := range r.seats {
		if r.seats[i].SeatStatusID == id {
			return &r.seats[i]
		}
	}
	return nil
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}
