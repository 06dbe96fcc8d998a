// Package hub keeps the registry of live showtime rooms. Like the rooms it
// manages, the hub is an actor: all access goes through typed messages on its
// inbox so the map never needs a lock.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/archive"
	"github.com/cinehall/seatlink/internal/room"
)

type HubMsg interface{ isHubMsg() }

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

// EnsureRoom creates the room from the layout if it does not exist yet and
// replies with it either way.
type EnsureRoom struct {
	ID     string
	Layout room.Layout
	Reply  chan *room.Room
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	holdTTL time.Duration
	arc     archive.Archive
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, holdTTL time.Duration, arc archive.Archive, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		holdTTL: holdTTL,
		arc:     arc,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case EnsureRoom:
				if r := h.rooms[msg.ID]; r != nil {
					msg.Reply <- r
					break
				}
				r := room.New(h.ctx, msg.ID, msg.Layout.Seats(msg.ID), h.holdTTL, h.arc, h.log)
				h.rooms[msg.ID] = r
				h.log.Info("room created", zap.String("room", msg.ID))
				msg.Reply <- r
				if h.arc != nil {
					go h.restoreBooked(msg.ID, r)
				}

			case RemoveRoom:
				if r := h.rooms[msg.ID]; r != nil {
					r.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.ID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// restoreBooked replays the archived bookings for a room into it, so a
// restarted server never resells paid seats. Runs off the hub loop: a slow or
// unreachable archive must not stall room creation for everyone else. Until
// it lands the room can briefly offer an archived seat; restoreBooked on the
// room side wins that race.
func (h *Hub) restoreBooked(id string, r *room.Room) {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	booked, err := h.arc.Booked(ctx, id)
	if err != nil {
		h.log.Warn("loading booked seats failed, starting fresh", zap.String("room", id), zap.Error(err))
		return
	}
	if len(booked) > 0 {
		r.Inbox() <- room.RestoreBooked{StatusIDs: booked}
	}
}

func (h *Hub) shutdown() {
	for id, r := range h.rooms {
		r.Inbox() <- room.Shutdown{}
		delete(h.rooms, id)
	}
	h.cancel()
}
