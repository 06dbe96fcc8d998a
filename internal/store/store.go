// Package store holds the client-side mirror of the seat grid for the active
// showtime. The server broadcast is the only writer of seat truth; the store
// just applies snapshots, deltas and partial merges, and republishes derived
// views so the UI never keeps its own copy.
package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cinehall/seatlink/pkg/protocol"
)

// View is one emission of the store: the full grid, the selected subset and
// the current countdown, recomputed on every mutation.
type View struct {
	Version   int
	Seats     []protocol.Seat
	Selected  []protocol.Seat
	Countdown int
}

type Store struct {
	mu        sync.Mutex
	log       *zap.Logger
	seats     []protocol.Seat
	countdown int
	version   int
	subs      map[string]chan View
}

func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		log:  log,
		subs: make(map[string]chan View),
	}
}

// ApplySnapshot replaces the whole grid. Prior seats are discarded, never
// merged. Duplicate status-record ids would break delta targeting, so later
// duplicates are dropped with a warning.
func (s *Store) ApplySnapshot(seats []protocol.Seat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool, len(seats))
	next := make([]protocol.Seat, 0, len(seats))
	for _, seat := range seats {
		if seen[seat.SeatStatusID] {
			s.log.Warn("duplicate seat status id in snapshot, dropping",
				zap.Int64("seat_status_id", seat.SeatStatusID),
				zap.String("seat", seat.SeatName))
			continue
		}
		seen[seat.SeatStatusID] = true
		next = append(next, seat)
	}
	s.seats = next
	s.bump()
}

// ApplyDelta overwrites the status of each targeted seat, matched by its
// showtime-scoped status id. Unknown ids are logged and skipped; a delta can
// never insert a seat.
func (s *Store) ApplyDelta(updates []protocol.SeatStatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, u := range updates {
		idx := s.indexByStatusID(u.SeatID)
		if idx < 0 {
			s.log.Warn("delta for unknown seat status id ignored",
				zap.Int64("seat_status_id", u.SeatID),
				zap.Stringer("status", u.Status))
			continue
		}
		s.seats[idx].Status = u.Status
		changed = true
	}
	if changed {
		s.bump()
	}
}

// ApplySingle merges a partial seat object into the existing record, matched
// by the physical seat id.
func (s *Store) ApplySingle(p protocol.SeatPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexBySeatID(p.SeatID)
	if idx < 0 {
		s.log.Warn("partial update for unknown seat ignored", zap.Int64("seat_id", p.SeatID))
		return
	}
	seat := &s.seats[idx]
	if p.Status != nil {
		seat.Status = *p.Status
	}
	if p.SeatName != nil {
		seat.SeatName = *p.SeatName
	}
	if p.SeatType != nil {
		seat.SeatType = *p.SeatType
	}
	if p.Price != nil {
		seat.Price = *p.Price
	}
	if p.PairSeatID != nil {
		seat.PairSeatID = p.PairSeatID
	}
	s.bump()
}

func (s *Store) SetCountdown(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	s.countdown = seconds
	s.bump()
}

// Clear drops all seats and the countdown, used on session teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seats = nil
	s.countdown = 0
	s.bump()
}

// Seats returns a copy of the full grid.
func (s *Store) Seats() []protocol.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatsLocked()
}

func (s *Store) seatsLocked() []protocol.Seat {
	out := make([]protocol.Seat, len(s.seats))
	copy(out, s.seats)
	return out
}

// Selected returns the seats currently in Selected state. It is filtered from
// the grid on every call rather than maintained separately.
func (s *Store) Selected() []protocol.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedLocked()
}

func (s *Store) selectedLocked() []protocol.Seat {
	var out []protocol.Seat
	for _, seat := range s.seats {
		if seat.Status == protocol.StatusSelected {
			out = append(out, seat)
		}
	}
	return out
}

func (s *Store) Countdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countdown
}

func (s *Store) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers an outbox for view emissions and immediately sends the
// current view so the subscriber never starts stale. The channel must be
// buffered; a subscriber that cannot keep up is dropped.
func (s *Store) Subscribe(id string, ch chan View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[id] = ch
	select {
	case ch <- s.view():
	default:
	}
}

func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Store) bump() {
	s.version++
	s.broadcast(s.view())
}

func (s *Store) view() View {
	return View{
		Version:   s.version,
		Seats:     s.seatsLocked(),
		Selected:  s.selectedLocked(),
		Countdown: s.countdown,
	}
}

func (s *Store) broadcast(v View) {
	for id, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *Store) indexByStatusID(id int64) int {
	for i := range s.seats {
		if s.seats[i].SeatStatusID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexBySeatID(id int64) int {
	for i := range s.seats {
		if s.seats[i].SeatID == id {
			return i
		}
	}
	return -1
}
