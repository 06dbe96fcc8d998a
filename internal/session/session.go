// Package session is the client-side face of the seat-hold protocol. A
// Session owns one websocket at a time, keeps the local seat store in sync
// with server frames, and turns seat clicks into validated status updates.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/cinehall/seatlink/internal/countdown"
	"github.com/cinehall/seatlink/internal/resume"
	"github.com/cinehall/seatlink/internal/rules"
	"github.com/cinehall/seatlink/internal/store"
	"github.com/cinehall/seatlink/pkg/protocol"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	ErrNoSession    = errors.New("session: nothing to resume")
)

type Config struct {
	URL         string // base server URL, e.g. "ws://localhost:8080"
	DialTimeout time.Duration
	RetryDelay  time.Duration
	MaxRetries  int
	SwitchGrace time.Duration // pause between leaving one showtime and joining the next
	JoinDelay   time.Duration // gap between GetList and JoinRoom on a fresh connection
	PreOrder    bool          // first pick in an empty row must sit at the row edge
	OnFailure   func(error)   // called when a connection is lost for good
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 3 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.SwitchGrace <= 0 {
		c.SwitchGrace = 250 * time.Millisecond
	}
	if c.JoinDelay <= 0 {
		c.JoinDelay = 100 * time.Millisecond
	}
	return c
}

type Session struct {
	cfg   Config
	log   *zap.Logger
	cache *resume.Store
	store *store.Store
	timer *countdown.Coordinator

	mu     sync.Mutex
	conn   *websocket.Conn
	roomID string
	userID string
	gen    int // bumped on every connect/teardown; stale readers check it and die
}

func New(cfg Config, cache *resume.Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		cfg:   cfg.withDefaults(),
		log:   log,
		cache: cache,
		store: store.New(log),
	}
	// When the hold countdown hits zero the server has already released our
	// seats; re-request the list so the local grid reflects that.
	s.timer = countdown.New(log, cache, s.refresh)
	go s.persistSelection()
	return s
}

// Store exposes the local seat state for UI subscriptions.
func (s *Session) Store() *store.Store { return s.store }

// Countdown exposes the hold timer for UI subscriptions.
func (s *Session) Countdown() *countdown.Coordinator { return s.timer }

// Connect attaches the session to a showtime. Calling it again with the same
// showtime and user while connected is a no-op; with a different pair it
// tears the old connection down, waits the switch grace, and joins the new
// room. A failed dial is retried up to MaxRetries times before giving up.
func (s *Session) Connect(ctx context.Context, showtimeID, userID string) error {
	s.mu.Lock()
	if s.conn != nil && s.roomID == showtimeID && s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	switching := s.conn != nil
	s.teardownLocked()
	token := s.gen
	s.mu.Unlock()

	if switching {
		time.Sleep(s.cfg.SwitchGrace)
	}
	return s.connect(ctx, showtimeID, userID, token)
}

// connect dials and installs a new socket. The token is the generation the
// caller observed before dialing: dialing can block for the whole retry
// window, and a Disconnect or a Connect to another showtime that lands in the
// meantime must win. If the generation moved, the fresh socket is closed and
// no session state (in memory or in the resume cache) is touched.
func (s *Session) connect(ctx context.Context, showtimeID, userID string, token int) error {
	conn, err := s.dial(ctx, showtimeID, userID)
	if err != nil {
		s.mu.Lock()
		stale := s.gen != token
		s.mu.Unlock()
		if stale {
			return err
		}
		s.clearAll()
		if s.cfg.OnFailure != nil {
			s.cfg.OnFailure(err)
		}
		return err
	}

	s.mu.Lock()
	if s.gen != token {
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return nil
	}
	s.conn = conn
	s.roomID = showtimeID
	s.userID = userID
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if s.cache != nil {
		_ = s.cache.Set(resume.KeyRoom, showtimeID)
		_ = s.cache.Set(resume.KeyUser, userID)
	}

	if err := s.handshake(ctx, conn); err != nil {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return err
		}
		s.teardownLocked()
		s.mu.Unlock()
		s.clearAll()
		return err
	}

	go s.readLoop(conn, gen, showtimeID, userID)
	return nil
}

// dial attempts the websocket connection with a bounded retry loop.
func (s *Session) dial(ctx context.Context, showtimeID, userID string) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("roomId", showtimeID)
	q.Set("userId", userID)
	target := strings.TrimSuffix(s.cfg.URL, "/") + "/ws?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
		conn, _, err := websocket.Dial(dctx, target, nil)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		s.log.Warn("dial failed",
			zap.String("room", showtimeID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < s.cfg.MaxRetries {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("session: giving up after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

// handshake requests the full grid, then announces presence. The server
// starts the hold clock on JoinRoom, so the list request goes first and the
// join follows after a short settle delay.
func (s *Session) handshake(ctx context.Context, conn *websocket.Conn) error {
	if err := s.write(ctx, conn, protocol.GetListRequest()); err != nil {
		return err
	}
	select {
	case <-time.After(s.cfg.JoinDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.write(ctx, conn, protocol.JoinRoomRequest())
}

func (s *Session) readLoop(conn *websocket.Conn, gen int, showtimeID, userID string) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			stale := s.gen != gen
			s.mu.Unlock()
			if stale {
				return
			}
			s.log.Warn("connection lost, reconnecting",
				zap.String("room", showtimeID),
				zap.Error(err))
			s.reconnect(gen, showtimeID, userID)
			return
		}
		s.dispatch(data)
	}
}

func (s *Session) reconnect(gen int, showtimeID, userID string) {
	s.mu.Lock()
	if s.gen != gen || s.conn == nil {
		s.mu.Unlock()
		return
	}
	s.conn.Close(websocket.StatusNormalClosure, "reconnecting")
	s.conn = nil
	s.mu.Unlock()

	if err := s.connect(context.Background(), showtimeID, userID, gen); err != nil {
		s.log.Error("reconnect failed", zap.String("room", showtimeID), zap.Error(err))
	}
}

// dispatch routes one server frame into the store and the countdown timer.
// Unrecognized payloads are logged and dropped; the connection stays up.
func (s *Session) dispatch(data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		s.log.Warn("dropping unreadable server frame", zap.Error(err))
		return
	}
	if frame.Countdown != nil {
		s.store.SetCountdown(*frame.Countdown)
		s.timer.Tick(*frame.Countdown)
	}
	switch {
	case frame.Seats != nil:
		s.store.ApplySnapshot(frame.Seats)
	case frame.Updates != nil:
		s.store.ApplyDelta(frame.Updates)
	case frame.Partial != nil:
		s.store.ApplySingle(*frame.Partial)
	}
}

// Select validates a seat pick against the current grid and, if it passes,
// asks the server to hold the resulting seat group. The local grid is not
// touched here; it updates when the server echoes the delta back.
func (s *Session) Select(ctx context.Context, seatID int64) error {
	updates, err := rules.PlanSelect(s.store.Seats(), seatID, s.cfg.PreOrder)
	if err != nil {
		return err
	}
	return s.send(ctx, protocol.UpdateStatusRequest(updates))
}

// Deselect releases a held seat (and its couple partner, if any).
func (s *Session) Deselect(ctx context.Context, seatID int64) error {
	updates, err := rules.PlanDeselect(s.store.Seats(), seatID)
	if err != nil {
		return err
	}
	return s.send(ctx, protocol.UpdateStatusRequest(updates))
}

// ConfirmPayment books everything currently selected and drops the persisted
// selection so a later resume does not try to re-hold paid-for seats.
func (s *Session) ConfirmPayment(ctx context.Context) error {
	updates, err := rules.PlanPayment(s.store.Seats())
	if err != nil {
		return err
	}
	if err := s.send(ctx, protocol.PaymentRequest(updates)); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(resume.KeySelection)
	}
	s.timer.Stop()
	return nil
}

// Disconnect closes the connection and forgets the session. Safe to call
// repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	s.clearAll()
}

// Resume reconnects using the room and user persisted from a previous run.
// Seat holds that survived server-side come back as Selected in the first
// snapshot; anything that expired simply will not.
func (s *Session) Resume(ctx context.Context) error {
	if s.cache == nil {
		return ErrNoSession
	}
	room, ok := s.cache.Get(resume.KeyRoom)
	if !ok || room == "" {
		return ErrNoSession
	}
	user, _ := s.cache.Get(resume.KeyUser)
	if user == "" {
		return ErrNoSession
	}
	if secs, ok := s.timer.Resume(); ok {
		s.store.SetCountdown(secs)
	}
	return s.Connect(ctx, room, user)
}

// Connected reports whether a live connection exists and to which showtime.
func (s *Session) Connected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return "", false
	}
	return s.roomID, true
}

func (s *Session) send(ctx context.Context, req protocol.Request) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return s.write(ctx, conn, req)
}

func (s *Session) write(ctx context.Context, conn *websocket.Conn, req protocol.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// refresh re-requests the grid after the hold countdown expires.
func (s *Session) refresh() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.write(context.Background(), conn, protocol.GetListRequest()); err != nil {
		s.log.Warn("post-expiry refresh failed", zap.Error(err))
	}
}

// persistSelection mirrors the store's selected seats into the resume cache
// so a page reload can show what the user had before the snapshot arrives.
// Each view costs a file flush, so a burst of mutations can overflow the
// subscription buffer and get this subscriber dropped; when that happens we
// resubscribe, which replays the current view and catches us up.
func (s *Session) persistSelection() {
	if s.cache == nil {
		return
	}
	for {
		ch := make(chan store.View, 16)
		s.store.Subscribe("session-persist", ch)
		for v := range ch {
			if len(v.Selected) == 0 {
				_ = s.cache.Delete(resume.KeySelection)
				continue
			}
			ids := make([]string, 0, len(v.Selected))
			for _, seat := range v.Selected {
				ids = append(ids, strconv.FormatInt(seat.SeatStatusID, 10))
			}
			_ = s.cache.Set(resume.KeySelection, strings.Join(ids, ","))
		}
	}
}

// teardownLocked closes the socket and invalidates any reader still running.
// Callers hold s.mu.
func (s *Session) teardownLocked() {
	s.gen++
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "bye")
		s.conn = nil
	}
	s.roomID = ""
	s.userID = ""
}

// clearAll wipes local and persisted session state after a disconnect or a
// failed connection.
func (s *Session) clearAll() {
	s.store.Clear()
	s.timer.Stop()
	if s.cache != nil {
		_ = s.cache.Clear()
	}
}
