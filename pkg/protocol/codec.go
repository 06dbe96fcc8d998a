package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownFrame = errors.New("protocol: unrecognized frame shape")

// Frame is one decoded server -> client message. A single frame can carry a
// countdown tick combined with one of the other shapes, so the fields are
// optional rather than a closed enum. A nil slice means "not present"; an
// empty snapshot decodes to a non-nil empty slice.
type Frame struct {
	Countdown *int
	Seats     []Seat
	Updates   []SeatStatusUpdate
	Partial   *SeatPatch
}

// SeatPatch is a single-seat partial update, keyed by the physical seat id.
// Only non-nil fields are merged.
type SeatPatch struct {
	SeatID     int64       `json:"SeatId"`
	Status     *SeatStatus `json:"Status,omitempty"`
	SeatName   *string     `json:"SeatName,omitempty"`
	SeatType   *string     `json:"SeatType,omitempty"`
	Price      *float64    `json:"Price,omitempty"`
	PairSeatID *int64      `json:"PairSeatId,omitempty"`
}

type envelope struct {
	Action                   string             `json:"Action"`
	SeatStatusUpdateRequests []SeatStatusUpdate `json:"SeatStatusUpdateRequests"`
	CountDownTime            *int               `json:"CountDownTime"`
	Seats                    []Seat             `json:"Seats"`
	SeatID                   *int64             `json:"SeatId"`
	Status                   *SeatStatus        `json:"Status"`
	SeatName                 *string            `json:"SeatName"`
	SeatType                 *string            `json:"SeatType"`
	Price                    *float64           `json:"Price"`
	PairSeatID               *int64             `json:"PairSeatId"`
}

// DecodeFrame classifies one inbound frame. Frames arrive in four shapes: a
// bare seat array or {Seats:[...]} snapshot, an UpdateStatus delta, an object
// carrying CountDownTime, and a single-seat partial (SeatId without Action).
// Any error means the frame must be dropped without touching state.
func DecodeFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, ErrUnknownFrame
	}

	if trimmed[0] == '[' {
		var seats []Seat
		if err := json.Unmarshal(trimmed, &seats); err != nil {
			return Frame{}, fmt.Errorf("protocol: snapshot array: %w", err)
		}
		if seats == nil {
			seats = []Seat{}
		}
		return Frame{Seats: seats}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Frame{}, fmt.Errorf("protocol: frame: %w", err)
	}

	var f Frame
	if env.CountDownTime != nil {
		f.Countdown = env.CountDownTime
	}

	switch {
	case env.Action == ActionUpdateStatus:
		for _, u := range env.SeatStatusUpdateRequests {
			if !u.Status.Valid() {
				return Frame{}, fmt.Errorf("protocol: delta for seat %d: bad status %d", u.SeatID, u.Status)
			}
		}
		f.Updates = env.SeatStatusUpdateRequests
	case env.Action != "":
		return Frame{}, fmt.Errorf("protocol: unexpected action %q: %w", env.Action, ErrUnknownFrame)
	case env.Seats != nil:
		f.Seats = env.Seats
	case env.SeatID != nil:
		if env.Status != nil && !env.Status.Valid() {
			return Frame{}, fmt.Errorf("protocol: partial for seat %d: bad status %d", *env.SeatID, *env.Status)
		}
		f.Partial = &SeatPatch{
			SeatID:     *env.SeatID,
			Status:     env.Status,
			SeatName:   env.SeatName,
			SeatType:   env.SeatType,
			Price:      env.Price,
			PairSeatID: env.PairSeatID,
		}
	}

	if f.Countdown == nil && f.Seats == nil && f.Updates == nil && f.Partial == nil {
		return Frame{}, ErrUnknownFrame
	}
	return f, nil
}

// Server-side encoders. The client encodes its one Request shape directly.

func EncodeSnapshot(seats []Seat) ([]byte, error) {
	return json.Marshal(struct {
		Seats []Seat `json:"Seats"`
	}{Seats: seats})
}

func EncodeDelta(updates []SeatStatusUpdate) ([]byte, error) {
	return json.Marshal(Request{Action: ActionUpdateStatus, SeatStatusUpdateRequests: updates})
}

func EncodeTick(seconds int) ([]byte, error) {
	return json.Marshal(struct {
		CountDownTime int `json:"CountDownTime"`
	}{CountDownTime: seconds})
}

func EncodePartial(p SeatPatch) ([]byte, error) {
	return json.Marshal(p)
}
