package hub

import (
	"context"
	"testing"
	"time"

	"github.com/cinehall/seatlink/internal/archive"
	"github.com/cinehall/seatlink/internal/room"
	"github.com/cinehall/seatlink/pkg/protocol"
)

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h := NewHub(context.Background(), time.Minute, nil, nil)
	reply := make(chan *room.Room, 1)

	h.Inbox() <- EnsureRoom{ID: "st-1", Layout: room.Layout{Rows: 1, Cols: 4}, Reply: reply}
	r1 := <-reply

	h.Inbox() <- GetRoom{ID: "st-1", Reply: reply}
	r2 := <-reply

	if r1 == nil || r2 == nil || r1 != r2 {
		t.Fatalf("expected same room pointer")
	}

	h.Inbox() <- EnsureRoom{ID: "st-1", Layout: room.Layout{Rows: 9, Cols: 9}, Reply: reply}
	if r3 := <-reply; r3 != r1 {
		t.Fatalf("ensure on an existing room must not rebuild it")
	}
}

func TestHub_GetUnknownRoomIsNil(t *testing.T) {
	h := NewHub(context.Background(), time.Minute, nil, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{ID: "nope", Reply: reply}
	if r := <-reply; r != nil {
		t.Fatalf("unknown room must reply nil")
	}
}

func TestHub_RestoresArchivedBookings(t *testing.T) {
	arc := archive.NewMemory()
	layout := room.Layout{Rows: 1, Cols: 4}
	seats := layout.Seats("st-2")
	if err := arc.MarkBooked(context.Background(), "st-2", []int64{seats[1].SeatStatusID}); err != nil {
		t.Fatal(err)
	}

	h := NewHub(context.Background(), time.Minute, arc, nil)
	reply := make(chan *room.Room, 1)
	h.Inbox() <- EnsureRoom{ID: "st-2", Layout: layout, Reply: reply}
	r := <-reply

	// The restore runs off the hub loop; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		view := make(chan room.View, 1)
		r.Inbox() <- room.GetState{Reply: view}
		v := <-view
		booked := 0
		for _, s := range v.Seats {
			if s.Status == protocol.StatusBooked {
				booked++
			}
		}
		if booked == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("want 1 restored booking from the archive, got %d", booked)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// stallingArchive blocks every lookup until the context expires, like a
// configured Redis that stopped answering.
type stallingArchive struct{}

func (stallingArchive) MarkBooked(ctx context.Context, roomID string, statusIDs []int64) error {
	return nil
}

func (stallingArchive) Booked(ctx context.Context, roomID string) ([]int64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHub_SlowArchiveDoesNotStallRoomCreation(t *testing.T) {
	h := NewHub(context.Background(), time.Minute, stallingArchive{}, nil)
	reply := make(chan *room.Room, 1)

	start := time.Now()
	h.Inbox() <- EnsureRoom{ID: "st-3", Layout: room.Layout{Rows: 1, Cols: 4}, Reply: reply}

	select {
	case r := <-reply:
		if r == nil {
			t.Fatalf("expected a room")
		}
	case <-time.After(time.Second):
		t.Fatalf("room creation stalled behind the archive")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("room creation took %v", elapsed)
	}

	// The registry keeps serving other messages while the lookup hangs.
	h.Inbox() <- GetRoom{ID: "st-3", Reply: reply}
	select {
	case r := <-reply:
		if r == nil {
			t.Fatalf("expected the room back")
		}
	case <-time.After(time.Second):
		t.Fatalf("hub wedged behind the archive lookup")
	}
}
