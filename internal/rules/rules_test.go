package rules

import (
	"errors"
	"testing"

	"github.com/cinehall/seatlink/pkg/protocol"
)

// seatRow builds one row from a compact status string: 'a' available,
// 's' selected, 'b' booked, 'u' unavailable, 'h' held. Columns start at 1;
// physical ids equal the column, status ids are column+100.
func seatRow(rowNumber int, statuses string) []protocol.Seat {
	seats := make([]protocol.Seat, 0, len(statuses))
	for i, c := range statuses {
		var st protocol.SeatStatus
		switch c {
		case 'a':
			st = protocol.StatusAvailable
		case 's':
			st = protocol.StatusSelected
		case 'b':
			st = protocol.StatusBooked
		case 'u':
			st = protocol.StatusUnavailable
		case 'h':
			st = protocol.StatusHeld
		}
		col := i + 1
		seats = append(seats, protocol.Seat{
			SeatID:       int64(rowNumber*100 + col),
			SeatStatusID: int64(rowNumber*1000 + col),
			RowNumber:    rowNumber,
			ColNumber:    col,
			Status:       st,
		})
	}
	return seats
}

func couple(seats []protocol.Seat, colA, colB int) {
	var a, b *protocol.Seat
	for i := range seats {
		switch seats[i].ColNumber {
		case colA:
			a = &seats[i]
		case colB:
			b = &seats[i]
		}
	}
	a.PairSeatID = &b.SeatID
	b.PairSeatID = &a.SeatID
}

func seatID(rowNumber, col int) int64 { return int64(rowNumber*100 + col) }

func wantErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestPlanSelect_SimpleSeat(t *testing.T) {
	seats := seatRow(1, "aaaaaa")
	updates, err := PlanSelect(seats, seatID(1, 1), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("want 1 update, got %d", len(updates))
	}
	if updates[0].SeatID != 1001 || updates[0].Status != protocol.StatusSelected {
		t.Fatalf("update must carry the showtime-scoped id: %+v", updates[0])
	}
}

func TestPlanSelect_TakenSeatRejected(t *testing.T) {
	seats := seatRow(1, "absuh")
	for _, col := range []int{2, 3, 4, 5} {
		_, err := PlanSelect(seats, seatID(1, col), false)
		wantErr(t, err, ErrSeatUnavailable)
	}
	_, err := PlanSelect(seats, 9999, false)
	wantErr(t, err, ErrUnknownSeat)
}

func TestPlanSelect_NoOrphanSingleSeat(t *testing.T) {
	// Selecting column 3 with column 1,2 free and 5 booked would strand 4.
	seats := seatRow(1, "aaaab")
	_, err := PlanSelect(seats, seatID(1, 3), false)
	wantErr(t, err, ErrIsolatedSeat)

	// Selecting column 4 instead is fine.
	if _, err := PlanSelect(seats, seatID(1, 4), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlanSelect_EdgeSeatNeverOrphaned(t *testing.T) {
	// Column 1 sits at the row edge: selecting 2 leaves it single but legal.
	seats := seatRow(1, "aab")
	if _, err := PlanSelect(seats, seatID(1, 2), false); err != nil {
		t.Fatalf("edge seats never count as stranded: %v", err)
	}
}

func TestPlanSelect_AisleGapNeverOrphaned(t *testing.T) {
	// Columns 1,2,4: the missing column 3 is an aisle, so selecting 2 cannot
	// strand 4 even with column 5 booked.
	seats := []protocol.Seat{
		{SeatID: 101, SeatStatusID: 1001, RowNumber: 1, ColNumber: 1, Status: protocol.StatusSelected},
		{SeatID: 102, SeatStatusID: 1002, RowNumber: 1, ColNumber: 2, Status: protocol.StatusAvailable},
		{SeatID: 104, SeatStatusID: 1004, RowNumber: 1, ColNumber: 4, Status: protocol.StatusAvailable},
		{SeatID: 105, SeatStatusID: 1005, RowNumber: 1, ColNumber: 5, Status: protocol.StatusBooked},
	}
	if _, err := PlanSelect(seats, 102, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlanSelect_OrphanAllowedWhenPairSelected(t *testing.T) {
	// Column 4 is free between selected 3 and 5; selecting 2 walls it in.
	// Without a couple bond that is an orphan.
	seats := seatRow(1, "basas")
	_, err := PlanSelect(seats, seatID(1, 2), false)
	wantErr(t, err, ErrIsolatedSeat)

	// With 3 and 4 paired, the free half rides on its selected partner and
	// is not an orphan.
	seats = seatRow(1, "basas")
	couple(seats, 3, 4)
	if _, err := PlanSelect(seats, seatID(1, 2), false); err != nil {
		t.Fatalf("pair-selected seat is not an orphan: %v", err)
	}
}

func TestPlanSelect_CoupleAtomicity(t *testing.T) {
	seats := seatRow(1, "aaaa")
	couple(seats, 1, 2)
	updates, err := PlanSelect(seats, seatID(1, 1), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("selecting half a couple must move both halves, got %d updates", len(updates))
	}
	got := map[int64]protocol.SeatStatus{}
	for _, u := range updates {
		got[u.SeatID] = u.Status
	}
	if got[1001] != protocol.StatusSelected || got[1002] != protocol.StatusSelected {
		t.Fatalf("both pair halves must be selected: %+v", updates)
	}
}

func TestPlanSelect_OuterSeatFirst(t *testing.T) {
	// Spec boundary scenario: columns 1-6, 2 and 3 selected as a couple,
	// clicking 4 while 5 and 6 are still open must point the clerk at the
	// outer seat.
	seats := seatRow(1, "assaaa")
	couple(seats, 2, 3)
	_, err := PlanSelect(seats, seatID(1, 4), false)
	wantErr(t, err, ErrPickOuterFirst)

	// 5 would strand 4 between two selected seats.
	_, err = PlanSelect(seats, seatID(1, 5), false)
	wantErr(t, err, ErrIsolatedSeat)

	// The row fills edge-inward: 6, 1, then the 4-5 gap.
	for _, col := range []int{6, 1, 5, 4} {
		if _, err := PlanSelect(seats, seatID(1, col), false); err != nil {
			t.Fatalf("column %d should be selectable at this point: %v", col, err)
		}
		seats[col-1].Status = protocol.StatusSelected
	}
}

func TestPlanSelect_OuterSeatRuleRelaxedWhenNothingElseLeft(t *testing.T) {
	// With column 5 still free elsewhere, clicking 3 next to the selected
	// pair is refused.
	seats := seatRow(1, "ssaaa")
	_, err := PlanSelect(seats, seatID(1, 3), false)
	wantErr(t, err, ErrPickOuterFirst)

	// Drop column 5 and the trio is all that is left: allowed.
	seats = seatRow(1, "ssaa")
	if _, err := PlanSelect(seats, seatID(1, 3), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same waiver even when finishing the row strands the outer seat.
	seats = seatRow(1, "bssaab")
	if _, err := PlanSelect(seats, seatID(1, 4), false); err != nil {
		t.Fatalf("last-seats waiver must also cover the orphan scan: %v", err)
	}
}

func TestPlanSelect_PreOrderEdgeRule(t *testing.T) {
	seats := seatRow(1, "aaaaaaaaaa")

	_, err := PlanSelect(seats, seatID(1, 5), true)
	wantErr(t, err, ErrEdgeFirst)

	for _, col := range []int{1, 10} {
		if _, err := PlanSelect(seats, seatID(1, col), true); err != nil {
			t.Fatalf("column %d is row-extremal and must pass: %v", col, err)
		}
	}

	// Once the row holds a selection the edge rule no longer applies.
	seats[0].Status = protocol.StatusSelected
	if _, err := PlanSelect(seats, seatID(1, 2), true); err != nil {
		t.Fatalf("non-empty row is free of the edge rule: %v", err)
	}
}

func TestPlanSelect_PreOrderEdgeCouple(t *testing.T) {
	// Columns 9,10 are a couple; clicking the inner half still touches the
	// row edge through its partner.
	seats := seatRow(1, "aaaaaaaaaa")
	couple(seats, 9, 10)
	if _, err := PlanSelect(seats, seatID(1, 9), true); err != nil {
		t.Fatalf("edge couple must pass via its partner: %v", err)
	}
}

func TestPlanSelect_CapRule(t *testing.T) {
	// Eight seats already selected in row 1; row 2 is open.
	seats := append(seatRow(1, "ssssssss"), seatRow(2, "aaaa")...)
	_, err := PlanSelect(seats, seatID(2, 1), false)
	wantErr(t, err, ErrSelectionLimit)

	// Seven selected plus a couple overshoots as well: halves count alone.
	seats = append(seatRow(1, "sssssssa"), seatRow(2, "aaaa")...)
	couple(seats[8:], 1, 2)
	_, err = PlanSelect(seats, seatID(2, 1), false)
	wantErr(t, err, ErrSelectionLimit)

	// A plain eighth seat is fine.
	if _, err := PlanSelect(seats, seatID(2, 4), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlanDeselect_Simple(t *testing.T) {
	seats := seatRow(1, "asaa")
	updates, err := PlanDeselect(seats, seatID(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 1 || updates[0].Status != protocol.StatusAvailable {
		t.Fatalf("want one release update, got %+v", updates)
	}
}

func TestPlanDeselect_NotSelected(t *testing.T) {
	seats := seatRow(1, "aaaa")
	_, err := PlanDeselect(seats, seatID(1, 2))
	wantErr(t, err, ErrNotSelected)
}

func TestPlanDeselect_CoupleReleasesBothHalves(t *testing.T) {
	seats := seatRow(1, "ssaa")
	couple(seats, 1, 2)
	updates, err := PlanDeselect(seats, seatID(1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("want both halves released, got %+v", updates)
	}
	for _, u := range updates {
		if u.Status != protocol.StatusAvailable {
			t.Fatalf("release must target Available: %+v", u)
		}
	}
}

func TestPlanDeselect_MiddleOfRunCreatesGap(t *testing.T) {
	seats := seatRow(1, "asssa")
	_, err := PlanDeselect(seats, seatID(1, 3))
	wantErr(t, err, ErrIsolatedSeat)
}

func TestPlanDeselect_AnchorRule(t *testing.T) {
	// Three selected in a run: the outer seat next to the adjacent pair
	// anchors the block.
	seats := seatRow(1, "asssaa")
	_, err := PlanDeselect(seats, seatID(1, 4))
	wantErr(t, err, ErrAnchorSeat)
	_, err = PlanDeselect(seats, seatID(1, 2))
	wantErr(t, err, ErrAnchorSeat)
}

func TestPlanDeselect_DetachedOuterSeatFree(t *testing.T) {
	// Selected at 1, 4, 5: column 1 is extremal but not adjacent to the
	// 4-5 pair, so releasing it is fine.
	seats := seatRow(1, "saassa")
	if _, err := PlanDeselect(seats, seatID(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlanDeselect_PairOfTwoFree(t *testing.T) {
	// Only two selected: the anchor rule needs three.
	seats := seatRow(1, "ssaa")
	if _, err := PlanDeselect(seats, seatID(1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPlanPayment(t *testing.T) {
	seats := seatRow(1, "ssaa")
	updates, err := PlanPayment(seats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("want 2 booked updates, got %d", len(updates))
	}
	for _, u := range updates {
		if u.Status != protocol.StatusBooked {
			t.Fatalf("payment must book: %+v", u)
		}
	}

	_, err = PlanPayment(seatRow(1, "aaaa"))
	wantErr(t, err, ErrEmptySelection)
}
