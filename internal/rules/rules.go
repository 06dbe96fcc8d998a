// Package rules decides whether a clerk's seat click is legal before anything
// is sent over the wire. The checks run against the server-confirmed grid on
// every call; they are a pre-flight gate for UX only, never the source of
// truth — the next broadcast can still override whatever they allowed.
package rules

import (
	"errors"
	"sort"

	"github.com/cinehall/seatlink/pkg/protocol"
)

// MaxSelection caps the number of seats one session may hold. Each half of a
// couple seat counts on its own.
const MaxSelection = 8

// Rule violations double as the user-facing validation message.
var (
	ErrUnknownSeat     = errors.New("that seat does not exist for this showtime")
	ErrSeatUnavailable = errors.New("that seat has just been taken, please pick another")
	ErrNotSelected     = errors.New("that seat is not part of your selection")
	ErrSelectionLimit  = errors.New("you can book at most 8 seats per order")
	ErrEdgeFirst       = errors.New("pre-order seats must be picked from the end of the row first")
	ErrPickOuterFirst  = errors.New("please select the outer seat first so no single seat is left stranded")
	ErrIsolatedSeat    = errors.New("this choice would leave a single seat stranded, please adjust your selection")
	ErrAnchorSeat      = errors.New("this seat holds your row together, release its neighbours first")
	ErrEmptySelection  = errors.New("no seats are selected")
)

// PlanSelect validates selecting the seat with the given physical id and, if
// legal, returns the wire-ready updates (showtime-scoped ids, couple partner
// included when its half is still free). On violation it returns the sentinel
// error and no state is touched anywhere.
func PlanSelect(seats []protocol.Seat, seatID int64, preOrder bool) ([]protocol.SeatStatusUpdate, error) {
	target := findBySeatID(seats, seatID)
	if target == nil {
		return nil, ErrUnknownSeat
	}
	if target.Status != protocol.StatusAvailable {
		return nil, ErrSeatUnavailable
	}

	group := []protocol.Seat{*target}
	if target.PairSeatID != nil {
		if partner := findBySeatID(seats, *target.PairSeatID); partner != nil && partner.Status == protocol.StatusAvailable {
			group = append(group, *partner)
		}
	}

	if countSelected(seats)+len(group) > MaxSelection {
		return nil, ErrSelectionLimit
	}

	row := rowOf(seats, target.RowNumber)

	if preOrder && !rowHasSelected(row) {
		if !touchesRowEdge(row, group) {
			return nil, ErrEdgeFirst
		}
	}

	lastSeats, err := checkOuterFirst(row, *target, group)
	if err != nil {
		return nil, err
	}

	// When the clicked seat and its outer neighbour are the last selectable
	// seats of the row, the row is being finished and a momentary strand is
	// unavoidable: the orphan check stands down.
	if !lastSeats {
		sim := simulate(row, group, protocol.StatusSelected)
		if err := checkNoOrphan(sim); err != nil {
			return nil, err
		}
	}

	return toUpdates(group, protocol.StatusSelected), nil
}

// PlanDeselect validates releasing a currently selected seat. A couple
// partner that is also selected is released with it.
func PlanDeselect(seats []protocol.Seat, seatID int64) ([]protocol.SeatStatusUpdate, error) {
	target := findBySeatID(seats, seatID)
	if target == nil {
		return nil, ErrUnknownSeat
	}
	if target.Status != protocol.StatusSelected {
		return nil, ErrNotSelected
	}

	group := []protocol.Seat{*target}
	if target.PairSeatID != nil {
		if partner := findBySeatID(seats, *target.PairSeatID); partner != nil && partner.Status == protocol.StatusSelected {
			group = append(group, *partner)
		}
	}

	row := rowOf(seats, target.RowNumber)

	if err := checkAnchor(row, *target); err != nil {
		return nil, err
	}

	sim := simulate(row, group, protocol.StatusAvailable)
	if err := checkNoOrphan(sim); err != nil {
		return nil, err
	}

	return toUpdates(group, protocol.StatusAvailable), nil
}

// PlanPayment turns the current selection into Booked updates for the Payment
// action.
func PlanPayment(seats []protocol.Seat) ([]protocol.SeatStatusUpdate, error) {
	var group []protocol.Seat
	for _, s := range seats {
		if s.Status == protocol.StatusSelected {
			group = append(group, s)
		}
	}
	if len(group) == 0 {
		return nil, ErrEmptySelection
	}
	return toUpdates(group, protocol.StatusBooked), nil
}

// checkOuterFirst is the adjacent-pair boundary rule. Extending an existing
// selection inward while the seat on the far side of the clicked one is still
// free walls that outer seat in, so the outer one must be picked first while
// alternatives exist. When the trio is all the row has left, the selection is
// allowed regardless; the returned flag tells the caller to also waive the
// orphan scan so the row can be finished.
func checkOuterFirst(row []protocol.Seat, target protocol.Seat, group []protocol.Seat) (lastSeats bool, err error) {
	for _, dir := range []int{-1, 1} {
		neighbor := seatAtCol(row, target.ColNumber+dir)
		if neighbor == nil || neighbor.Status != protocol.StatusSelected {
			continue
		}
		outer := seatAtCol(row, target.ColNumber-dir)
		if outer == nil || outer.Status != protocol.StatusAvailable || inGroup(group, outer.SeatID) {
			continue
		}
		others := false
		for _, s := range row {
			if s.Status != protocol.StatusAvailable || inGroup(group, s.SeatID) {
				continue
			}
			if s.ColNumber == target.ColNumber || s.ColNumber == outer.ColNumber || s.ColNumber == neighbor.ColNumber {
				continue
			}
			others = true
			break
		}
		if others {
			// Another seat is still selectable, so insisting on the
			// outer one costs the clerk nothing.
			return false, ErrPickOuterFirst
		}
		lastSeats = true
	}
	return lastSeats, nil
}

// checkNoOrphan scans a (hypothetical) row for a free seat walled in by
// occupied seats on both sides. Row edges and aisle gaps never violate. A
// free half of a couple whose partner is selected is not an orphan: the pair
// sells as one unit.
func checkNoOrphan(row []protocol.Seat) error {
	for i, s := range row {
		if s.Status != protocol.StatusAvailable {
			continue
		}
		if i == 0 || i == len(row)-1 {
			continue
		}
		left, right := row[i-1], row[i+1]
		if left.ColNumber != s.ColNumber-1 || right.ColNumber != s.ColNumber+1 {
			continue
		}
		if !occupied(left.Status) || !occupied(right.Status) {
			continue
		}
		if s.PairSeatID != nil {
			if partner := findBySeatID(row, *s.PairSeatID); partner != nil && partner.Status == protocol.StatusSelected {
				continue
			}
		}
		return ErrIsolatedSeat
	}
	return nil
}

// checkAnchor is the deselection boundary rule: with three or more seats
// selected in the row, the outermost selected seat next to an adjacent
// selected pair anchors the block and may not be released first.
func checkAnchor(row []protocol.Seat, target protocol.Seat) error {
	var cols []int
	for _, s := range row {
		if s.Status == protocol.StatusSelected {
			cols = append(cols, s.ColNumber)
		}
	}
	if len(cols) < 3 {
		return nil
	}
	sort.Ints(cols)
	if target.ColNumber != cols[0] && target.ColNumber != cols[len(cols)-1] {
		return nil
	}
	var others []int
	for _, c := range cols {
		if c != target.ColNumber {
			others = append(others, c)
		}
	}
	for i := 0; i+1 < len(others); i++ {
		if others[i+1]-others[i] != 1 {
			continue
		}
		if abs(target.ColNumber-others[i]) == 1 || abs(target.ColNumber-others[i+1]) == 1 {
			return ErrAnchorSeat
		}
	}
	return nil
}

func occupied(st protocol.SeatStatus) bool {
	return st == protocol.StatusSelected || st == protocol.StatusBooked
}

func findBySeatID(seats []protocol.Seat, id int64) *protocol.Seat {
	for i := range seats {
		if seats[i].SeatID == id {
			return &seats[i]
		}
	}
	return nil
}

// rowOf returns the seats of one row ordered by column.
func rowOf(seats []protocol.Seat, rowNumber int) []protocol.Seat {
	var row []protocol.Seat
	for _, s := range seats {
		if s.RowNumber == rowNumber {
			row = append(row, s)
		}
	}
	sort.Slice(row, func(i, j int) bool { return row[i].ColNumber < row[j].ColNumber })
	return row
}

func seatAtCol(row []protocol.Seat, col int) *protocol.Seat {
	for i := range row {
		if row[i].ColNumber == col {
			return &row[i]
		}
	}
	return nil
}

func rowHasSelected(row []protocol.Seat) bool {
	for _, s := range row {
		if s.Status == protocol.StatusSelected {
			return true
		}
	}
	return false
}

// touchesRowEdge reports whether any seat of the group is the leftmost or
// rightmost still-selectable seat of the row. Either half of an edge couple
// qualifies, since the pair moves as one unit.
func touchesRowEdge(row []protocol.Seat, group []protocol.Seat) bool {
	lo, hi := 0, 0
	found := false
	for _, s := range row {
		if s.Status != protocol.StatusAvailable {
			continue
		}
		if !found {
			lo, hi = s.ColNumber, s.ColNumber
			found = true
			continue
		}
		if s.ColNumber < lo {
			lo = s.ColNumber
		}
		if s.ColNumber > hi {
			hi = s.ColNumber
		}
	}
	if !found {
		return false
	}
	for _, g := range group {
		if g.ColNumber == lo || g.ColNumber == hi {
			return true
		}
	}
	return false
}

func countSelected(seats []protocol.Seat) int {
	n := 0
	for _, s := range seats {
		if s.Status == protocol.StatusSelected {
			n++
		}
	}
	return n
}

func inGroup(group []protocol.Seat, seatID int64) bool {
	for _, g := range group {
		if g.SeatID == seatID {
			return true
		}
	}
	return false
}

// simulate copies the row and applies the hypothetical status to the group
// members. The caller's slice is never touched.
func simulate(row []protocol.Seat, group []protocol.Seat, st protocol.SeatStatus) []protocol.Seat {
	sim := make([]protocol.Seat, len(row))
	copy(sim, row)
	for i := range sim {
		if inGroup(group, sim[i].SeatID) {
			sim[i].Status = st
		}
	}
	return sim
}

func toUpdates(group []protocol.Seat, st protocol.SeatStatus) []protocol.SeatStatusUpdate {
	updates := make([]protocol.SeatStatusUpdate, len(group))
	for i, g := range group {
		updates[i] = protocol.SeatStatusUpdate{SeatID: g.SeatStatusID, Status: st}
	}
	return updates
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
