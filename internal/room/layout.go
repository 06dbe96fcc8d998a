package room

import (
	"fmt"
	"hash/fnv"

	"github.com/cinehall/seatlink/pkg/protocol"
)

// Layout describes one hall's seat grid for a showtime. Couple rows pair
// neighbouring columns (1-2, 3-4, ...); VIP rows only change type and price.
type Layout struct {
	Rows        int
	Cols        int
	CoupleRows  []int
	VIPRows     []int
	Price       float64
	CouplePrice float64
	VIPPrice    float64
}

func (l Layout) withDefaults() Layout {
	if l.Rows <= 0 {
		l.Rows = 8
	}
	if l.Cols <= 0 {
		l.Cols = 10
	}
	if l.Price <= 0 {
		l.Price = 10
	}
	if l.CouplePrice <= 0 {
		l.CouplePrice = l.Price * 1.8
	}
	if l.VIPPrice <= 0 {
		l.VIPPrice = l.Price * 1.5
	}
	return l
}

// Seats builds the grid for one showtime. Physical seat ids depend only on
// the position; status-record ids are salted with the showtime so the same
// chair gets a different status id per showtime, as the booking backend does.
func (l Layout) Seats(showtimeID string) []protocol.Seat {
	l = l.withDefaults()

	h := fnv.New32a()
	h.Write([]byte(showtimeID))
	base := int64(h.Sum32()%90000+10000) * 1000

	coupleRows := make(map[int]bool, len(l.CoupleRows))
	for _, row := range l.CoupleRows {
		coupleRows[row] = true
	}
	vipRows := make(map[int]bool, len(l.VIPRows))
	for _, row := range l.VIPRows {
		vipRows[row] = true
	}

	seats := make([]protocol.Seat, 0, l.Rows*l.Cols)
	for row := 1; row <= l.Rows; row++ {
		for col := 1; col <= l.Cols; col++ {
			seatID := int64(row*100 + col)
			seat := protocol.Seat{
				SeatID:       seatID,
				SeatStatusID: base + seatID,
				RowNumber:    row,
				ColNumber:    col,
				SeatName:     fmt.Sprintf("%c%d", 'A'+row-1, col),
				SeatType:     "standard",
				Price:        l.Price,
				Status:       protocol.StatusAvailable,
			}
			switch {
			case coupleRows[row]:
				seat.SeatType = "couple"
				seat.Price = l.CouplePrice
				var pair int64
				if col%2 == 1 {
					pair = int64(row*100 + col + 1)
				} else {
					pair = int64(row*100 + col - 1)
				}
				if pairCol := int(pair % 100); pairCol >= 1 && pairCol <= l.Cols {
					seat.PairSeatID = &pair
				}
			case vipRows[row]:
				seat.SeatType = "vip"
				seat.Price = l.VIPPrice
			}
			seats = append(seats, seat)
		}
	}
	return seats
}
