package protocol

// SeatStatus is the wire value for the state of one seat within one showtime.
// The numbering (with the gap at 2) comes from the booking backend and must
// not be renumbered.
type SeatStatus int

const (
	StatusAvailable   SeatStatus = 0
	StatusSelected    SeatStatus = 1
	StatusUnavailable SeatStatus = 3
	StatusHeld        SeatStatus = 4
	StatusBooked      SeatStatus = 5
)

func (s SeatStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusSelected, StatusUnavailable, StatusHeld, StatusBooked:
		return true
	}
	return false
}

func (s SeatStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusSelected:
		return "selected"
	case StatusUnavailable:
		return "unavailable"
	case StatusHeld:
		return "held"
	case StatusBooked:
		return "booked"
	default:
		return "unknown"
	}
}

// Seat is one bookable unit for a specific showtime. SeatID identifies the
// physical seat; SeatStatusID identifies the status record for this showtime
// and is what the server expects inside update requests.
type Seat struct {
	SeatID       int64      `json:"SeatId"`
	SeatStatusID int64      `json:"SeatStatusId"`
	RowNumber    int        `json:"RowNumber"`
	ColNumber    int        `json:"ColNumber"`
	SeatName     string     `json:"SeatName"`
	SeatType     string     `json:"SeatType"`
	Price        float64    `json:"Price"`
	PairSeatID   *int64     `json:"PairSeatId"`
	Status       SeatStatus `json:"Status"`
}

// IsCouple reports whether the seat is one half of a couple seat.
func (s Seat) IsCouple() bool { return s.PairSeatID != nil }

// SeatStatusUpdate is one entry of an UpdateStatus/Payment payload. SeatID
// carries the showtime-scoped SeatStatusID, not the physical seat id.
type SeatStatusUpdate struct {
	SeatID int64      `json:"SeatId"`
	Status SeatStatus `json:"Status"`
}

// Client -> server actions.
const (
	ActionGetList      = "GetList"
	ActionJoinRoom     = "JoinRoom"
	ActionUpdateStatus = "UpdateStatus"
	ActionPayment      = "Payment"
)

// Request is the single client -> server message shape.
type Request struct {
	Action                   string             `json:"Action"`
	SeatStatusUpdateRequests []SeatStatusUpdate `json:"SeatStatusUpdateRequests,omitempty"`
}

func GetListRequest() Request  { return Request{Action: ActionGetList} }
func JoinRoomRequest() Request { return Request{Action: ActionJoinRoom} }

func UpdateStatusRequest(updates []SeatStatusUpdate) Request {
	return Request{Action: ActionUpdateStatus, SeatStatusUpdateRequests: updates}
}

func PaymentRequest(updates []SeatStatusUpdate) Request {
	return Request{Action: ActionPayment, SeatStatusUpdateRequests: updates}
}
