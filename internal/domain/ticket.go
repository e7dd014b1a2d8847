package domain

import "time"

// LotteryTicket holds a user's ticket accrual for one week.
// Ticket ranges are half-open [TicketRangeStart, TicketRangeEnd) and set only by the snapshot.
type LotteryTicket struct {
	WeekID           string    `bson:"weekId" json:"weekId"`
	FID              int64     `bson:"fid" json:"fid"`
	BetBasedTickets  float64   `bson:"betBasedTickets" json:"betBasedTickets"`
	GameBasedTickets float64   `bson:"gameBasedTickets" json:"gameBasedTickets"`
	BonusTickets     float64   `bson:"bonusTickets" json:"bonusTickets"`
	TotalTickets     float64   `bson:"totalTickets" json:"totalTickets"`
	GamesPlayed      int64     `bson:"gamesPlayed" json:"gamesPlayed"`
	TotalWagered     int64     `bson:"totalWagered" json:"totalWagered"`
	ConsecutiveDays  int       `bson:"consecutiveDays" json:"consecutiveDays"`
	DaysPlayed       []string  `bson:"daysPlayed" json:"daysPlayed"`
	StreakMultiplier float64   `bson:"streakMultiplier" json:"streakMultiplier"`
	TicketRangeStart int64     `bson:"ticketRangeStart" json:"ticketRangeStart"`
	TicketRangeEnd   int64     `bson:"ticketRangeEnd" json:"ticketRangeEnd"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TicketRange is the snapshot assignment of ticket numbers to a user.
type TicketRange struct {
	FID   int64
	Start int64
	End   int64
}

func (r TicketRange) Size() int64 {
	return r.End - r.Start
}

// LotteryPayout marks a single lottery credit as paid.
// Position is the drawn position, PayoutConsolation or PayoutRollover.
type LotteryPayout struct {
	WeekID       string    `bson:"weekId" json:"weekId"`
	Position     int       `bson:"position" json:"position"`
	FID          int64     `bson:"fid" json:"fid"`
	Tier         int       `bson:"tier" json:"tier"`
	TicketNumber int64     `bson:"ticketNumber" json:"ticketNumber"`
	Amount       int64     `bson:"amount" json:"amount"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

const (
	PayoutConsolation = -1
	PayoutRollover    = -2
)
