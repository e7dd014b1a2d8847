package domain

import "time"

// PoolStatus is the lifecycle state of a weekly pool.
// open -> snapshotting -> snapshot_taken -> drawing -> drawn -> burning -> burned
type PoolStatus string

const (
	PoolStatusOpen          PoolStatus = "open"
	PoolStatusSnapshotting  PoolStatus = "snapshotting"
	PoolStatusSnapshotTaken PoolStatus = "snapshot_taken"
	PoolStatusDrawing       PoolStatus = "drawing"
	PoolStatusDrawn         PoolStatus = "drawn"
	PoolStatusBurning       PoolStatus = "burning"
	PoolStatusBurned        PoolStatus = "burned"
)

var poolStatusOrder = map[PoolStatus]int{
	PoolStatusOpen:          0,
	PoolStatusSnapshotting:  1,
	PoolStatusSnapshotTaken: 2,
	PoolStatusDrawing:       3,
	PoolStatusDrawn:         4,
	PoolStatusBurning:       5,
	PoolStatusBurned:        6,
}

// Reached reports whether s is at or past target in the lifecycle.
func (s PoolStatus) Reached(target PoolStatus) bool {
	return poolStatusOrder[s] >= poolStatusOrder[target]
}

// Winner is a drawn lottery position.
type Winner struct {
	Position     int    `bson:"position" json:"position"`
	Tier         int    `bson:"tier" json:"tier"`
	TicketNumber int64  `bson:"ticketNumber" json:"ticketNumber"`
	FID          int64  `bson:"fid" json:"fid"`
	Amount       int64  `bson:"amount" json:"amount"`
	Username     string `bson:"username,omitempty" json:"username,omitempty"`
}

// WeeklyPool aggregates the loss shares of one ISO week.
type WeeklyPool struct {
	WeekID            string     `bson:"weekId" json:"weekId"`
	Status            PoolStatus `bson:"status" json:"status"`
	TotalLosses       int64      `bson:"totalLosses" json:"totalLosses"`
	ToBurnAccumulated int64      `bson:"toBurnAccumulated" json:"toBurnAccumulated"`
	LotteryPool       int64      `bson:"lotteryPool" json:"lotteryPool"`
	PlatformRevenue   int64      `bson:"platformRevenue" json:"platformRevenue"`
	RolloverIn        int64      `bson:"rolloverIn" json:"rolloverIn"`
	TotalGames        int64      `bson:"totalGames" json:"totalGames"`
	TotalWagered      int64      `bson:"totalWagered" json:"totalWagered"`
	TotalPayouts      int64      `bson:"totalPayouts" json:"totalPayouts"`

	SnapshotTaken bool `bson:"snapshotTaken" json:"snapshotTaken"`
	DrawCompleted bool `bson:"drawCompleted" json:"drawCompleted"`
	BurnCompleted bool `bson:"burnCompleted" json:"burnCompleted"`

	FinalPool            int64    `bson:"finalPool" json:"finalPool"`
	TotalTickets         int64    `bson:"totalTickets" json:"totalTickets"`
	TotalParticipants    int      `bson:"totalParticipants" json:"totalParticipants"`
	Winners              []Winner `bson:"winners" json:"winners"`
	ConsolationPerHolder int64    `bson:"consolationPerHolder" json:"consolationPerHolder"`
	ConsolationHolders   int      `bson:"consolationHolders" json:"consolationHolders"`
	RolloverOut          int64    `bson:"rolloverOut" json:"rolloverOut"`
	DrawSeed             string   `bson:"drawSeed,omitempty" json:"drawSeed,omitempty"`
	BurnTxHash           string   `bson:"burnTxHash,omitempty" json:"burnTxHash,omitempty"`
	BurnRawTx            string   `bson:"burnRawTx,omitempty" json:"-"`

	LeaseExpiresAt *time.Time `bson:"leaseExpiresAt,omitempty" json:"-"`
	LastError      string     `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// PoolDelta is applied to a weekly pool with $inc.
type PoolDelta struct {
	TotalLosses  int64
	ToBurn       int64
	Lottery      int64
	Platform     int64
	RolloverIn   int64
	TotalGames   int64
	TotalWagered int64
	TotalPayouts int64
}

// DrawOutcome is persisted on the pool when the draw completes.
type DrawOutcome struct {
	Winners              []Winner `json:"winners"`
	ConsolationPerHolder int64    `json:"consolationPerHolder"`
	ConsolationHolders   int      `json:"consolationHolders"`
	RolloverOut          int64    `json:"rolloverOut"`
}
