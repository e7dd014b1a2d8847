package domain

const (
	EventNameGameSettled   = "game.settled"
	EventNamePoolUpdated   = "pool.updated"
	EventNameDrawCompleted = "draw.completed"
	EventNameBurnCompleted = "burn.completed"
)

// EventGameSettled is published after a game leaves the active state.
// Net is the user's result: payout minus bet on a win, minus bet on a loss.
type EventGameSettled struct {
	Game Game
	Net  int64
}

func (EventGameSettled) Name() string { return EventNameGameSettled }

type EventPoolUpdated struct {
	Pool WeeklyPool
}

func (EventPoolUpdated) Name() string { return EventNamePoolUpdated }

type EventDrawCompleted struct {
	WeekID  string
	Outcome DrawOutcome
}

func (EventDrawCompleted) Name() string { return EventNameDrawCompleted }

type EventBurnCompleted struct {
	WeekID string
	Amount int64
	TxHash string
}

func (EventBurnCompleted) Name() string { return EventNameBurnCompleted }
