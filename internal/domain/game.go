package domain

import "time"

// GameStatus - состояние игры в bet mode
type GameStatus string

const (
	GameStatusActive    GameStatus = "active"
	GameStatusWon       GameStatus = "won"
	GameStatusLost      GameStatus = "lost"
	GameStatusCashedOut GameStatus = "cashed_out"
)

// Difficulty of a trivia question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Question is an entry of the bet_mode_questions pool.
type Question struct {
	QuestionID   string     `bson:"questionId" json:"questionId"`
	Text         string     `bson:"text" json:"text"`
	Options      []string   `bson:"options" json:"options"`
	CorrectIndex int        `bson:"correctIndex" json:"-"`
	Difficulty   Difficulty `bson:"difficulty" json:"difficulty"`
	Active       bool       `bson:"active" json:"-"`
}

// GameQuestion is a question copied into a game together with the user's answer.
type GameQuestion struct {
	QuestionID   string     `bson:"questionId" json:"questionId"`
	Text         string     `bson:"text" json:"text"`
	Options      []string   `bson:"options" json:"options"`
	CorrectIndex int        `bson:"correctIndex" json:"-"`
	Difficulty   Difficulty `bson:"difficulty" json:"difficulty"`
	UserAnswer   *int       `bson:"userAnswer,omitempty" json:"userAnswer,omitempty"`
	IsCorrect    *bool      `bson:"isCorrect,omitempty" json:"isCorrect,omitempty"`
	AnsweredAt   *time.Time `bson:"answeredAt,omitempty" json:"answeredAt,omitempty"`
}

// Game is a single bet mode session.
// CurrentQuestion is 1-based and points at the next unanswered question.
type Game struct {
	GameID          string         `bson:"gameId" json:"gameId"`
	FID             int64          `bson:"fid" json:"fid"`
	BetAmount       int64          `bson:"betAmount" json:"betAmount"`
	Status          GameStatus     `bson:"status" json:"status"`
	CurrentQuestion int            `bson:"currentQuestion" json:"currentQuestion"`
	Questions       []GameQuestion `bson:"questions" json:"-"`
	WeekID          string         `bson:"weekId" json:"weekId"`
	Payout          int64          `bson:"payout" json:"payout"`
	Multiplier      float64        `bson:"multiplier" json:"multiplier"`
	Forfeited       bool           `bson:"forfeited,omitempty" json:"forfeited,omitempty"`
	Version         int64          `bson:"version" json:"-"`
	StartedAt       time.Time      `bson:"startedAt" json:"startedAt"`
	CompletedAt     *time.Time     `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

func (g *Game) IsActive() bool {
	return g.Status == GameStatusActive
}
