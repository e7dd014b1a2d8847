package game

import (
	"errors"
	"time"

	"trivia_backend/internal/domain"
)

var (
	ErrGameNotActive    = errors.New("game is not active")
	ErrInvalidAnswer    = errors.New("answer index out of range")
	ErrCashOutTooEarly  = errors.New("cash out is available from question 5")
	ErrGameInconsistent = errors.New("game has no current question")
)

// AnswerResult describes the outcome of a single answer.
type AnswerResult struct {
	Correct      bool
	CorrectIndex int
	Finished     bool
	Payout       int64
	Multiplier   float64
}

// PublicQuestion is a question as sent to the client (no answer).
type PublicQuestion struct {
	Index      int               `json:"index"`
	QuestionID string            `json:"questionId"`
	Text       string            `json:"text"`
	Options    []string          `json:"options"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

// Answer applies an answer to the current question of an active game.
// A wrong answer loses the game; a correct answer to question 10 cashes out at 10x.
func Answer(g *domain.Game, answerIndex int, now time.Time) (AnswerResult, error) {
	if !g.IsActive() {
		return AnswerResult{}, ErrGameNotActive
	}
	if g.CurrentQuestion < 1 || g.CurrentQuestion > len(g.Questions) || g.CurrentQuestion > MaxQuestions {
		return AnswerResult{}, ErrGameInconsistent
	}

	q := &g.Questions[g.CurrentQuestion-1]
	if answerIndex < 0 || answerIndex >= len(q.Options) {
		return AnswerResult{}, ErrInvalidAnswer
	}

	correct := answerIndex == q.CorrectIndex
	answered := now
	q.UserAnswer = &answerIndex
	q.IsCorrect = &correct
	q.AnsweredAt = &answered

	res := AnswerResult{Correct: correct, CorrectIndex: q.CorrectIndex}

	if !correct {
		finish(g, domain.GameStatusLost, 0, 0, now)
		res.Finished = true
		return res, nil
	}

	if g.CurrentQuestion == MaxQuestions {
		payout, _ := Payout(g.BetAmount, MaxQuestions)
		mult, _ := Multiplier(MaxQuestions)
		finish(g, domain.GameStatusWon, payout, mult, now)
		res.Finished = true
		res.Payout = payout
		res.Multiplier = mult
		return res, nil
	}

	res.Multiplier, _ = Multiplier(g.CurrentQuestion)
	g.Multiplier = res.Multiplier
	g.CurrentQuestion++
	return res, nil
}

// CashOut ends the game paying the multiplier of the last answered question.
func CashOut(g *domain.Game, now time.Time) (int64, error) {
	if !g.IsActive() {
		return 0, ErrGameNotActive
	}
	if !CanCashOut(g) {
		return 0, ErrCashOutTooEarly
	}

	payout, err := Payout(g.BetAmount, g.CurrentQuestion-1)
	if err != nil {
		return 0, err
	}
	mult, _ := Multiplier(g.CurrentQuestion - 1)
	finish(g, domain.GameStatusCashedOut, payout, mult, now)
	return payout, nil
}

// Forfeit closes an active game as a loss when its week is finalized.
func Forfeit(g *domain.Game, now time.Time) error {
	if !g.IsActive() {
		return ErrGameNotActive
	}
	g.Forfeited = true
	finish(g, domain.GameStatusLost, 0, 0, now)
	return nil
}

func CanCashOut(g *domain.Game) bool {
	return g.IsActive() && g.CurrentQuestion >= CashOutFromQuestion
}

// PotentialPayout is what a cash-out would pay right now, 0 if not allowed.
func PotentialPayout(g *domain.Game) int64 {
	if !CanCashOut(g) {
		return 0
	}
	p, _ := Payout(g.BetAmount, g.CurrentQuestion-1)
	return p
}

// CurrentQuestion returns the next unanswered question without its answer.
func CurrentQuestion(g *domain.Game) *PublicQuestion {
	if !g.IsActive() || g.CurrentQuestion < 1 || g.CurrentQuestion > len(g.Questions) {
		return nil
	}
	q := g.Questions[g.CurrentQuestion-1]
	return &PublicQuestion{
		Index:      g.CurrentQuestion,
		QuestionID: q.QuestionID,
		Text:       q.Text,
		Options:    q.Options,
		Difficulty: q.Difficulty,
	}
}

func finish(g *domain.Game, status domain.GameStatus, payout int64, mult float64, now time.Time) {
	g.Status = status
	g.Payout = payout
	g.Multiplier = mult
	completed := now
	g.CompletedAt = &completed
}
