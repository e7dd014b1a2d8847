package game

import (
	"fmt"
	"math"
	"testing"
	"time"

	"trivia_backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplierStrictlyIncreasing(t *testing.T) {
	prev := 1.0
	for q := 1; q <= MaxQuestions; q++ {
		m, err := Multiplier(q)
		require.NoError(t, err)
		assert.Greater(t, m, prev, "question %d", q)
		prev = m
	}

	first, _ := Multiplier(1)
	last, _ := Multiplier(MaxQuestions)
	assert.Equal(t, 1.1, first)
	assert.Equal(t, 10.0, last)

	_, err := Multiplier(0)
	assert.ErrorIs(t, err, ErrInvalidQuestionIndex)
	_, err = Multiplier(11)
	assert.ErrorIs(t, err, ErrInvalidQuestionIndex)
}

func TestPayoutIsFloorOfBetTimesMultiplier(t *testing.T) {
	bets := []int64{1, 7, 99, 10_000, 12_345, 333_333, 10_000_000}
	for _, b := range bets {
		for q := 1; q <= MaxQuestions; q++ {
			got, err := Payout(b, q)
			require.NoError(t, err)

			m, _ := Multiplier(q)
			// exact in hundredths, compare against a float with a small guard
			want := int64(math.Floor(float64(b)*m + 1e-9))
			assert.Equal(t, want, got, "bet=%d q=%d", b, q)
		}
	}

	got, _ := Payout(100, 3)
	assert.Equal(t, int64(130), got)
	got, _ = Payout(15, 1)
	assert.Equal(t, int64(16), got)
}

func TestCalculateLossDistribution(t *testing.T) {
	for _, loss := range []int64{0, 1, 2, 3, 19, 20, 99, 10_000, 123_457, 9_999_999} {
		d := CalculateLossDistribution(loss)
		assert.GreaterOrEqual(t, d.Burn, int64(0))
		assert.GreaterOrEqual(t, d.Lottery, int64(0))
		assert.GreaterOrEqual(t, d.Platform, int64(0))
		assert.LessOrEqual(t, d.Burn+d.Lottery+d.Platform, loss, "loss=%d", loss)
	}

	assert.Equal(t, LossDistribution{Burn: 6000, Lottery: 3500, Platform: 500}, CalculateLossDistribution(10_000))
	assert.Equal(t, LossDistribution{}, CalculateLossDistribution(-5))
}

func TestCalculateBaseTicketsMonotonic(t *testing.T) {
	wagers := []int64{0, 1, 9_999, 10_000, 10_001, 25_000, 1_000_000}
	games := []int64{0, 1, 2, 3, 10}

	for i := 1; i < len(wagers); i++ {
		for _, g := range games {
			assert.GreaterOrEqual(t, CalculateBaseTickets(wagers[i], g), CalculateBaseTickets(wagers[i-1], g))
		}
	}
	for i := 1; i < len(games); i++ {
		for _, w := range wagers {
			assert.GreaterOrEqual(t, CalculateBaseTickets(w, games[i]), CalculateBaseTickets(w, games[i-1]))
		}
	}

	assert.Equal(t, 3.5, CalculateBaseTickets(25_000, 3))
}

func TestCalculateConsecutiveDays(t *testing.T) {
	tests := map[string]struct {
		days []string
		want int
	}{
		"gap breaks the run":   {[]string{"2025-01-01", "2025-01-02", "2025-01-04"}, 2},
		"empty":                {nil, 0},
		"single day":           {[]string{"2025-01-01"}, 1},
		"unordered duplicates": {[]string{"2025-01-03", "2025-01-01", "2025-01-02", "2025-01-02"}, 3},
		"month boundary":       {[]string{"2025-01-31", "2025-02-01"}, 2},
		"invalid ignored":      {[]string{"nope", "2025-01-05", "2025-01-06"}, 2},
		"longest run wins":     {[]string{"2025-01-01", "2025-01-03", "2025-01-04", "2025-01-05"}, 3},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, CalculateConsecutiveDays(tc.days))
		})
	}
}

func TestStreakMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, StreakMultiplier(0))
	assert.Equal(t, 1.0, StreakMultiplier(2))
	assert.Equal(t, 1.1, StreakMultiplier(3))
	assert.Equal(t, 1.1, StreakMultiplier(6))
	assert.Equal(t, 1.5, StreakMultiplier(7))
}

func TestApplyTicketTotals(t *testing.T) {
	tk := &domain.LotteryTicket{
		TotalWagered: 25_000,
		GamesPlayed:  3,
		BonusTickets: 1,
		DaysPlayed:   []string{"2025-01-13", "2025-01-14", "2025-01-15"},
	}
	ApplyTicketTotals(tk)

	assert.Equal(t, 2.0, tk.BetBasedTickets)
	assert.Equal(t, 1.5, tk.GameBasedTickets)
	assert.Equal(t, 3, tk.ConsecutiveDays)
	assert.Equal(t, 1.1, tk.StreakMultiplier)
	assert.Equal(t, 4.85, tk.TotalTickets)
	assert.Equal(t, int64(4), WholeTickets(tk.TotalTickets))
}

func newTestGame(bet int64) *domain.Game {
	qs := make([]domain.GameQuestion, MaxQuestions)
	for i := range qs {
		qs[i] = domain.GameQuestion{
			QuestionID:   fmt.Sprintf("q%d", i+1),
			Text:         fmt.Sprintf("question %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return &domain.Game{
		GameID:          "g1",
		FID:             42,
		BetAmount:       bet,
		Status:          domain.GameStatusActive,
		CurrentQuestion: 1,
		Questions:       qs,
	}
}

func answerCorrect(t *testing.T, g *domain.Game, now time.Time) AnswerResult {
	t.Helper()
	res, err := Answer(g, g.Questions[g.CurrentQuestion-1].CorrectIndex, now)
	require.NoError(t, err)
	require.True(t, res.Correct)
	return res
}

func TestAnswerWrongLosesGame(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	g := newTestGame(10_000)

	answerCorrect(t, g, now)
	res, err := Answer(g, (g.Questions[1].CorrectIndex+1)%4, now)
	require.NoError(t, err)

	assert.False(t, res.Correct)
	assert.True(t, res.Finished)
	assert.Equal(t, g.Questions[1].CorrectIndex, res.CorrectIndex)
	assert.Equal(t, domain.GameStatusLost, g.Status)
	assert.Equal(t, int64(0), g.Payout)
	require.NotNil(t, g.CompletedAt)

	_, err = Answer(g, 0, now)
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestAnswerAllCorrectAutoCashesOut(t *testing.T) {
	now := time.Now()
	g := newTestGame(10_000)

	var res AnswerResult
	for i := 0; i < MaxQuestions; i++ {
		res = answerCorrect(t, g, now)
	}

	assert.True(t, res.Finished)
	assert.Equal(t, int64(100_000), res.Payout)
	assert.Equal(t, domain.GameStatusWon, g.Status)
	assert.Equal(t, 10.0, g.Multiplier)
	assert.Equal(t, MaxQuestions, g.CurrentQuestion)
}

func TestAnswerRejectsOutOfRangeIndex(t *testing.T) {
	g := newTestGame(10_000)
	_, err := Answer(g, 4, time.Now())
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	_, err = Answer(g, -1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	assert.Nil(t, g.Questions[0].UserAnswer)
}

func TestCashOut(t *testing.T) {
	now := time.Now()
	g := newTestGame(10_000)

	for i := 0; i < 3; i++ {
		answerCorrect(t, g, now)
	}
	assert.False(t, CanCashOut(g))
	_, err := CashOut(g, now)
	assert.ErrorIs(t, err, ErrCashOutTooEarly)

	answerCorrect(t, g, now)
	require.Equal(t, 5, g.CurrentQuestion)
	assert.True(t, CanCashOut(g))
	assert.Equal(t, int64(15_000), PotentialPayout(g))

	payout, err := CashOut(g, now)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), payout)
	assert.Equal(t, domain.GameStatusCashedOut, g.Status)
	assert.Equal(t, 1.5, g.Multiplier)

	_, err = CashOut(g, now)
	assert.ErrorIs(t, err, ErrGameNotActive)
}

func TestForfeit(t *testing.T) {
	g := newTestGame(10_000)
	require.NoError(t, Forfeit(g, time.Now()))
	assert.Equal(t, domain.GameStatusLost, g.Status)
	assert.True(t, g.Forfeited)
	assert.ErrorIs(t, Forfeit(g, time.Now()), ErrGameNotActive)
}

func TestCurrentQuestionHidesAnswer(t *testing.T) {
	g := newTestGame(10_000)
	q := CurrentQuestion(g)
	require.NotNil(t, q)
	assert.Equal(t, 1, q.Index)
	assert.Equal(t, "q1", q.QuestionID)

	g.Status = domain.GameStatusLost
	assert.Nil(t, CurrentQuestion(g))
}

func bucket(prefix string, d domain.Difficulty, n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{QuestionID: fmt.Sprintf("%s%d", prefix, i), Options: []string{"x", "y"}, Difficulty: d, Active: true}
	}
	return out
}

func TestBuildQuestions(t *testing.T) {
	qs, err := BuildQuestions([][]domain.Question{
		bucket("e", domain.DifficultyEasy, 4),
		bucket("h", domain.DifficultyHard, 3),
		bucket("x", domain.DifficultyExpert, 5),
	})
	require.NoError(t, err)
	require.Len(t, qs, MaxQuestions)

	counts := map[domain.Difficulty]int{}
	for _, q := range qs {
		counts[q.Difficulty]++
	}
	assert.Equal(t, 4, counts[domain.DifficultyEasy])
	assert.Equal(t, 3, counts[domain.DifficultyHard])
	assert.Equal(t, 3, counts[domain.DifficultyExpert])

	_, err = BuildQuestions([][]domain.Question{
		bucket("e", domain.DifficultyEasy, 4),
		bucket("h", domain.DifficultyHard, 2),
		bucket("x", domain.DifficultyExpert, 3),
	})
	assert.ErrorIs(t, err, ErrNotEnoughQuestions)
}

func TestCheckPool(t *testing.T) {
	full := map[domain.Difficulty]int64{
		domain.DifficultyEasy:   1,
		domain.DifficultyMedium: 3,
		domain.DifficultyHard:   3,
		domain.DifficultyExpert: 3,
	}
	assert.NoError(t, CheckPool(full))

	full[domain.DifficultyExpert] = 2
	assert.ErrorIs(t, CheckPool(full), ErrNotEnoughQuestions)
	assert.ErrorIs(t, CheckPool(nil), ErrNotEnoughQuestions)
}
