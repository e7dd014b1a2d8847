package game

import "errors"

const (
	MaxQuestions        = 10
	CashOutFromQuestion = 5
)

var ErrInvalidQuestionIndex = errors.New("question index out of range")

// Multipliers for each correctly answered question, in hundredths.
// Index 0 is question 1.
var betMultipliers = [MaxQuestions]int64{
	110,  // Q1
	120,  // Q2
	130,  // Q3
	150,  // Q4
	175,  // Q5
	200,  // Q6
	250,  // Q7
	350,  // Q8
	500,  // Q9
	1000, // Q10
}

// Multiplier returns the multiplier earned after answering question q (1..10).
func Multiplier(q int) (float64, error) {
	if q < 1 || q > MaxQuestions {
		return 0, ErrInvalidQuestionIndex
	}
	return float64(betMultipliers[q-1]) / 100, nil
}

// Payout returns floor(bet × multiplier[q]).
func Payout(bet int64, q int) (int64, error) {
	if q < 1 || q > MaxQuestions {
		return 0, ErrInvalidQuestionIndex
	}
	return bet * betMultipliers[q-1] / 100, nil
}

// MultiplierTable returns the multiplier table for display
func MultiplierTable() []map[string]any {
	table := make([]map[string]any, MaxQuestions)
	for i := 0; i < MaxQuestions; i++ {
		table[i] = map[string]any{
			"question":   i + 1,
			"multiplier": float64(betMultipliers[i]) / 100,
			"cashOut":    i+1 >= CashOutFromQuestion-1,
		}
	}
	return table
}

// LossDistribution is how a lost bet is split into the weekly pool.
type LossDistribution struct {
	Burn     int64 `json:"burn"`
	Lottery  int64 `json:"lottery"`
	Platform int64 `json:"platform"`
}

const (
	BurnSharePercent     = 60
	LotterySharePercent  = 35
	PlatformSharePercent = 5
)

// CalculateLossDistribution splits a loss 60/35/5, flooring each share.
// Negative input is treated as zero.
func CalculateLossDistribution(loss int64) LossDistribution {
	if loss <= 0 {
		return LossDistribution{}
	}
	return LossDistribution{
		Burn:     loss * BurnSharePercent / 100,
		Lottery:  loss * LotterySharePercent / 100,
		Platform: loss * PlatformSharePercent / 100,
	}
}
