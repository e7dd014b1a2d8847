package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"trivia_backend/internal/domain"
)

var ErrNotEnoughQuestions = errors.New("not enough active questions")

// MixPart is one difficulty bucket of a game's question set.
type MixPart struct {
	Difficulties []domain.Difficulty
	Count        int
}

// QuestionMix: 4 easy/medium, 3 hard, 3 expert.
var QuestionMix = []MixPart{
	{Difficulties: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium}, Count: 4},
	{Difficulties: []domain.Difficulty{domain.DifficultyHard}, Count: 3},
	{Difficulties: []domain.Difficulty{domain.DifficultyExpert}, Count: 3},
}

// CheckPool reports whether active question counts per difficulty can fill a game.
func CheckPool(counts map[domain.Difficulty]int64) error {
	for _, part := range QuestionMix {
		var have int64
		for _, d := range part.Difficulties {
			have += counts[d]
		}
		if have < int64(part.Count) {
			return fmt.Errorf("%w: need %d %v, have %d", ErrNotEnoughQuestions, part.Count, part.Difficulties, have)
		}
	}
	return nil
}

// BuildQuestions checks every bucket is full and returns the shuffled game questions.
// buckets must be ordered like QuestionMix.
func BuildQuestions(buckets [][]domain.Question) ([]domain.GameQuestion, error) {
	if len(buckets) != len(QuestionMix) {
		return nil, fmt.Errorf("%w: expected %d buckets", ErrNotEnoughQuestions, len(QuestionMix))
	}

	out := make([]domain.GameQuestion, 0, MaxQuestions)
	seen := make(map[string]struct{}, MaxQuestions)
	for i, part := range QuestionMix {
		if len(buckets[i]) < part.Count {
			return nil, fmt.Errorf("%w: need %d %v, have %d", ErrNotEnoughQuestions, part.Count, part.Difficulties, len(buckets[i]))
		}
		for _, q := range buckets[i][:part.Count] {
			if _, dup := seen[q.QuestionID]; dup {
				return nil, fmt.Errorf("%w: duplicate question %s", ErrNotEnoughQuestions, q.QuestionID)
			}
			seen[q.QuestionID] = struct{}{}
			out = append(out, domain.GameQuestion{
				QuestionID:   q.QuestionID,
				Text:         q.Text,
				Options:      append([]string(nil), q.Options...),
				CorrectIndex: q.CorrectIndex,
				Difficulty:   q.Difficulty,
			})
		}
	}

	if err := shuffle(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fisher-Yates using crypto/rand
func shuffle(qs []domain.GameQuestion) error {
	for i := len(qs) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := int(n.Int64())
		qs[i], qs[j] = qs[j], qs[i]
	}
	return nil
}
