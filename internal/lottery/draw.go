package lottery

import (
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	WinnerCount        = 31
	MaxAttemptsPerDraw = 1000
)

var (
	ErrNoTickets        = errors.New("no tickets to draw from")
	ErrDrawExhausted    = errors.New("could not draw a unique ticket")
	ErrInvalidDrawCount = errors.New("invalid draw count")
)

// Seed is keccak256(weekId || blockHash || unix millis).
func Seed(weekID string, blockHash []byte, now time.Time) [32]byte {
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(now.UnixMilli()))

	var seed [32]byte
	copy(seed[:], crypto.Keccak256([]byte(weekID), blockHash, ts))
	return seed
}

// DrawNumbers draws count distinct ticket numbers in [0, total).
// Position i, attempt a hashes to keccak256(seed || i || a) mod total.
func DrawNumbers(seed [32]byte, total int64, count int) ([]int64, error) {
	if total <= 0 {
		return nil, ErrNoTickets
	}
	if count < 0 || int64(count) > total {
		return nil, ErrInvalidDrawCount
	}

	mod := big.NewInt(total)
	used := make(map[int64]struct{}, count)
	out := make([]int64, 0, count)

	buf := make([]byte, 8)
	for i := 0; i < count; i++ {
		drawn := false
		for a := 0; a < MaxAttemptsPerDraw; a++ {
			binary.BigEndian.PutUint32(buf[:4], uint32(i))
			binary.BigEndian.PutUint32(buf[4:], uint32(a))

			h := new(big.Int).SetBytes(crypto.Keccak256(seed[:], buf))
			n := h.Mod(h, mod).Int64()
			if _, taken := used[n]; taken {
				continue
			}
			used[n] = struct{}{}
			out = append(out, n)
			drawn = true
			break
		}
		if !drawn {
			return nil, ErrDrawExhausted
		}
	}
	return out, nil
}

// Count is how many positions are drawn for a week with total tickets.
func Count(total int64) int {
	if total < WinnerCount {
		return int(total)
	}
	return WinnerCount
}
