package service

import (
	"context"
	"errors"
)

type FinalizeResult struct {
	WeekID      string      `json:"weekId"`
	Draw        *DrawResult `json:"draw,omitempty"`
	DrawSkipped bool        `json:"drawSkipped"`
	Burn        *BurnResult `json:"burn,omitempty"`
}

// Partial reports a run that paid the draw but stopped before the burn finished.
func (r *FinalizeResult) Partial() bool {
	return r != nil && r.Draw != nil && r.Burn == nil
}

// DrawAndBurn runs the draw then the burn of weekID. A draw finished by an earlier run is
// not an error, so the pair can be retried until the burn goes through.
func DrawAndBurn(ctx context.Context, lottery *LotteryService, burns *BurnService, weekID string) (*FinalizeResult, error) {
	res := &FinalizeResult{WeekID: weekID}

	draw, err := lottery.Draw(ctx, weekID)
	switch {
	case errors.Is(err, ErrAlreadyDone):
		res.DrawSkipped = true
	case err != nil:
		return res, err
	default:
		res.Draw = draw
	}

	if res.Burn, err = burns.Burn(ctx, weekID); err != nil {
		return res, err
	}
	return res, nil
}
