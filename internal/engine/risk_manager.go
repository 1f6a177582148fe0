package engine

import (
	"time"

	"futuresbot/internal/types"
)

// riskManager is the consecutive-loss breaker: after maxLoss losing closes
// in a row, trading pauses for pause.
type riskManager struct {
	maxLoss    int
	pause      time.Duration
	lossStreak int
	pauseUntil time.Time
}

func newRiskManager(maxLoss int, pause time.Duration) *riskManager {
	if maxLoss < 1 {
		maxLoss = 1
	}
	return &riskManager{maxLoss: maxLoss, pause: pause}
}

// recordClose updates the streak with a realised pnl.
//
// Returns:
//   - tripped: true if this close started a pause window
func (rm *riskManager) recordClose(pnl float64, now time.Time) (tripped bool) {
	if pnl < 0 {
		rm.lossStreak++
	} else {
		rm.lossStreak = 0
	}

	if rm.lossStreak >= rm.maxLoss && rm.pause > 0 {
		rm.pauseUntil = now.Add(rm.pause)
		return true
	}
	return false
}

// check reports whether trading is paused at now. When a pause window has
// elapsed it clears the window and the streak, and reports resumed once.
func (rm *riskManager) check(now time.Time) (paused, resumed bool) {
	if rm.pauseUntil.IsZero() {
		return false, false
	}
	if now.Before(rm.pauseUntil) {
		return true, false
	}
	rm.pauseUntil = time.Time{}
	rm.lossStreak = 0
	return false, true
}

func (rm *riskManager) state() types.RiskState {
	return types.RiskState{LossStreak: rm.lossStreak, PauseUntil: rm.pauseUntil}
}
