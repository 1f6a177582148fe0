package engine

import "futuresbot/internal/types"

// positionManager holds the single open position, if any.
type positionManager struct {
	pos *types.Position
}

func newPositionManager() *positionManager {
	return &positionManager{}
}

// get returns the open position or nil.
func (pm *positionManager) get() *types.Position {
	return pm.pos
}

func (pm *positionManager) has() bool {
	return pm.pos != nil
}

// open stores p as the current position. Callers guard against an
// existing position first.
func (pm *positionManager) open(p types.Position) *types.Position {
	pm.pos = &p
	return pm.pos
}

func (pm *positionManager) close() {
	pm.pos = nil
}

// snapshot returns a detached copy of the open position.
func (pm *positionManager) snapshot() (types.Position, bool) {
	if pm.pos == nil {
		return types.Position{}, false
	}
	return *pm.pos, true
}
