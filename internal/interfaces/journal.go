package interfaces

import "futuresbot/internal/types"

type TradeJournal interface {
	Append(t types.Trade) error
}
