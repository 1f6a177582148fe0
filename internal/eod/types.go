package eod

// aggRow holds the statistics of one side for one day.
type aggRow struct {
	Side        string  // LONG, SHORT or TOTAL
	Entries     int     // positions opened
	Closes      int     // positions closed
	Wins        int     // closes with pnl >= 0
	Losses      int     // closes with pnl < 0
	RealizedPnL float64 // sum of close pnl
	Balance     float64 // balance after the side's last trade of the day
}
