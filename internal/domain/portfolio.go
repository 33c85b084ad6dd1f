package domain

// OpenExposure is one open position's contribution to portfolio exposure as
// seen by risk checks and signal sources.
type OpenExposure struct {
	MarketID   string
	Asset      string
	Side       Side
	EntryPrice float64
	Size       float64
	Notional   float64
}

// PortfolioState is a point-in-time snapshot of the trading portfolio. It is
// produced by the risk layer's single owner; readers never mutate it.
type PortfolioState struct {
	AvailableBalance float64
	TotalBalance     float64
	OpenPositions    []OpenExposure
	DailyPnL         float64
	TradesToday      int
	WinsToday        int
	LossesToday      int
	AssetExposure    map[string]float64 // notional deployed per underlying asset
}

// WinRateToday returns the fraction of today's settled trades that won. With
// no trades yet it returns the neutral prior 0.5.
func (p PortfolioState) WinRateToday() float64 {
	if p.TradesToday == 0 {
		return 0.5
	}
	return float64(p.WinsToday) / float64(p.TradesToday)
}

// TotalExposure is the summed notional across all open positions.
func (p PortfolioState) TotalExposure() float64 {
	var total float64
	for _, pos := range p.OpenPositions {
		total += pos.Notional
	}
	return total
}
