package processor

import "clawdash/models"

// MarkPositions values each position at its coin's price and returns new
// records. Positions without a price, entry or size keep zero PnL.
func MarkPositions(positions []models.PositionRecord, prices map[string]float64) []models.PositionRecord {
	out := make([]models.PositionRecord, len(positions))
	for i, p := range positions {
		out[i] = p
		mark, ok := prices[p.Coin]
		if !ok || mark <= 0 || p.EntryPrice <= 0 || p.Size <= 0 {
			continue
		}
		var pnl float64
		switch p.Direction {
		case models.Long:
			pnl = (mark - p.EntryPrice) * p.Size
		case models.Short:
			pnl = (p.EntryPrice - mark) * p.Size
		default:
			continue
		}
		out[i].PnL = Round2(pnl)
		out[i].PnLPercent = Round2(pnl / (p.EntryPrice * p.Size) * 100)
	}
	return out
}

// Coins lists the distinct coins in ledger order.
func Coins(positions []models.PositionRecord) []string {
	seen := make(map[string]bool, len(positions))
	var coins []string
	for _, p := range positions {
		if !seen[p.Coin] {
			seen[p.Coin] = true
			coins = append(coins, p.Coin)
		}
	}
	return coins
}
