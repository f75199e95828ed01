package view

import "github.com/shopspring/decimal"

// Trend directions.
const (
	DirectionUp      = "up"
	DirectionDown    = "down"
	DirectionNeutral = "neutral"
)

var Hundred decimal.Decimal = decimal.NewFromInt(100)

// TrendView compares the two newest prices of an asset.
type TrendView struct {
	Direction string `json:"direction"`
	// PercentageChange is nil when there is no previous price.
	PercentageChange *decimal.Decimal `json:"percentageChange"`
}

// ComputeTrend returns the trend from previous to latest.
//
// A zero previous price counts as a 100% move in the direction of latest.
// Percentages are rounded half to even at 2 decimal places.
func ComputeTrend(latest decimal.Decimal, previous *decimal.Decimal) TrendView {
	if previous == nil {
		return TrendView{Direction: DirectionNeutral}
	}

	var change decimal.Decimal
	direction := DirectionNeutral

	if previous.IsZero() {
		switch latest.Sign() {
		case 1:
			direction = DirectionUp
			change = Hundred
		case -1:
			direction = DirectionDown
			change = Hundred.Neg()
		default:
			change = decimal.Zero
		}
	} else {
		change = latest.Sub(*previous).Div(*previous).Mul(Hundred)

		if latest.GreaterThan(*previous) {
			direction = DirectionUp
		} else if latest.LessThan(*previous) {
			direction = DirectionDown
		}
	}

	rounded := change.RoundBank(2)

	return TrendView{Direction: direction, PercentageChange: &rounded}
}
