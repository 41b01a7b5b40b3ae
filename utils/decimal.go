package utils

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to 2 decimal places. Every monetary
// amount that leaves a calculation goes through this.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts a rounded monetary amount to integer cents. Sums that
// must be exact are accumulated in cents to avoid floating drift.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// DistributeProportionally splits total across weights so the parts sum to
// exactly total: every part but the last is round2(weight/Σweights * total),
// the last takes the remainder. Zero-weight positions receive zero. Used by
// composite-tax distribution and by composite bill-payment funding splits.
func DistributeProportionally(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	if len(weights) == 0 {
		return shares
	}

	weightSum := decimal.Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}
	if weightSum.IsZero() {
		return shares
	}

	totalCents := ToCents(total)
	var distributedCents int64
	last := -1
	for i, w := range weights {
		shares[i] = decimal.Zero
		if !w.IsZero() {
			last = i
		}
	}
	for i, w := range weights {
		if w.IsZero() {
			continue
		}
		if i == last {
			// exact remainder absorbs all rounding drift
			shares[i] = FromCents(totalCents - distributedCents)
			continue
		}
		share := Round2(w.Div(weightSum).Mul(total))
		shares[i] = share
		distributedCents += ToCents(share)
	}
	return shares
}
