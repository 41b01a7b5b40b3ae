package utils_test

import (
	"testing"

	"github.com/jaytrivedi1/vedo_books_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	require.True(t, dec("2.68").Equal(utils.Round2(dec("2.675"))))
	require.True(t, dec("-2.68").Equal(utils.Round2(dec("-2.675"))))
	require.True(t, dec("1.00").Equal(utils.Round2(dec("0.995"))))
}

func TestToCents_FromCents(t *testing.T) {
	require.Equal(t, int64(112345), utils.ToCents(dec("1123.45")))
	require.Equal(t, int64(-250), utils.ToCents(dec("-2.50")))
	require.True(t, dec("1123.45").Equal(utils.FromCents(112345)))
}

// 5% + 7% component rates on a 1000.00 base yield theoretical shares of 50
// and 70; an overridden total of 118.00 must distribute as 49.17 and 68.83,
// the last share absorbing the rounding remainder.
func TestDistributeProportionally_OverriddenTaxTotal(t *testing.T) {
	shares := utils.DistributeProportionally(dec("118.00"), []decimal.Decimal{dec("50"), dec("70")})
	require.Len(t, shares, 2)
	require.True(t, dec("49.17").Equal(shares[0]), "got %s", shares[0])
	require.True(t, dec("68.83").Equal(shares[1]), "got %s", shares[1])
}

func TestDistributeProportionally_SumsExactly(t *testing.T) {
	weights := []decimal.Decimal{dec("33.33"), dec("33.33"), dec("33.34")}
	shares := utils.DistributeProportionally(dec("100.00"), weights)

	sum := decimal.Zero
	for _, share := range shares {
		sum = sum.Add(share)
	}
	require.True(t, dec("100.00").Equal(sum), "got %s", sum)
}

func TestDistributeProportionally_ZeroWeightGetsNothing(t *testing.T) {
	shares := utils.DistributeProportionally(dec("90.00"), []decimal.Decimal{dec("60"), decimal.Zero, dec("30")})
	require.True(t, dec("60.00").Equal(shares[0]))
	require.True(t, shares[1].IsZero())
	require.True(t, dec("30.00").Equal(shares[2]))
}

func TestDistributeProportionally_AllZeroWeights(t *testing.T) {
	shares := utils.DistributeProportionally(dec("50.00"), []decimal.Decimal{decimal.Zero, decimal.Zero})
	for _, share := range shares {
		require.True(t, share.IsZero())
	}
}
