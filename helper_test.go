package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMakerFillAmount(t *testing.T) {
	amount, err := ComputeMakerFillAmount(333, 1000, 700)
	require.NoError(t, err)
	assert.Equal(t, uint64(475), amount)

	amount, err = ComputeMakerFillAmount(250, 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amount)

	// rounds down
	amount, err = ComputeMakerFillAmount(1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), amount)

	// the intermediate product exceeds 64 bits
	amount, err = ComputeMakerFillAmount(math.MaxUint64, math.MaxUint64-1, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), amount)

	_, err = ComputeMakerFillAmount(2, math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = ComputeMakerFillAmount(1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestComputeTakerFillAmount(t *testing.T) {
	// floor(475*700/1000) + 1
	amount, err := ComputeTakerFillAmount(475, 1000, 700)
	require.NoError(t, err)
	assert.Equal(t, uint64(333), amount)

	amount, err = ComputeTakerFillAmount(500, 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(251), amount)

	_, err = ComputeTakerFillAmount(1, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = ComputeTakerFillAmount(math.MaxUint64, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestComputeTakerFillAmountCoversMaker(t *testing.T) {
	cases := []struct{ makerAmount, takerAmount uint64 }{
		{1000, 700}, {700, 1000}, {3, 7}, {1_000_000, 1}, {1, 1_000_000}, {999_983, 65_537},
	}

	for _, c := range cases {
		for _, want := range []uint64{1, 2, 17, c.makerAmount / 2, c.makerAmount} {
			if want == 0 {
				continue
			}
			taker, err := ComputeTakerFillAmount(want, c.makerAmount, c.takerAmount)
			require.NoError(t, err)

			got, err := ComputeMakerFillAmount(taker, c.makerAmount, c.takerAmount)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, want, "maker=%d taker=%d want=%d", c.makerAmount, c.takerAmount, want)
		}
	}
}
