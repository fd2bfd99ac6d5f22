package chains

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAtomic(t *testing.T) {
	t.Run("whole amount", func(t *testing.T) {
		atomic, err := ToAtomic("1", 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1000000), atomic)
	})

	t.Run("fractional amount", func(t *testing.T) {
		atomic, err := ToAtomic("1.5", 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1500000), atomic)
	})

	t.Run("full precision", func(t *testing.T) {
		atomic, err := ToAtomic("0.000001", 6)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1), atomic)
	})

	t.Run("eighteen decimals", func(t *testing.T) {
		atomic, err := ToAtomic("2", 18)
		require.NoError(t, err)
		expected, _ := new(big.Int).SetString("2000000000000000000", 10)
		assert.Equal(t, expected, atomic)
	})

	t.Run("too many decimal places", func(t *testing.T) {
		_, err := ToAtomic("1.0000001", 6)
		assert.Error(t, err)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := ToAtomic("-1", 6)
		assert.Error(t, err)
	})

	t.Run("empty amount", func(t *testing.T) {
		_, err := ToAtomic("", 6)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ToAtomic("abc", 6)
		assert.Error(t, err)
	})
}

func TestFromAtomic(t *testing.T) {
	assert.Equal(t, "1", FromAtomic(big.NewInt(1000000), 6))
	assert.Equal(t, "1.5", FromAtomic(big.NewInt(1500000), 6))
	assert.Equal(t, "0.000001", FromAtomic(big.NewInt(1), 6))
	assert.Equal(t, "0", FromAtomic(nil, 6))
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []string{"1", "0.25", "1000", "123.456"} {
		atomic, err := ToAtomic(amount, 6)
		require.NoError(t, err)
		assert.Equal(t, amount, FromAtomic(atomic, 6))
	}
}
