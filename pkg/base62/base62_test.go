package base62

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want string
	}{
		{"zero", 0, "0"},
		{"one", 1, "1"},
		{"last digit", 9, "9"},
		{"first upper", 10, "A"},
		{"first lower", 36, "a"},
		{"last symbol", 61, "z"},
		{"two digits", 62, "10"},
		{"three digits", 62 * 62, "100"},
		{"max uint64", math.MaxUint64, "LygHa16AHYF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.n))
		})
	}
}

func TestEncode_AlphabetOnly(t *testing.T) {
	for n := uint64(0); n < 10_000; n += 37 {
		s := Encode(n)

		assert.NotEmpty(t, s)
		for _, c := range s {
			assert.Contains(t, alphabet, string(c))
		}
	}
}

func TestEncode_MinimalLength(t *testing.T) {
	// No leading padding: the representation of n > 0 never starts
	// with the zero symbol.
	for _, n := range []uint64{1, 61, 62, 3843, 3844, 1 << 32} {
		s := Encode(n)

		assert.False(t, strings.HasPrefix(s, "0"), "Encode(%d) = %q", n, s)
	}
}
