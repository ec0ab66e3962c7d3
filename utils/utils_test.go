package utils

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"0", 10, "0"},
		{"1500000000", 9, "1.5"},
		{"1000000000", 9, "1"},
		{"1", 10, "0.0000000001"},
		{"12345", 0, "12345"},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", 18,
			"115792089237316195423570985008687907853269984665640564039457.584007913129639935"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(uint256.MustFromDecimal(tt.amount), tt.decimals), tt.amount)
	}
	assert.Equal(t, "0", FormatAmount(nil, 10))
}

func TestShortenLog(t *testing.T) {
	assert.Equal(t, "abc", ShortenLog("abc"))
	assert.Equal(t, "0123...cdef", ShortenLog("0123456789abcdef"))
	assert.Equal(t, "01234567...89abcdef", ShortenLog("0123456789abcdef0123456789abcdef"))
}
