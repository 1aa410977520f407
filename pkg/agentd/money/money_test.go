package money_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCost(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected string
	}{
		{"1", "1.000000000000000000"},
		{"0.1", "0.100000000000000000"},
		{".5", "0.500000000000000000"},
		{"0.1234567890123456789999", "0.123456789012345678"},
		{"12.9999999999999999999", "12.999999999999999999"},
		{"-0.0000000000000000019", "0.000000000000000001"},
		{"1.14e-05", "0.000011400000000000"},
		{"1E-5", "0.000010000000000000"},
		{"2.5e+3", "2500.000000000000000000"},
		{"1e-19", "0.000000000000000000"},
		{"-1.23456789e-10", "0.000000000123456789"},
	} {
		t.Run(tc.input, func(t *testing.T) {
			d, err := money.FormatCost(tc.input)
			require.NoError(t, err)
			if tc.input[0] == '-' {
				assert.Equal(t, "-"+tc.expected, d.String())
			} else {
				assert.Equal(t, tc.expected, d.String())
			}
		})
	}

	_, err := money.FormatCost("")
	assert.Error(t, err)
	_, err = money.FormatCost("abc")
	assert.Error(t, err)

	for _, input := range []string{"e5", "1e", "1e5e5", "1e99999", "0x1p-3"} {
		_, err = money.FormatCost(input)
		assert.Error(t, err, input)
	}
}

func TestMinimumBalance(t *testing.T) {
	community := math.LegacyMustNewDecFromStr("0.0001")
	operator := math.LegacyMustNewDecFromStr("0.0004")
	buffer := math.LegacyMustNewDecFromStr("0.1")

	// floor18((0.0001 + 0.0004) * 3600 * 4) + 0.1 = 7.2 + 0.1
	expected := math.LegacyMustNewDecFromStr("7.3")

	actual := money.MinimumBalance(community, operator, 4*time.Hour, buffer)
	assert.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

func TestSplitPrice(t *testing.T) {
	community, operator := money.SplitPrice(math.LegacyMustNewDecFromStr("0.0005"))
	assert.Equal(t, "0.000100000000000000", community.String())
	assert.Equal(t, "0.000400000000000000", operator.String())

	// shares are truncated, never rounded up
	community, operator = money.SplitPrice(math.LegacyNewDecWithPrec(1, 18))
	assert.True(t, community.IsZero())
	assert.True(t, operator.IsZero())
}

func TestShortfall(t *testing.T) {
	required := math.LegacyMustNewDecFromStr("7.3")
	assert.Equal(t, "2.300000000000000000", money.Shortfall(math.LegacyNewDec(5), required).String())
	assert.True(t, money.Shortfall(math.LegacyNewDec(8), required).IsZero())
}
