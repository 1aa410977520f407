// Package money holds the fixed-point arithmetic used for token amounts.
//
// All amounts are math.LegacyDec values with 18 fractional digits. Results are
// always truncated toward zero so that the ledger never receives an amount
// with more precision than it accepts.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/math"
)

const Precision = math.LegacyPrecision

// maxExponent bounds the scientific notation accepted by FormatCost.
const maxExponent = 1000

// CommunityShare is the part of an instance price paid to the community receiver.
var CommunityShare = math.LegacyNewDecWithPrec(2, 1)

// FormatCost parses a decimal string of arbitrary precision, dropping every
// fractional digit beyond Precision. Scientific notation such as 1.14e-05 is accepted.
func FormatCost(s string) (math.LegacyDec, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return math.LegacyDec{}, fmt.Errorf("empty amount")
	}

	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exponent, err := strconv.Atoi(s[i+1:])
		if err != nil || exponent > maxExponent || exponent < -maxExponent {
			return math.LegacyDec{}, fmt.Errorf("parse amount: invalid exponent in '%s'", s)
		}
		s, err = shiftPoint(s[:i], exponent)
		if err != nil {
			return math.LegacyDec{}, fmt.Errorf("parse amount: %w", err)
		}
	}

	whole, fraction, found := strings.Cut(s, ".")
	if found && len(fraction) > Precision {
		fraction = fraction[:Precision]
	}
	if len(whole) == 0 || whole == "-" || whole == "+" {
		whole += "0"
	}
	if found && len(fraction) > 0 {
		s = whole + "." + fraction
	} else {
		s = whole
	}

	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("parse amount: %w", err)
	}
	return d, nil
}

// shiftPoint moves the decimal point of mantissa by exponent places.
func shiftPoint(mantissa string, exponent int) (string, error) {
	sign := ""
	if strings.HasPrefix(mantissa, "-") || strings.HasPrefix(mantissa, "+") {
		sign, mantissa = mantissa[:1], mantissa[1:]
	}

	whole, fraction, _ := strings.Cut(mantissa, ".")
	digits := whole + fraction
	if len(digits) == 0 {
		return "", fmt.Errorf("missing digits before exponent")
	}

	point := len(whole) + exponent
	if point <= 0 {
		digits = strings.Repeat("0", -point) + digits
		point = 0
	}
	if point >= len(digits) {
		return sign + digits + strings.Repeat("0", point-len(digits)), nil
	}
	return sign + digits[:point] + "." + digits[point:], nil
}

// SplitPrice divides a total rate into the community and operator shares.
func SplitPrice(total math.LegacyDec) (community, operator math.LegacyDec) {
	community = total.MulTruncate(CommunityShare)
	operator = total.MulTruncate(math.LegacyOneDec().Sub(CommunityShare))
	return community, operator
}

// MinimumBalance is the balance needed to keep both payment streams running
// for the given window, plus an absolute buffer.
func MinimumBalance(community, operator math.LegacyDec, window time.Duration, buffer math.LegacyDec) math.LegacyDec {
	seconds := int64(window / time.Second)
	total := community.Add(operator).MulInt64(seconds)
	return total.Add(buffer)
}

// Shortfall returns how much is missing from balance to reach required, or zero.
func Shortfall(balance, required math.LegacyDec) math.LegacyDec {
	if balance.GTE(required) {
		return math.LegacyZeroDec()
	}
	return required.Sub(balance)
}
