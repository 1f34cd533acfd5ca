package model

import (
	"errors"
	"fmt"
	"math"
)

// MinorPerMajor is the fixed number of minor units in one major unit (e8s).
const MinorPerMajor = 100_000_000

// Amount is a monetary value in minor units.
type Amount uint64

// AmountFromMajor converts a major-unit value to minor units, rounding to the nearest unit.
func AmountFromMajor(v float64) (Amount, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("amount is not a finite number")
	}
	if v < 0 {
		return 0, errors.New("amount must not be negative")
	}
	minor := math.Round(v * MinorPerMajor)
	if minor >= math.MaxUint64 {
		return 0, errors.New("amount overflows")
	}
	return Amount(minor), nil
}

// Major returns the amount in major units.
func (a Amount) Major() float64 { return float64(a) / MinorPerMajor }

// IsFree reports whether no payment is required.
func (a Amount) IsFree() bool { return a == 0 }

// String formats the amount with eight decimals, the ledger's display precision.
func (a Amount) String() string {
	return fmt.Sprintf("%d.%08d", uint64(a)/MinorPerMajor, uint64(a)%MinorPerMajor)
}
