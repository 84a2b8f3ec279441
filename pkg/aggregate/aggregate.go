// Copyright 2025 Certen Protocol
//
// C5 aggregate engine: pure functions over an ordered U256 value vector,
// infallible given non-empty, correctly-typed input (spec.md section 4.5).
// Values are holiman/uint256 rather than float64, with math/big for
// intermediate results, so sums are overflow-checked and averages use
// exact integer arithmetic with banker's rounding.

package aggregate

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

// Apply dispatches Computation.AggregateFn over values, in the order
// supplied by the datalake compiler (spec.md section 4.4's
// "values is ordered by ascending block / tx index").
func Apply(c task.Computation, values []*uint256.Int) (*uint256.Int, error) {
	if len(values) == 0 {
		return nil, hdperrors.New(hdperrors.EmptyAggregate, "aggregate over empty value set")
	}

	switch c.AggregateFn {
	case task.AggAvg:
		return avg(values)
	case task.AggSum:
		return sum(values)
	case task.AggMin:
		return min(values), nil
	case task.AggMax:
		return max(values), nil
	case task.AggCount:
		return count(values, c.Operator, c.ValueToCompare), nil
	case task.AggStdDev:
		return stdDev(values)
	case task.AggSlr:
		return slr(values, c.ValueToCompare)
	case task.AggBloomFilter:
		return uint256.NewInt(0), nil
	default:
		return nil, task.UnknownAggregateFn(c.AggregateFn)
	}
}

// sum computes Σxᵢ with checked overflow (spec.md: "Sum ... checked
// overflow → fails Overflow").
func sum(values []*uint256.Int) (*uint256.Int, error) {
	total := uint256.NewInt(0)
	for _, v := range values {
		var overflowed bool
		total, overflowed = new(uint256.Int).AddOverflow(total, v)
		if overflowed {
			return nil, hdperrors.New(hdperrors.Overflow, "sum overflowed u256")
		}
	}
	return total, nil
}

// avg computes ⌊Σxᵢ / n⌉ with banker's rounding (round-half-to-even) on an
// exact half, using big.Int for the division remainder comparison since
// uint256 has no native rounded-division helper.
func avg(values []*uint256.Int) (*uint256.Int, error) {
	total, err := sum(values)
	if err != nil {
		return nil, err
	}
	n := big.NewInt(int64(len(values)))
	totalBig := total.ToBig()

	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.QuoRem(totalBig, n, remainder)

	twiceRemainder := new(big.Int).Lsh(remainder, 1)
	switch twiceRemainder.Cmp(n) {
	case 1:
		// remainder > n/2: round up.
		quotient.Add(quotient, big.NewInt(1))
	case 0:
		// exact half: round to even.
		if quotient.Bit(0) == 1 {
			quotient.Add(quotient, big.NewInt(1))
		}
	}

	result, overflow := uint256.FromBig(quotient)
	if overflow {
		return nil, hdperrors.New(hdperrors.Overflow, "average overflowed u256")
	}
	return result, nil
}

func min(values []*uint256.Int) *uint256.Int {
	m := values[0]
	for _, v := range values[1:] {
		if v.Lt(m) {
			m = v
		}
	}
	return new(uint256.Int).Set(m)
}

func max(values []*uint256.Int) *uint256.Int {
	m := values[0]
	for _, v := range values[1:] {
		if v.Gt(m) {
			m = v
		}
	}
	return new(uint256.Int).Set(m)
}

// count returns #{i : xᵢ op value} (spec.md section 4.5).
func count(values []*uint256.Int, op task.Operator, value uint32) *uint256.Int {
	target := uint256.NewInt(uint64(value))
	var n uint64
	for _, v := range values {
		var matches bool
		switch op {
		case task.OpEq:
			matches = v.Eq(target)
		case task.OpNe:
			matches = !v.Eq(target)
		case task.OpGt:
			matches = v.Gt(target)
		case task.OpGte:
			matches = v.Gt(target) || v.Eq(target)
		case task.OpLt:
			matches = v.Lt(target)
		case task.OpLte:
			matches = v.Lt(target) || v.Eq(target)
		case task.OpNone:
			matches = true
		}
		if matches {
			n++
		}
	}
	return uint256.NewInt(n)
}

// stdDev computes √(Σ(xᵢ-μ)² / n) rounded to the nearest integer, using
// big.Int throughout (the intermediate sum of squares routinely exceeds
// U256 headroom for large populations, and big.Int's Sqrt is exact
// integer-square-root, matching the "rounded to nearest integer"
// requirement when paired with a remainder comparison).
func stdDev(values []*uint256.Int) (*uint256.Int, error) {
	n := int64(len(values))
	mean, err := avg(values)
	if err != nil {
		return nil, err
	}
	meanBig := mean.ToBig()

	sumSquares := new(big.Int)
	for _, v := range values {
		diff := new(big.Int).Sub(v.ToBig(), meanBig)
		diff.Abs(diff)
		sq := new(big.Int).Mul(diff, diff)
		sumSquares.Add(sumSquares, sq)
	}
	variance := new(big.Int).Quo(sumSquares, big.NewInt(n))

	root := new(big.Int).Sqrt(variance)
	// Round to nearest: compare (root+1)^2 against variance.
	next := new(big.Int).Add(root, big.NewInt(1))
	nextSq := new(big.Int).Mul(next, next)
	diffUp := new(big.Int).Sub(nextSq, variance)
	rootSq := new(big.Int).Mul(root, root)
	diffDown := new(big.Int).Sub(variance, rootSq)
	if diffUp.Cmp(diffDown) < 0 {
		root = next
	}

	result, overflow := uint256.FromBig(root)
	if overflow {
		return nil, hdperrors.New(hdperrors.Overflow, "stddev overflowed u256")
	}
	return result, nil
}

// slr performs simple linear regression over (index, value) pairs and
// projects the fitted line at x = projectAt (spec.md: "context carries the
// x-value to project"). Computed in big.Rat-free integer arithmetic via
// scaled big.Int division, rounded to the nearest integer with halves
// rounded away from zero.
func slr(values []*uint256.Int, projectAt uint32) (*uint256.Int, error) {
	n := big.NewInt(int64(len(values)))

	sumX := big.NewInt(0)
	sumY := big.NewInt(0)
	sumXY := big.NewInt(0)
	sumXX := big.NewInt(0)

	for i, v := range values {
		x := big.NewInt(int64(i))
		y := v.ToBig()
		sumX.Add(sumX, x)
		sumY.Add(sumY, y)
		sumXY.Add(sumXY, new(big.Int).Mul(x, y))
		sumXX.Add(sumXX, new(big.Int).Mul(x, x))
	}

	// slope = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	numerator := new(big.Int).Sub(new(big.Int).Mul(n, sumXY), new(big.Int).Mul(sumX, sumY))
	denominator := new(big.Int).Sub(new(big.Int).Mul(n, sumXX), new(big.Int).Mul(sumX, sumX))
	if denominator.Sign() == 0 {
		return nil, hdperrors.New(hdperrors.EmptyAggregate, "slr: degenerate x range")
	}

	// intercept = (sumY - slope*sumX) / n, combined and evaluated at
	// projectAt in one rational division to avoid losing precision in an
	// intermediate slope rounding step:
	// y = (numerator*(projectAt*n - sumX) + denominator*sumY) / (n*denominator)
	x := big.NewInt(int64(projectAt))
	term1 := new(big.Int).Mul(numerator, new(big.Int).Sub(new(big.Int).Mul(x, n), sumX))
	term2 := new(big.Int).Mul(denominator, sumY)
	num := new(big.Int).Add(term1, term2)
	den := new(big.Int).Mul(n, denominator)

	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.QuoRem(num, den, remainder)
	remainder.Abs(remainder)
	denAbs := new(big.Int).Abs(den)
	if new(big.Int).Lsh(remainder, 1).Cmp(denAbs) >= 0 {
		if num.Sign()*den.Sign() >= 0 {
			quotient.Add(quotient, big.NewInt(1))
		} else {
			quotient.Sub(quotient, big.NewInt(1))
		}
	}

	if quotient.Sign() < 0 {
		return nil, hdperrors.New(hdperrors.Overflow, "slr projection is negative, not representable as u256")
	}
	result, overflow := uint256.FromBig(quotient)
	if overflow {
		return nil, hdperrors.New(hdperrors.Overflow, "slr projection overflowed u256")
	}
	return result, nil
}
