package aggregate

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
	"github.com/hdp-xyz/preprocessor/pkg/task"
)

func u(values ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		out[i] = uint256.NewInt(v)
	}
	return out
}

func TestApplyMin(t *testing.T) {
	got, err := Apply(task.Computation{AggregateFn: task.AggMin}, u(10001, 10002, 10003, 10004, 10005))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 10001 {
		t.Errorf("min: got %d, want 10001", got.Uint64())
	}
}

func TestApplyAvgBankersRounding(t *testing.T) {
	// (1+2)/2 = 1.5 -> rounds to even (2).
	got, err := Apply(task.Computation{AggregateFn: task.AggAvg}, u(1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 2 {
		t.Errorf("avg(1,2): got %d, want 2 (round to even)", got.Uint64())
	}

	// (1+2+3)/3 = 2 exactly, not a half case; sanity check a
	// plain average.
	got, err = Apply(task.Computation{AggregateFn: task.AggAvg}, u(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 2 {
		t.Errorf("avg(1,2,3): got %d, want 2", got.Uint64())
	}
}

func TestApplySumOverflow(t *testing.T) {
	maxU256 := new(uint256.Int).Not(uint256.NewInt(0))
	_, err := Apply(task.Computation{AggregateFn: task.AggSum}, []*uint256.Int{maxU256, uint256.NewInt(1)})
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.Overflow {
		t.Fatalf("expected Overflow, got %v", err)
	}
}

func TestApplyCount(t *testing.T) {
	got, err := Apply(task.Computation{AggregateFn: task.AggCount, Operator: task.OpGte, ValueToCompare: 3}, u(1, 2, 3, 4, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 3 {
		t.Errorf("count(>=3): got %d, want 3", got.Uint64())
	}
}

func TestApplyEmptyFails(t *testing.T) {
	_, err := Apply(task.Computation{AggregateFn: task.AggMin}, nil)
	if kind, ok := hdperrors.KindOf(err); !ok || kind != hdperrors.EmptyAggregate {
		t.Fatalf("expected EmptyAggregate, got %v", err)
	}
}

func TestApplyBloomFilterReservedZero(t *testing.T) {
	got, err := Apply(task.Computation{AggregateFn: task.AggBloomFilter}, u(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("bloom filter: got %d, want 0 (reserved)", got.Uint64())
	}
}

func TestApplyStdDev(t *testing.T) {
	// values {2,4,4,4,5,5,7,9}, population stddev = 2.
	got, err := Apply(task.Computation{AggregateFn: task.AggStdDev}, u(2, 4, 4, 4, 5, 5, 7, 9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 2 {
		t.Errorf("stddev: got %d, want 2", got.Uint64())
	}
}
