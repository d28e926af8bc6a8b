package runner

import "sync/atomic"

// Budget is the shared count of requests that may still be issued.
// Claims never drive it below zero and a claim is never handed out twice.
type Budget struct {
	remaining atomic.Int64
	claimed   atomic.Int64
}

func NewBudget(n int64) *Budget {
	b := &Budget{}
	if n > 0 {
		b.remaining.Store(n)
	}
	return b
}

// Claim takes one unit. It returns false once the budget is exhausted or drained.
func (b *Budget) Claim() bool {
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			b.claimed.Add(1)
			return true
		}
	}
}

// Drain zeroes the budget so no further claims succeed and returns how many
// units were still unclaimed.
func (b *Budget) Drain() int64 {
	return b.remaining.Swap(0)
}

func (b *Budget) Remaining() int64 {
	return b.remaining.Load()
}

// Claimed reports how many units have been handed out.
func (b *Budget) Claimed() int64 {
	return b.claimed.Load()
}
