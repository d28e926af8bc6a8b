package runner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPoissonArrivalReserveUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }}
	ctrl.SetRate(200)

	now := time.Now()
	first := ctrl.reserve(now)
	second := ctrl.reserve(now)
	third := ctrl.reserve(now)

	if !first.Equal(now) {
		t.Fatalf("expected first slot at now, got %s later", first.Sub(now))
	}
	step := time.Second / 200
	if second.Sub(first) != step || third.Sub(second) != step {
		t.Fatalf("expected slots %s apart, got %s and %s", step, second.Sub(first), third.Sub(second))
	}
}

func TestPoissonArrivalIdleTimelineCatchesUp(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }}
	ctrl.SetRate(10)

	past := time.Now().Add(-time.Minute)
	ctrl.reserve(past)

	now := time.Now()
	if slot := ctrl.reserve(now); slot.Before(now) {
		t.Fatalf("slot %s is in the past", now.Sub(slot))
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }}
	ctrl.SetRate(0.000001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestNewPacer(t *testing.T) {
	base := Options{LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) }}

	if p := newPacer(base); p != nil {
		t.Fatalf("expected nil pacer without a rate, got %T", p)
	}

	uniform := base
	uniform.RatePerSecond = 50
	if _, ok := newPacer(uniform).(*uniformArrival); !ok {
		t.Fatalf("expected uniform pacer")
	}

	poisson := uniform
	poisson.ArrivalModel = ArrivalModelPoisson
	poisson.RandomSeed = 7
	if _, ok := newPacer(poisson).(*poissonArrival); !ok {
		t.Fatalf("expected poisson pacer")
	}
}
