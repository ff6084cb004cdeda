package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrModelOverloaded is the transient failure mode of the mock model. The
// HTTP layer maps it to 503 and clients treat it as retry-eligible.
var ErrModelOverloaded = errors.New("model overloaded")

const (
	minDelay = 1000 * time.Millisecond
	maxDelay = 2000 * time.Millisecond

	overloadProbability = 0.20
)

// Simulator stands in for the admission step of a real model call: a bounded
// random delay followed by a probabilistic overload rejection.
type Simulator struct {
	rand  func() float64
	sleep func(context.Context, time.Duration) error
}

type SimulatorOption func(*Simulator)

// WithRand overrides the randomness source (useful for tests).
func WithRand(fn func() float64) SimulatorOption {
	return func(s *Simulator) {
		if fn != nil {
			s.rand = fn
		}
	}
}

// WithSleep overrides how the simulated delay is performed (useful for tests).
func WithSleep(fn func(context.Context, time.Duration) error) SimulatorOption {
	return func(s *Simulator) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rand:  rand.Float64,
		sleep: sleepContext,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run waits a uniformly random duration in [minDelay, maxDelay), then fails
// with ErrModelOverloaded with probability overloadProbability. A cancelled
// context aborts the wait and returns the context error.
func (s *Simulator) Run(ctx context.Context) error {
	delay := minDelay + time.Duration(s.rand()*float64(maxDelay-minDelay))

	if err := s.sleep(ctx, delay); err != nil {
		return err
	}

	if s.rand() < overloadProbability {
		return ErrModelOverloaded
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
