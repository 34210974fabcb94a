// Package throttle paces calls against remote services and stops a run once
// a mutation fails or the creation ceiling is crossed.
package throttle

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// ErrLimitReached is returned by Do once the guard has tripped.
var ErrLimitReached = errors.New("throttle: limit reached")

// Cause records why the guard tripped.
type Cause string

const (
	CauseNone    Cause = ""
	CauseError   Cause = "error"
	CauseCeiling Cause = "ceiling"
)

// Options tune a Guard. Zero values fall back to the defaults below.
type Options struct {
	Threshold  int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxCreated int
}

const (
	DefaultThreshold  = 50
	DefaultMinDelay   = 100 * time.Millisecond
	DefaultMaxDelay   = 2500 * time.Millisecond
	DefaultMaxCreated = 250
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Guard wraps every mutating call of one run. It is not safe for concurrent
// use; a run issues its calls sequentially.
type Guard struct {
	opts   Options
	logger zerolog.Logger
	sleep  SleepFunc
	rnd    *rand.Rand

	calls int
	cause Cause
	err   error
}

// New creates a guard for a single run.
func New(opts Options, logger zerolog.Logger) *Guard {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultMinDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.MaxCreated <= 0 {
		opts.MaxCreated = DefaultMaxCreated
	}
	return &Guard{
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSleep replaces the sleep function, mainly for tests.
func (g *Guard) WithSleep(fn SleepFunc) *Guard {
	g.sleep = fn
	return g
}

// WithSource replaces the random source used to pick pause durations.
func (g *Guard) WithSource(src rand.Source) *Guard {
	g.rnd = rand.New(src)
	return g
}

// Do runs one mutating call. Any error from fn trips the guard for the rest
// of the run and is returned to the caller for logging; there is no retry.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.LimitReached() {
		return ErrLimitReached
	}
	g.calls++
	err := fn(ctx)
	if err != nil {
		g.trip(CauseError, err)
		g.logger.Error().Err(err).Str("op", op).Int("calls", g.calls).Msg("mutating call failed, halting further changes")
	}
	if g.calls%g.opts.Threshold == 0 {
		g.logger.Info().Int("calls", g.calls).Msg("request threshold reached")
		if perr := g.Pause(ctx); perr != nil {
			g.logger.Debug().Err(perr).Msg("throttle pause interrupted")
		}
	}
	return err
}

// Pause sleeps a random duration within the configured bounds. Paginated
// readers call it before following a next-page link.
func (g *Guard) Pause(ctx context.Context) error {
	d := g.delay()
	g.logger.Debug().Dur("delay", d).Msg("throttling")
	return g.sleep(ctx, d)
}

// CheckCeiling trips the guard once created exceeds the ceiling. Crossing
// the ceiling is a normal stop, not an error.
func (g *Guard) CheckCeiling(created int) bool {
	if created > g.opts.MaxCreated && !g.LimitReached() {
		g.trip(CauseCeiling, nil)
		g.logger.Info().Int("created", created).Int("max_created", g.opts.MaxCreated).Msg("creation ceiling reached")
	}
	return g.LimitReached()
}

// LimitReached reports whether the guard refuses further mutations.
func (g *Guard) LimitReached() bool {
	return g.cause != CauseNone
}

// Cause returns why the guard tripped, or CauseNone.
func (g *Guard) Cause() Cause {
	return g.cause
}

// Err returns the error that tripped the guard, if any.
func (g *Guard) Err() error {
	return g.err
}

// Calls returns the number of mutating calls issued.
func (g *Guard) Calls() int {
	return g.calls
}

func (g *Guard) trip(cause Cause, err error) {
	if g.cause != CauseNone {
		return
	}
	g.cause = cause
	g.err = err
}

func (g *Guard) delay() time.Duration {
	span := int64(g.opts.MaxDelay - g.opts.MinDelay)
	if span <= 0 {
		return g.opts.MinDelay
	}
	return g.opts.MinDelay + time.Duration(g.rnd.Int63n(span+1))
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
