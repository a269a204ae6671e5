// Package engine runs purchase simulations: it owns a State and a private
// copy of the catalog, asks a strategy what to buy, jumps simulated time
// forward to the moment the purchase is affordable and applies it, until
// the strategy gives up or the time budget runs out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/logging"
	"github.com/talgya/idle-sim/internal/strategy"
)

// StopReason records why a run ended.
type StopReason string

const (
	StopStrategyDone StopReason = "strategy-done" // Strategy returned None
	StopHorizon      StopReason = "horizon"       // Next purchase lands after the duration
)

type phase uint8

const (
	running phase = iota
	stopped
)

// ErrInvalidDuration is returned for negative, infinite or NaN durations.
var ErrInvalidDuration = errors.New("invalid duration")

// InvalidCostError reports an item whose cost is not a positive finite
// number; buying it would never terminate a purchase batch.
type InvalidCostError struct {
	Item string
	Cost float64
}

func (e *InvalidCostError) Error() string {
	return fmt.Sprintf("item %q has invalid cost %g", e.Item, e.Cost)
}

// InvalidRateError reports an item whose rate delta is negative or not
// finite; buying it would drive the rate, and then the resource, negative.
type InvalidRateError struct {
	Item  string
	Delta float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("item %q has invalid rate delta %g", e.Item, e.Delta)
}

func validCost(c float64) bool {
	return c > 0 && !math.IsInf(c, 0)
}

func validDelta(d float64) bool {
	return d >= 0 && !math.IsInf(d, 0)
}

// ContractError reports a strategy choosing an item it cannot afford within
// the remaining time. Only returned in strict mode.
type ContractError struct {
	Item      string
	Cost      float64
	Reachable float64 // resource + rate*timeLeft at decision time
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("strategy chose %q costing %g but at most %g is reachable", e.Item, e.Cost, e.Reachable)
}

// Options tunes an Engine.
type Options struct {
	// Strict turns strategy contract violations into ContractError instead
	// of ending the run at the horizon.
	Strict bool

	// Logger receives run and purchase logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	State  *State
	Reason StopReason
}

// Engine drives simulation runs. An Engine holds no per-run state and may
// be used for several runs, including concurrently.
type Engine struct {
	strict bool
	log    *slog.Logger
}

// New creates an engine with the given options.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{strict: opts.Strict, log: log}
}

// With returns an engine whose logs carry the given attributes.
func (e *Engine) With(args ...any) *Engine {
	return &Engine{strict: e.strict, log: e.log.With(args...)}
}

// Simulate runs strat against a copy of cat for duration units of simulated
// time with default options and returns the final state.
func Simulate(cat catalog.Catalog, duration float64, strat strategy.Func) (*State, error) {
	res, err := New(Options{}).Run(cat, duration, strat)
	if err != nil {
		return nil, err
	}
	return res.State, nil
}

// Run executes one simulation. The caller's catalog is never modified.
func (e *Engine) Run(cat catalog.Catalog, duration float64, strat strategy.Func) (Result, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidDuration, duration)
	}

	build := cat.Clone()
	st := NewState()
	res := Result{State: st}

	e.log.Debug("run started", "duration", duration, "items", len(build.Items()))

	for ph := running; ph == running; {
		remaining := duration - st.Time()
		item, err := strat(st.Resource(), st.Rate(), remaining, build)
		if err != nil {
			return res, fmt.Errorf("strategy at time %g: %w", st.Time(), err)
		}
		e.log.Log(context.Background(), logging.LevelTrace, "strategy decision",
			"time", st.Time(), "resource", st.Resource(), "rate", st.Rate(), "item", item)
		if item == strategy.None {
			res.Reason = StopStrategyDone
			ph = stopped
			continue
		}

		cost, err := build.Cost(item)
		if err != nil {
			return res, fmt.Errorf("cost of %q: %w", item, err)
		}
		if !validCost(cost) {
			return res, &InvalidCostError{Item: item, Cost: cost}
		}

		if !strategy.Affordable(cost, st.Resource(), st.Rate(), remaining) {
			reachable := st.Resource() + st.Rate()*remaining
			if e.strict {
				return res, &ContractError{Item: item, Cost: cost, Reachable: reachable}
			}
			e.log.Warn("strategy chose unaffordable item",
				"item", item, "cost", cost, "reachable", reachable, "time", st.Time())
		}

		wait := st.TimeUntil(cost)
		if st.Time()+wait > duration {
			res.Reason = StopHorizon
			ph = stopped
			continue
		}
		st.Wait(wait)

		bought, err := e.buyBatch(st, build, item, cost)
		if err != nil {
			return res, err
		}
		e.log.Debug("purchase batch",
			"time", st.Time(), "item", item, "count", bought, "rate", st.Rate())
	}

	e.log.Info("run finished",
		"reason", res.Reason,
		"time", st.Time(),
		"rate", st.Rate(),
		"total_produced", st.TotalProduced(),
		"purchases", st.Purchases(),
	)
	return res, nil
}

// buyBatch buys item repeatedly at the current instant, re-pricing after
// every purchase, until the state can no longer afford it.
func (e *Engine) buyBatch(st *State, build catalog.Catalog, item string, cost float64) (int, error) {
	bought := 0
	for {
		delta, err := build.RateDelta(item)
		if err != nil {
			return bought, fmt.Errorf("rate delta of %q: %w", item, err)
		}
		if !validDelta(delta) {
			return bought, &InvalidRateError{Item: item, Delta: delta}
		}
		if _, ok := st.BuyItem(item, cost, delta); !ok {
			return bought, nil
		}
		bought++
		if err := build.Update(item); err != nil {
			return bought, fmt.Errorf("update %q: %w", item, err)
		}
		if cost, err = build.Cost(item); err != nil {
			return bought, fmt.Errorf("cost of %q: %w", item, err)
		}
		if !validCost(cost) {
			return bought, &InvalidCostError{Item: item, Cost: cost}
		}
	}
}
