package engine

import (
	"sync"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/strategy"
)

// Entry names a strategy taking part in a comparison.
type Entry struct {
	Name     string
	Strategy strategy.Func
}

// Outcome is one entry's result in a comparison.
type Outcome struct {
	Name   string
	Result Result
	Err    error
}

// Compare runs every entry against its own copy of cat, one goroutine per
// entry, and returns the outcomes in entry order.
func (e *Engine) Compare(cat catalog.Catalog, duration float64, entries []Entry) []Outcome {
	// Clone up front so no goroutine ever touches the caller's catalog.
	clones := make([]catalog.Catalog, len(entries))
	for i := range entries {
		clones[i] = cat.Clone()
	}

	out := make([]Outcome, len(entries))
	var wg sync.WaitGroup
	wg.Add(len(entries))
	for i, en := range entries {
		i, en := i, en
		go func() {
			defer wg.Done()
			res, err := e.With("strategy", en.Name).Run(clones[i], duration, en.Strategy)
			out[i] = Outcome{Name: en.Name, Result: res, Err: err}
		}()
	}
	wg.Wait()
	return out
}
