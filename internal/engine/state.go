package engine

import (
	"fmt"
	"math"
)

// HistoryEntry is one line of the purchase ledger. The first entry of every
// State has an empty Item and marks the starting point.
type HistoryEntry struct {
	Time          float64 `json:"time" db:"time"`
	Item          string  `json:"item" db:"item"`
	Cost          float64 `json:"cost" db:"cost"`
	TotalProduced float64 `json:"total_produced" db:"total_produced"`
}

// State is the resource ledger of a single run. It is mutated only through
// Wait and BuyItem and is not safe for concurrent use.
type State struct {
	resource      float64 // Spendable amount
	totalProduced float64 // Everything ever produced, spent or not
	rate          float64 // Production per unit time
	time          float64 // Elapsed simulated time
	history       []HistoryEntry
}

// NewState returns the starting state: nothing held, rate 1, time 0.
func NewState() *State {
	return &State{
		rate:    1,
		history: []HistoryEntry{{}},
	}
}

// Resource returns the amount currently held.
func (s *State) Resource() float64 { return s.resource }

// TotalProduced returns the cumulative amount produced.
func (s *State) TotalProduced() float64 { return s.totalProduced }

// Rate returns the current production rate.
func (s *State) Rate() float64 { return s.rate }

// Time returns the elapsed simulated time.
func (s *State) Time() float64 { return s.time }

// History returns a copy of the purchase ledger.
func (s *State) History() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Purchases returns the number of items bought so far.
func (s *State) Purchases() int {
	return len(s.history) - 1
}

func (s *State) String() string {
	return fmt.Sprintf("resource: %g, rate: %g, time: %g", s.resource, s.rate, s.time)
}

// TimeUntil returns the whole number of time units needed to hold target at
// the current rate. It is 0 when target is already held and at least 1
// otherwise.
func (s *State) TimeUntil(target float64) float64 {
	if s.resource >= target {
		return 0
	}
	return math.Max(1, math.Ceil((target-s.resource)/s.rate))
}

// Wait advances time by d and credits d*rate. Non-positive d does nothing.
func (s *State) Wait(d float64) {
	if d <= 0 {
		return
	}
	produced := d * s.rate
	s.time += d
	s.resource += produced
	s.totalProduced += produced
}

// BuyItem spends cost and adds rateDelta to the rate, recording the
// purchase at the current time. It reports false and changes nothing when
// cost exceeds the resource held.
func (s *State) BuyItem(item string, cost, rateDelta float64) (HistoryEntry, bool) {
	if cost > s.resource {
		return HistoryEntry{}, false
	}
	s.resource -= cost
	s.rate += rateDelta
	entry := HistoryEntry{
		Time:          s.time,
		Item:          item,
		Cost:          cost,
		TotalProduced: s.totalProduced,
	}
	s.history = append(s.history, entry)
	return entry, true
}
