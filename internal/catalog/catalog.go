// Package catalog provides the purchasable items of the simulation: their current
// cost, the production rate each one adds, and the rule that makes repeated
// purchases of the same item more expensive.
package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownItem is matched by every UnknownItemError via errors.Is.
var ErrUnknownItem = errors.New("unknown item")

// UnknownItemError reports a lookup of an item the catalog does not carry.
type UnknownItemError struct {
	Item string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item %q", e.Item)
}

// Is makes errors.Is(err, ErrUnknownItem) true.
func (e *UnknownItemError) Is(target error) bool {
	return target == ErrUnknownItem
}

// Catalog is the capability the engine and strategies use to inspect and
// advance the purchasable items. Implementations need not be safe for
// concurrent use; every run works on its own Clone.
type Catalog interface {
	// Items returns the item identifiers in a stable order.
	Items() []string
	// Cost returns the current cost of item.
	Cost(item string) (float64, error)
	// RateDelta returns the production rate added by one purchase of item.
	RateDelta(item string) (float64, error)
	// Update records a purchase of item so its next cost grows.
	Update(item string) error
	// Clone returns a deep copy sharing no mutable state with the receiver.
	Clone() Catalog
}
