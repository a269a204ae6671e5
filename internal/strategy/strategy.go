// Package strategy defines the purchase decision protocol and the reference
// strategies.
//
// A strategy looks at the current resource, rate and remaining time and
// names the next item to buy, or None to end the run. Well-behaved
// strategies only name items whose cost fits in
// resource + rate*timeLeft; Fixed is the deliberate exception.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/idle-sim/internal/catalog"
)

// None is returned by a strategy that wants to buy nothing more.
const None = ""

// ErrUnknownStrategy is returned by Lookup for unrecognized names.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Func picks the next purchase. Errors come from catalog lookups.
type Func func(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error)

// NoneFunc never buys anything.
func NoneFunc(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error) {
	return None, nil
}

// Fixed always picks item, whether or not it can be afforded in time.
func Fixed(item string) Func {
	return func(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error) {
		return item, nil
	}
}

// Cheap picks the item with the lowest current cost.
func Cheap(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error) {
	return pickByCost(resource, rate, timeLeft, cat, func(c, best float64) bool { return c < best })
}

// Expensive picks the item with the highest current cost.
func Expensive(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error) {
	return pickByCost(resource, rate, timeLeft, cat, func(c, best float64) bool { return c > best })
}

// pickByCost scans the catalog in order and keeps the first item for which
// no later item is strictly better.
func pickByCost(resource, rate, timeLeft float64, cat catalog.Catalog, better func(c, best float64) bool) (string, error) {
	best := None
	var bestCost float64
	for _, item := range cat.Items() {
		c, err := cat.Cost(item)
		if err != nil {
			return None, err
		}
		if best == None || better(c, bestCost) {
			best, bestCost = item, c
		}
	}
	if best == None || !Affordable(bestCost, resource, rate, timeLeft) {
		return None, nil
	}
	return best, nil
}

// Best picks the item that adds the most rate per unit of cost. Items whose
// cost is not a positive finite number, or whose ratio is NaN, are skipped.
func Best(resource, rate, timeLeft float64, cat catalog.Catalog) (string, error) {
	best := None
	var bestCost, bestRatio float64
	for _, item := range cat.Items() {
		c, err := cat.Cost(item)
		if err != nil {
			return None, err
		}
		if !(c > 0) || math.IsInf(c, 0) {
			continue
		}
		d, err := cat.RateDelta(item)
		if err != nil {
			return None, err
		}
		ratio := d / c
		if math.IsNaN(ratio) {
			continue
		}
		if best == None || ratio > bestRatio {
			best, bestCost, bestRatio = item, c, ratio
		}
	}
	if best == None || !Affordable(bestCost, resource, rate, timeLeft) {
		return None, nil
	}
	return best, nil
}

// Affordable reports whether cost can be paid within timeLeft at rate.
func Affordable(cost, resource, rate, timeLeft float64) bool {
	return cost <= resource+rate*timeLeft
}

// builtins lists the named strategies in display order.
var builtins = []struct {
	name string
	fn   Func
}{
	{"none", NoneFunc},
	{"cursor", Fixed("Cursor")},
	{"cheap", Cheap},
	{"expensive", Expensive},
	{"best", Best},
}

// Names returns the built-in strategy names in a stable order.
func Names() []string {
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.name
	}
	return names
}

// Lookup resolves a strategy by name. Besides the built-ins it accepts
// "fixed:<item>" for a Fixed strategy on any item.
func Lookup(name string) (Func, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if item, ok := strings.CutPrefix(strings.TrimSpace(name), "fixed:"); ok {
		if item == "" {
			return nil, fmt.Errorf("%w: fixed strategy needs an item", ErrUnknownStrategy)
		}
		return Fixed(item), nil
	}
	for _, b := range builtins {
		if b.name == key {
			return b.fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (valid: %s, fixed:<item>)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
}
