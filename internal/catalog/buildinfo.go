package catalog

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultGrowth is the cost multiplier applied after each purchase.
const DefaultGrowth = 1.15

// Item is one purchasable building.
type Item struct {
	Name string  `json:"name" yaml:"name"`
	Cost float64 `json:"cost" yaml:"cost"`
	Rate float64 `json:"rate" yaml:"rate"` // Production added per purchase
}

// BuildInfo is the standard Catalog: an ordered item list whose costs are
// multiplied by Growth on every purchase.
type BuildInfo struct {
	items  []Item
	index  map[string]int
	growth float64
}

// NewBuildInfo creates a catalog from items in the given order. A growth of
// zero selects DefaultGrowth. It does not validate; Parse, LoadFile,
// WithGrowth and Jitter do.
func NewBuildInfo(items []Item, growth float64) *BuildInfo {
	if growth == 0 {
		growth = DefaultGrowth
	}
	b := &BuildInfo{
		items:  make([]Item, len(items)),
		index:  make(map[string]int, len(items)),
		growth: growth,
	}
	copy(b.items, items)
	for i, it := range b.items {
		b.index[it.Name] = i
	}
	return b
}

// Default returns the classic ten-building catalog.
func Default() *BuildInfo {
	return NewBuildInfo([]Item{
		{Name: "Cursor", Cost: 15, Rate: 0.1},
		{Name: "Grandma", Cost: 100, Rate: 0.5},
		{Name: "Farm", Cost: 500, Rate: 4},
		{Name: "Factory", Cost: 3000, Rate: 10},
		{Name: "Mine", Cost: 10000, Rate: 40},
		{Name: "Shipment", Cost: 40000, Rate: 100},
		{Name: "Alchemy Lab", Cost: 200000, Rate: 400},
		{Name: "Portal", Cost: 1666666, Rate: 6666},
		{Name: "Time Machine", Cost: 123456789, Rate: 98765},
		{Name: "Antimatter Condenser", Cost: 3999999999, Rate: 999999},
	}, DefaultGrowth)
}

// Growth returns the per-purchase cost multiplier.
func (b *BuildInfo) Growth() float64 {
	return b.growth
}

// Snapshot returns the items with their current costs.
func (b *BuildInfo) Snapshot() []Item {
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}

// Items returns the item names in catalog order.
func (b *BuildInfo) Items() []string {
	names := make([]string, len(b.items))
	for i, it := range b.items {
		names[i] = it.Name
	}
	return names
}

func (b *BuildInfo) lookup(item string) (*Item, error) {
	i, ok := b.index[item]
	if !ok {
		return nil, &UnknownItemError{Item: item}
	}
	return &b.items[i], nil
}

// Cost returns the current cost of item.
func (b *BuildInfo) Cost(item string) (float64, error) {
	it, err := b.lookup(item)
	if err != nil {
		return 0, err
	}
	return it.Cost, nil
}

// RateDelta returns the production rate one purchase of item adds.
func (b *BuildInfo) RateDelta(item string) (float64, error) {
	it, err := b.lookup(item)
	if err != nil {
		return 0, err
	}
	return it.Rate, nil
}

// Update multiplies the cost of item by the growth factor.
func (b *BuildInfo) Update(item string) error {
	it, err := b.lookup(item)
	if err != nil {
		return err
	}
	it.Cost *= b.growth
	return nil
}

// Clone returns an independent copy of the catalog.
func (b *BuildInfo) Clone() Catalog {
	return NewBuildInfo(b.items, b.growth)
}

// Validate checks that every item can be bought and never lowers the rate.
// All numbers must be finite.
func (b *BuildInfo) Validate() error {
	if !(b.growth >= 1) || math.IsInf(b.growth, 0) {
		return fmt.Errorf("growth must be finite and at least 1, got %g", b.growth)
	}
	seen := make(map[string]bool, len(b.items))
	for _, it := range b.items {
		if it.Name == "" {
			return fmt.Errorf("item with empty name")
		}
		if seen[it.Name] {
			return fmt.Errorf("duplicate item %q", it.Name)
		}
		seen[it.Name] = true
		if !(it.Cost > 0) || math.IsInf(it.Cost, 0) {
			return fmt.Errorf("item %q: cost must be positive and finite, got %g", it.Name, it.Cost)
		}
		if !(it.Rate >= 0) || math.IsInf(it.Rate, 0) {
			return fmt.Errorf("item %q: rate must be non-negative and finite, got %g", it.Name, it.Rate)
		}
	}
	return nil
}

// file is the on-disk YAML layout of a catalog.
type file struct {
	Growth float64 `yaml:"growth"`
	Items  []Item  `yaml:"items"`
}

// LoadFile reads a YAML catalog and validates it.
func LoadFile(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and validates it.
func Parse(data []byte) (*BuildInfo, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	b := NewBuildInfo(f.Items, f.Growth)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return b, nil
}

// WithGrowth returns a validated copy of b using a different growth factor.
func (b *BuildInfo) WithGrowth(growth float64) (*BuildInfo, error) {
	out := NewBuildInfo(b.items, growth)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
