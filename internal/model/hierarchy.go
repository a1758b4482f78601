// Package model defines the core planning data types shared across the engine.
package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Level names one level of the product/commercial hierarchy.
type Level string

// Recognized hierarchy levels, coarsest to finest.
const (
	LevelDirector         Level = "director"
	LevelState            Level = "state"
	LevelProductType      Level = "productType"
	LevelFamily           Level = "family"
	LevelProductionFamily Level = "productionFamily"
	LevelBrand            Level = "brand"
	LevelProductCode      Level = "productCode"
	LevelProductName      Level = "productName"
)

// HierarchyLevels is the canonical ordering used for key encoding and rollup.
var HierarchyLevels = []Level{
	LevelDirector,
	LevelState,
	LevelProductType,
	LevelFamily,
	LevelProductionFamily,
	LevelBrand,
	LevelProductCode,
	LevelProductName,
}

var levelRank = func() map[Level]int {
	m := make(map[Level]int, len(HierarchyLevels))
	for i, l := range HierarchyLevels {
		m[l] = i
	}
	return m
}()

// ParseLevel validates a hierarchy level name. The set is closed: unrecognized
// names are rejected at the boundary instead of being passed through untyped.
func ParseLevel(name string) (Level, error) {
	l := Level(name)
	if _, ok := levelRank[l]; !ok {
		return "", eris.Errorf("model: unknown hierarchy level %q", name)
	}
	return l, nil
}

// Rank returns the position of l in the canonical hierarchy, or -1.
func (l Level) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return -1
}

// SortLevels orders levels by their canonical hierarchy position, in place.
func SortLevels(levels []Level) {
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Rank() < levels[j].Rank()
	})
}

// DimensionKey canonically identifies one combination of hierarchy-level
// values. Encoding is "level=value|level=value" ordered by the canonical
// hierarchy, so two equal value sets always produce the same key regardless
// of the order the levels were supplied in.
type DimensionKey string

// KeyFor builds the DimensionKey for the given levels using values from dims.
// Levels absent from dims contribute an empty value so the key stays stable.
func KeyFor(dims map[Level]string, levels []Level) DimensionKey {
	ordered := make([]Level, len(levels))
	copy(ordered, levels)
	SortLevels(ordered)

	parts := make([]string, 0, len(ordered))
	for _, l := range ordered {
		parts = append(parts, string(l)+"="+dims[l])
	}
	return DimensionKey(strings.Join(parts, "|"))
}

// Values decodes the key back into its level/value pairs.
func (k DimensionKey) Values() map[Level]string {
	out := make(map[Level]string)
	if k == "" {
		return out
	}
	for _, part := range strings.Split(string(k), "|") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[Level(name)] = value
	}
	return out
}

// Value returns the value stored for a single level, if present.
func (k DimensionKey) Value(level Level) (string, bool) {
	v, ok := k.Values()[level]
	return v, ok
}
