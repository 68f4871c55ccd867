// Package score provides sparse per-package score maps and the elementwise
// combinators shared by all ranking paths: max, multiply, projection, and
// low-value pruning.
package score

import "sort"

// Map is a sparse score map from document id to a value in (0, 1].
// A missing key means zero.
type Map map[string]float64

// Max combines maps elementwise, keeping the highest value per key.
func Max(maps ...Map) Map {
	result := make(Map)
	for _, m := range maps {
		for id, v := range m {
			if v > result[id] {
				result[id] = v
			}
		}
	}
	return result
}

// Multiply combines maps elementwise by product. Only keys present in every
// input survive; any map dropping a key drops it from the result.
func Multiply(maps ...Map) Map {
	if len(maps) == 0 {
		return make(Map)
	}
	result := make(Map, len(maps[0]))
	for id, v := range maps[0] {
		result[id] = v
	}
	for _, m := range maps[1:] {
		for id := range result {
			v, ok := m[id]
			if !ok {
				delete(result, id)
				continue
			}
			result[id] *= v
		}
	}
	return result
}

// Project keeps only the entries whose key is present in ids.
func (m Map) Project(ids map[string]struct{}) Map {
	result := make(Map, len(m))
	for id, v := range m {
		if _, ok := ids[id]; ok {
			result[id] = v
		}
	}
	return result
}

// Scale multiplies every value by factor.
func (m Map) Scale(factor float64) Map {
	result := make(Map, len(m))
	for id, v := range m {
		result[id] = v * factor
	}
	return result
}

// RemoveLowValues drops entries below max(fraction * highest value, minValue).
func (m Map) RemoveLowValues(fraction, minValue float64) Map {
	threshold := m.MaxValue() * fraction
	if threshold < minValue {
		threshold = minValue
	}
	result := make(Map, len(m))
	for id, v := range m {
		if v >= threshold {
			result[id] = v
		}
	}
	return result
}

// MaxValue returns the highest value in the map, or 0 when empty.
func (m Map) MaxValue() float64 {
	var max float64
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

// Keys returns the key set of the map.
func (m Map) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(m))
	for id := range m {
		keys[id] = struct{}{}
	}
	return keys
}

// TopKeys returns up to n keys ordered by descending value. Equal values are
// ordered lexicographically for determinism.
func (m Map) TopKeys(n int) []string {
	keys := make([]string, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
