package citation

import "sort"

// Order is the first-appearance ordering of the cited keys.
type Order struct {
	// Keys holds each cited key once, earliest first.
	Keys []string `json:"keys" yaml:"keys"`
	// First maps a key to the position of its earliest occurrence.
	First map[string]Position `json:"first" yaml:"first"`
	// Count maps a key to the number of times it was cited.
	Count map[string]int `json:"count" yaml:"count"`
}

// Resolve deduplicates occurrences by key and sorts the keys by the
// (Offset, Sub) position of their first occurrence. The result does not
// depend on the order of occs.
func Resolve(occs []Occurrence) *Order {
	order := &Order{
		Keys:  make([]string, 0),
		First: make(map[string]Position),
		Count: make(map[string]int),
	}

	for _, occ := range occs {
		order.Count[occ.Key]++
		if first, seen := order.First[occ.Key]; seen && !occ.Pos.Less(first) {
			continue
		}
		order.First[occ.Key] = occ.Pos
	}

	for key := range order.First {
		order.Keys = append(order.Keys, key)
	}
	sort.Slice(order.Keys, func(i, j int) bool {
		pi, pj := order.First[order.Keys[i]], order.First[order.Keys[j]]
		if pi != pj {
			return pi.Less(pj)
		}
		// Only reachable with hand-built occurrences sharing a position.
		return order.Keys[i] < order.Keys[j]
	})

	return order
}

// Len returns the number of unique cited keys.
func (o *Order) Len() int {
	return len(o.Keys)
}

// Repeated returns the keys cited more than once, in citation order.
func (o *Order) Repeated() []string {
	var keys []string
	for _, k := range o.Keys {
		if o.Count[k] > 1 {
			keys = append(keys, k)
		}
	}
	return keys
}
