// Package measure reads the performance metrics a host form renders after
// each recalculation.
package measure

import (
	"encoding/json"
	"math"
	"sort"
)

// Snapshot keys
const (
	KeyEPS         = "eps"
	KeyNetRevenue  = "net_revenue"
	KeyProfit      = "profit"
	KeyCash        = "cash"
	KeyImageRating = "image_rating"
	KeyMarketShare = "market_share"
	KeyStockPrice  = "stock_price"
	KeyROA         = "roa"
)

// SecondaryKeys lists the non-objective readings in composite weighting order.
var SecondaryKeys = []string{
	KeyNetRevenue, KeyProfit, KeyCash, KeyImageRating, KeyMarketShare, KeyStockPrice, KeyROA,
}

// Snapshot is an immutable set of named metric readings. A reading is either
// present with a finite value or absent; absent is never reported as zero.
type Snapshot struct {
	values map[string]float64
}

// NewSnapshot copies values into a Snapshot, dropping non-finite readings.
func NewSnapshot(values map[string]float64) Snapshot {
	s := Snapshot{values: make(map[string]float64, len(values))}
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.values[k] = v
	}
	return s
}

// Get returns the reading for key and whether it is present.
func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Objective returns the EPS reading.
func (s Snapshot) Objective() (float64, bool) {
	return s.Get(KeyEPS)
}

// Len returns the number of present readings.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Keys returns the present keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the present readings.
func (s Snapshot) Map() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the present readings as an object.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes an object of readings.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var values map[string]float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewSnapshot(values)
	return nil
}
