package buffer

import (
	"fmt"
	"math"
)

// Stats tracks the moments and bounds of a stream of values without keeping them.
type Stats struct {
	n        int
	lo, hi   float64
	mean, m2 float64
}

// NewStats creates empty running statistics.
func NewStats() *Stats {
	return &Stats{lo: math.Inf(1), hi: math.Inf(-1)}
}

// Push folds v into the statistics using Welford's update.
func (s *Stats) Push(v float64) {
	s.n++
	delta := v - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (v - s.mean)
	s.lo = math.Min(s.lo, v)
	s.hi = math.Max(s.hi, v)
}

func (s Stats) Count() int { return s.n }
func (s Stats) Avg() float64 { return s.mean }
func (s Stats) Min() float64 { return s.lo }
func (s Stats) Max() float64 { return s.hi }
func (s Stats) StDev() float64 { return math.Sqrt(s.Variance()) }

// Range is zero for an empty set.
func (s Stats) Range() float64 {
	if s.n == 0 {
		return 0
	}
	return s.hi - s.lo
}

// Variance is the population variance, zero for an empty set.
func (s Stats) Variance() float64 {
	if s.n == 0 {
		return 0
	}
	return s.m2 / float64(s.n)
}

// StatsCollector tracks one Stats per column of a vector stream.
type StatsCollector struct {
	columns []*Stats
}

// NewStatsCollector creates a collector for vectors of the given dimension.
func NewStatsCollector(dim int) *StatsCollector {
	columns := make([]*Stats, dim)
	for i := range columns {
		columns[i] = NewStats()
	}
	return &StatsCollector{columns: columns}
}

// Push adds a vector; it panics if the dimension does not match.
func (sc *StatsCollector) Push(v ...float64) {
	if len(v) != len(sc.columns) {
		panic(fmt.Sprintf("vector of dimension %d pushed to collector of dimension %d", len(v), len(sc.columns)))
	}
	for i, x := range v {
		sc.columns[i].Push(x)
	}
}

// Stats returns a copy of the per column statistics.
func (sc StatsCollector) Stats() []Stats {
	out := make([]Stats, len(sc.columns))
	for i, s := range sc.columns {
		out[i] = *s
	}
	return out
}

func (sc StatsCollector) Dim() int { return len(sc.columns) }

// Size returns the number of vectors pushed.
func (sc StatsCollector) Size() int {
	if len(sc.columns) == 0 {
		return 0
	}
	return sc.columns[0].n
}
