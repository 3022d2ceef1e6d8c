// Package interval implements half-open time interval algebra.
package interval

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Empty() bool {
	return !i.Start.Before(i.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap, and an empty interval overlaps nothing.
func Overlaps(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// Pad widens i by before and after.
func Pad(i Interval, before, after time.Duration) Interval {
	return Interval{Start: i.Start.Add(-before), End: i.End.Add(after)}
}

// Merge returns the minimal sorted set of disjoint intervals covering the
// input. Adjacent intervals are joined and empty intervals dropped. The input
// slice is not modified.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := make([]Interval, 0, len(in))
	for _, i := range in {
		if !i.Empty() {
			sorted = append(sorted, i)
		}
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})

	var out []Interval
	for _, i := range sorted {
		if n := len(out); n > 0 && !i.Start.After(out[n-1].End) {
			if i.End.After(out[n-1].End) {
				out[n-1].End = i.End
			}
			continue
		}
		out = append(out, i)
	}
	return out
}

// Subtract removes every blocked instant from free. The result is sorted and
// merged.
func Subtract(free, blocked []Interval) []Interval {
	blocked = Merge(blocked)
	var out []Interval
	for _, f := range Merge(free) {
		cur := f
		for _, b := range blocked {
			if !b.End.After(cur.Start) {
				continue
			}
			if !b.Start.Before(cur.End) {
				break
			}
			if b.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: b.Start})
			}
			cur.Start = b.End
			if cur.Empty() {
				break
			}
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// OverlapsAny reports whether target overlaps any interval of merged, which
// must be sorted and disjoint (the output of Merge).
func OverlapsAny(target Interval, merged []Interval) bool {
	if target.Empty() {
		return false
	}
	// First interval ending after target.Start; ends are increasing in a merged set.
	i := sort.Search(len(merged), func(i int) bool {
		return merged[i].End.After(target.Start)
	})
	return i < len(merged) && merged[i].Start.Before(target.End)
}

// Clip returns the parts of in that fall inside bounds.
func Clip(in []Interval, bounds Interval) []Interval {
	var out []Interval
	for _, i := range in {
		if !Overlaps(i, bounds) {
			continue
		}
		if i.Start.Before(bounds.Start) {
			i.Start = bounds.Start
		}
		if i.End.After(bounds.End) {
			i.End = bounds.End
		}
		out = append(out, i)
	}
	return out
}
