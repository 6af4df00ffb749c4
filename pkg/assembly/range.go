package assembly

import "fmt"

// Range is a half-open byte interval [Start, End). Every component that
// deals in offsets (partitioning, fetching, gap computation) shares this
// convention; conversion to the inclusive form used by the HTTP Range
// header happens only at the wire.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Empty reports whether the range covers no bytes.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Partition splits [0, total) into n contiguous, non-overlapping ranges of
// roughly equal size. The last range absorbs the remainder of the integer
// division. n is clamped to at least 1; a zero total yields no ranges.
func Partition(total int64, n int) []Range {
	if total <= 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if int64(n) > total {
		n = int(total)
	}

	size := total / int64(n)
	ranges := make([]Range, 0, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + size
		if i == n-1 {
			end = total
		}
		ranges = append(ranges, Range{Start: start, End: end})
		start = end
	}
	return ranges
}
