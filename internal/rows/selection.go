package rows

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// This file contains pure functions for row selections.
// They take values and return values, never mutating their inputs.

// SelectRange returns the rows from startIdx to endIdx inclusive, clamped to
// [0, count). The bounds may be given in either order.
func SelectRange(startIdx, endIdx, count int) []int {
	low, high := startIdx, endIdx
	if low > high {
		low, high = high, low
	}
	if low < 0 {
		low = 0
	}
	if high >= count {
		high = count - 1
	}

	var result []int
	for i := low; i <= high; i++ {
		result = append(result, i)
	}
	return result
}

// Normalize returns the selection sorted ascending without duplicates.
// Pure function: returns a new slice.
func Normalize(rows []int) []int {
	seen := make(map[int]bool, len(rows))
	result := make([]int, 0, len(rows))
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true
		result = append(result, r)
	}
	sort.Ints(result)
	return result
}

// MaxRangeSpan bounds a single range in ParseSelection.
const MaxRangeSpan = 1 << 16

// ParseSelection parses "1,3,5-7" into row indices.
func ParseSelection(s string) ([]int, error) {
	var result []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
			if start > end {
				start, end = end, start
			}
			if span := end - start; span < 0 || span >= MaxRangeSpan {
				return nil, fmt.Errorf("row range %q spans more than %d rows", part, MaxRangeSpan)
			}
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		result = append(result, n)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty row selection")
	}
	return Normalize(result), nil
}
