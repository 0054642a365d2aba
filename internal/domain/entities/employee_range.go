package entities

import "fmt"

// BucketRange is an inclusive (Low, High) pair
type BucketRange struct {
	Low  int64
	High int64
}

// StandardEmployeeRanges is the ordered employee bucket table. Counts above
// the last High fall into the open tail starting at EmployeeTailLow.
var StandardEmployeeRanges = []BucketRange{
	{1, 10}, {11, 50}, {51, 200}, {201, 500}, {501, 1000}, {1001, 5000}, {5001, 10000},
}

// StandardRevenueRanges is the ordered revenue bucket table (millions).
// Adjacent buckets share an endpoint; the first match wins.
var StandardRevenueRanges = []BucketRange{
	{0, 1}, {1, 10}, {10, 50}, {50, 100}, {100, 200}, {200, 1000},
}

const (
	// EmployeeTailLow is the low bound of the unbounded employee bucket
	EmployeeTailLow int64 = 10001
	// RevenueTailLow is the low bound of the unbounded revenue bucket
	RevenueTailLow int64 = 1001
)

// ClassifyEmployees maps a raw employee count to its standard bucket.
// A count of zero means "unknown" and yields (nil, nil), as does an absent or
// negative count.
func ClassifyEmployees(n *int64) (low, high *int64) {
	if n == nil || *n <= 0 {
		return nil, nil
	}
	return classify(*n, StandardEmployeeRanges, EmployeeTailLow)
}

// ClassifyRevenue maps a raw revenue figure to its standard bucket. Unlike
// employee counts, zero is a real value and lands in the first bucket.
func ClassifyRevenue(n *int64) (low, high *int64) {
	if n == nil || *n < 0 {
		return nil, nil
	}
	return classify(*n, StandardRevenueRanges, RevenueTailLow)
}

func classify(n int64, table []BucketRange, tailLow int64) (*int64, *int64) {
	if n > table[len(table)-1].High {
		return int64Ptr(tailLow), nil
	}
	for _, r := range table {
		if n >= r.Low && n <= r.High {
			return int64Ptr(r.Low), int64Ptr(r.High)
		}
	}
	// only reachable for values below the first bucket
	return nil, nil
}

// EmployeeRangeLabel renders a bucket the way profiles display it:
// "51 to 200", "10001+", "< 10", or "" when both bounds are unknown.
func EmployeeRangeLabel(low, high *int64) string {
	switch {
	case low != nil && high != nil:
		return fmt.Sprintf("%d to %d", *low, *high)
	case low != nil:
		return fmt.Sprintf("%d+", *low)
	case high != nil:
		return fmt.Sprintf("< %d", *high)
	default:
		return ""
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
