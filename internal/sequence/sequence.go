// Package sequence hands out gap-tolerant, collision-free daily counters used
// to number orders and payments.
package sequence

import (
	"context"
	"fmt"
	"time"
)

const (
	OrderSequence   = "order"
	PaymentSequence = "payment"
)

// Sequencer returns the next value of the counter identified by name and the
// calendar day of day. Values start at 1 and never repeat for the same pair,
// even across concurrent callers.
type Sequencer interface {
	Next(ctx context.Context, name string, day time.Time) (int64, error)
}

// Number formats a business number such as ORD-20260301-0001.
func Number(prefix string, day time.Time, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), value)
}

func dayKey(day time.Time) string {
	return day.Format("20060102")
}
