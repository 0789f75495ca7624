// Package rollup computes per-customer sales aggregates with left-join
// semantics: the customer set drives the output, and customers with no sales
// get zero/null defaults. This is the single place that rule lives; callers
// must not re-derive it per query.
package rollup

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a dimension row. Attributes are carried through untouched; the
// aggregator reads only the ID.
type Customer struct {
	ID         string
	Attributes map[string]interface{}
}

// SaleLine is one fact row: a single line item of an order.
// Multiple lines may share an OrderID; they count as one purchase.
type SaleLine struct {
	CustomerID string
	OrderID    string
	ProductID  string
	Amount     decimal.Decimal
	Discount   decimal.Decimal
	SoldAt     time.Time
}

// CustomerRollup is the aggregate for one customer. Exactly one rollup is
// produced per input customer, regardless of how many sales matched.
type CustomerRollup struct {
	CustomerID string

	// PurchaseCount is the number of distinct orders. 0 if no sales.
	PurchaseCount int64

	// TotalSpend is the sum of Amount - Discount across all sale lines.
	// May be negative (net refunds); no clamping.
	TotalSpend decimal.Decimal

	// AverageOrderValue is TotalSpend / PurchaseCount, 0 when PurchaseCount
	// is 0.
	AverageOrderValue decimal.Decimal

	// LastPurchaseAt is the latest SoldAt, nil if no sales.
	LastPurchaseAt *time.Time

	// TopProductID is the most frequently purchased product, ties broken by
	// first appearance in the input order. Nil if no sales.
	TopProductID *string
}

// group is the accumulated state for one customer while scanning sales.
type group struct {
	orders        map[string]struct{}
	total         decimal.Decimal
	last          time.Time
	hasLast       bool
	productCounts map[string]int64
	productOrder  []string // first-appearance order, for deterministic ties
}

// Aggregate computes one CustomerRollup per customer in a single pass over
// sales. Sale lines referencing a customer not present in customers are
// dropped silently; the dimension set drives the result, mirroring a LEFT
// JOIN. Pure function: re-running on unchanged inputs yields identical output.
//
// The result is ordered by the input customer order; callers needing a
// different order must sort explicitly.
func Aggregate(customers []Customer, sales []SaleLine) []CustomerRollup {
	known := make(map[string]*group, len(customers))
	for _, c := range customers {
		if _, dup := known[c.ID]; dup {
			continue // first occurrence wins; customer IDs are unique upstream
		}
		known[c.ID] = &group{
			orders:        make(map[string]struct{}),
			productCounts: make(map[string]int64),
		}
	}

	for _, line := range sales {
		g, ok := known[line.CustomerID]
		if !ok {
			continue // unmatched fact; dropped, not an error
		}
		g.orders[line.OrderID] = struct{}{}
		g.total = g.total.Add(line.Amount.Sub(line.Discount))
		if !g.hasLast || line.SoldAt.After(g.last) {
			g.last = line.SoldAt
			g.hasLast = true
		}
		if _, seen := g.productCounts[line.ProductID]; !seen {
			g.productOrder = append(g.productOrder, line.ProductID)
		}
		g.productCounts[line.ProductID]++
	}

	out := make([]CustomerRollup, 0, len(customers))
	emitted := make(map[string]bool, len(customers))
	for _, c := range customers {
		if emitted[c.ID] {
			continue
		}
		emitted[c.ID] = true
		out = append(out, known[c.ID].rollup(c.ID))
	}
	return out
}

func (g *group) rollup(customerID string) CustomerRollup {
	r := CustomerRollup{
		CustomerID:        customerID,
		PurchaseCount:     int64(len(g.orders)),
		TotalSpend:        g.total,
		AverageOrderValue: decimal.Zero,
	}
	if r.PurchaseCount > 0 {
		r.AverageOrderValue = g.total.Div(decimal.NewFromInt(r.PurchaseCount))
	}
	if g.hasLast {
		last := g.last
		r.LastPurchaseAt = &last
	}
	if top, ok := g.topProduct(); ok {
		r.TopProductID = &top
	}
	return r
}

// topProduct returns the modal product ID. Iterates in first-appearance order
// so ties resolve to the earliest-seen product, deterministically.
func (g *group) topProduct() (string, bool) {
	var (
		best      string
		bestCount int64
		found     bool
	)
	for _, productID := range g.productOrder {
		if count := g.productCounts[productID]; count > bestCount {
			best, bestCount, found = productID, count, true
		}
	}
	return best, found
}
