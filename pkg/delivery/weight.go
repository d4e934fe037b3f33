package delivery

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tournevent/fezdelivery/pkg/commerce"
)

// DefaultItemWeight is the per-unit weight (kg) assumed for products with no
// recorded weight, so that a parcel never weighs zero.
const DefaultItemWeight = 0.1

// TotalWeight sums per-unit weight times quantity over items. Items without a
// recorded weight contribute fallback per unit. An empty cart weighs
// DefaultItemWeight.
func TotalWeight(items []commerce.LineItem, fallback float64) float64 {
	if fallback <= 0 {
		fallback = DefaultItemWeight
	}
	var total float64
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		w := item.Weight
		if w <= 0 {
			w = fallback
		}
		total += w * float64(qty)
	}
	if total <= 0 {
		return DefaultItemWeight
	}
	return roundWeight(total)
}

// ItemDescription builds the free-text parcel description from line items.
func ItemDescription(items []commerce.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		parts = append(parts, fmt.Sprintf("%s x %d", item.Name, qty))
	}
	return strings.Join(parts, ", ")
}

// SelectBracket picks the lightest bracket whose weight is at least weight.
// When none qualifies, or weight is unset, it falls back to the lightest bracket.
func SelectBracket(brackets []ExportWeight, weight float64) (ExportWeight, bool) {
	if len(brackets) == 0 {
		return ExportWeight{}, false
	}
	sorted := make([]ExportWeight, len(brackets))
	copy(sorted, brackets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight < sorted[j].Weight })

	if weight > 0 {
		for _, b := range sorted {
			if b.Weight >= weight {
				return b, true
			}
		}
	}
	return sorted[0], true
}

func roundWeight(w float64) float64 {
	return math.Round(w*1000) / 1000
}

func sameWeight(a, b float64) bool {
	return math.Abs(a-b) < 0.0005
}
