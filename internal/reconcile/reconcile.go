// Package reconcile computes the delta between the cart the server holds and
// the cart a caller wants, so a whole-cart replace can be executed as the
// minimal set of single-line mutations the backend supports.
package reconcile

import (
	"slices"
	"strings"

	"storefront/internal/model"
)

// LineItemDiff describes the mutations needed to reconcile line items.
// Operations should be applied in order: Remove → Update → Add
// so a product is never updated after it has been removed.
type LineItemDiff struct {
	ToAdd    []ItemToAdd    // Products in desired but not current
	ToRemove []ItemToRemove // Products in current but not desired
	ToUpdate []ItemToUpdate // Products in both with different quantities
}

// ItemToAdd specifies a new line to add to the cart.
type ItemToAdd struct {
	ProductID string
	Quantity  int
}

// ItemToRemove specifies a line to remove from the cart.
type ItemToRemove struct {
	ProductID string
	LineID    string // informational; the backend removes by product
}

// ItemToUpdate specifies a quantity change for an existing line.
type ItemToUpdate struct {
	ProductID   string
	LineID      string
	OldQuantity int
	NewQuantity int
}

// IsEmpty returns true if no line item changes are needed.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// Count is the number of backend calls the diff will take.
func (d *LineItemDiff) Count() int {
	return len(d.ToAdd) + len(d.ToRemove) + len(d.ToUpdate)
}

// DesiredItem is one line of the requested cart.
type DesiredItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// DiffLineItems computes the delta between the current cart lines and the
// desired items. Matching is by product identifier; desired items with a
// quantity below 1 are treated as absent, and repeated products are summed.
// Output slices are sorted by product ID so callers issue requests in a
// stable order.
func DiffLineItems(current []model.CartLine, desired []DesiredItem) *LineItemDiff {
	diff := &LineItemDiff{}

	currentByID := make(map[string]model.CartLine, len(current))
	for _, line := range current {
		currentByID[line.ProductID()] = line
	}

	desiredByID := make(map[string]int, len(desired))
	for _, item := range desired {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		desiredByID[item.ProductID] += item.Quantity
	}

	for id, qty := range desiredByID {
		line, exists := currentByID[id]
		switch {
		case !exists:
			diff.ToAdd = append(diff.ToAdd, ItemToAdd{ProductID: id, Quantity: qty})
		case line.Quantity != qty:
			diff.ToUpdate = append(diff.ToUpdate, ItemToUpdate{
				ProductID:   id,
				LineID:      line.LineID,
				OldQuantity: line.Quantity,
				NewQuantity: qty,
			})
		}
	}

	for id, line := range currentByID {
		if _, exists := desiredByID[id]; !exists {
			diff.ToRemove = append(diff.ToRemove, ItemToRemove{ProductID: id, LineID: line.LineID})
		}
	}

	slices.SortFunc(diff.ToAdd, func(a, b ItemToAdd) int { return strings.Compare(a.ProductID, b.ProductID) })
	slices.SortFunc(diff.ToRemove, func(a, b ItemToRemove) int { return strings.Compare(a.ProductID, b.ProductID) })
	slices.SortFunc(diff.ToUpdate, func(a, b ItemToUpdate) int { return strings.Compare(a.ProductID, b.ProductID) })
	return diff
}

// FromLines turns cart lines into desired items, e.g. to replay a guest cart.
func FromLines(lines []model.CartLine) []DesiredItem {
	out := make([]DesiredItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, DesiredItem{ProductID: l.ProductID(), Quantity: l.Quantity})
	}
	return out
}
