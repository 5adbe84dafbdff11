package cart

import "cartbridge/internal/model"

// LineDiff describes the mutations needed to reconcile one cart's lines
// onto another. Apply in order: Remove → Update → Add, so an update never
// races a removal of the same line.
//
// Used when remote mode comes up with a non-empty locally persisted cart:
// offline adds are carried over onto the backend cart instead of being
// dropped or blindly re-added.
type LineDiff struct {
	ToAdd    []model.CartLineItem // in desired but not current
	ToRemove []string             // variant ids in current but not desired
	ToUpdate []QuantityChange     // in both with different quantities
}

// QuantityChange is a quantity update for an existing line.
type QuantityChange struct {
	VariantID   string
	OldQuantity int
	NewQuantity int
}

// IsEmpty returns true if no line changes are needed.
func (d *LineDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 && len(d.ToUpdate) == 0
}

// DiffLines computes the delta between current and desired lines, matching
// by variant id. Desired order is preserved for adds so carried-over lines
// land in their original insertion order.
func DiffLines(current, desired []model.CartLineItem) *LineDiff {
	diff := &LineDiff{}

	currentByID := make(map[string]model.CartLineItem, len(current))
	for _, line := range current {
		currentByID[line.VariantID] = line
	}
	desiredByID := make(map[string]model.CartLineItem, len(desired))
	for _, line := range desired {
		desiredByID[line.VariantID] = line
	}

	for _, want := range desired {
		have, exists := currentByID[want.VariantID]
		if !exists {
			diff.ToAdd = append(diff.ToAdd, want)
			continue
		}
		if have.Quantity != want.Quantity {
			diff.ToUpdate = append(diff.ToUpdate, QuantityChange{
				VariantID:   want.VariantID,
				OldQuantity: have.Quantity,
				NewQuantity: want.Quantity,
			})
		}
	}

	for _, have := range current {
		if _, exists := desiredByID[have.VariantID]; !exists {
			diff.ToRemove = append(diff.ToRemove, have.VariantID)
		}
	}

	return diff
}

// MergeLines combines two line sets, summing quantities for shared
// variants. Lines from a keep their order and metadata; lines unique to b
// are appended in b's order. Used to fold an offline local cart into a
// freshly fetched remote cart.
func MergeLines(a, b []model.CartLineItem) []model.CartLineItem {
	var merged model.CartState
	for _, line := range a {
		merged.Merge(line)
	}
	for _, line := range b {
		merged.Merge(line)
	}
	return merged.Lines
}
