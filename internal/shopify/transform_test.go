package shopify

import (
	"encoding/json"
	"testing"
)

// Option values must line up with the option schema by index even when a
// middle value is empty; filtering empties would attribute later values
// to the wrong option.
func TestTransformProducts_OptionValuesStayAligned(t *testing.T) {
	wire := []wireProduct{{
		ID:    json.Number("100"),
		Title: "Body Butter",
		Options: []wireOption{
			{Name: "Size", Position: 1},
			{Name: "Scent", Position: 2},
		},
		Variants: []wireVariant{{
			ID:      json.Number("111"),
			Title:   "Lavender",
			Option1: "",
			Option2: "Lavender",
			Price:   json.RawMessage(`"10.00"`),
		}},
	}}

	products, err := transformProducts(wire)
	if err != nil {
		t.Fatalf("transformProducts: %v", err)
	}
	got := products[0].Variants[0].OptionValues
	if len(got) != 2 {
		t.Fatalf("OptionValues = %v, want one value per option", got)
	}
	if got[0] != "" || got[1] != "Lavender" {
		t.Errorf("OptionValues = %v, want [\"\" \"Lavender\"]", got)
	}
}

// A product with no declared options keeps the legacy behavior: only the
// populated values appear.
func TestTransformProducts_NoOptionsSkipsEmptyValues(t *testing.T) {
	wire := []wireProduct{{
		ID: json.Number("100"),
		Variants: []wireVariant{{
			ID:      json.Number("111"),
			Option1: "Default Title",
			Price:   json.RawMessage(`"10.00"`),
		}},
	}}

	products, err := transformProducts(wire)
	if err != nil {
		t.Fatalf("transformProducts: %v", err)
	}
	got := products[0].Variants[0].OptionValues
	if len(got) != 1 || got[0] != "Default Title" {
		t.Errorf("OptionValues = %v, want [Default Title]", got)
	}
}

// Variant option slots beyond the declared schema are dropped.
func TestTransformProducts_ExtraOptionValuesTruncated(t *testing.T) {
	wire := []wireProduct{{
		ID:      json.Number("100"),
		Options: []wireOption{{Name: "Size", Position: 1}},
		Variants: []wireVariant{{
			ID:      json.Number("111"),
			Option1: "8oz",
			Option2: "stray",
			Price:   json.RawMessage(`"10.00"`),
		}},
	}}

	products, err := transformProducts(wire)
	if err != nil {
		t.Fatalf("transformProducts: %v", err)
	}
	got := products[0].Variants[0].OptionValues
	if len(got) != 1 || got[0] != "8oz" {
		t.Errorf("OptionValues = %v, want [8oz]", got)
	}
}
