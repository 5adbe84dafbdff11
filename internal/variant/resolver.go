// Package variant maps ambiguous option labels to concrete purchasable
// variants. Pure transforms over catalog data; no I/O.
package variant

import (
	"strings"

	"cartbridge/internal/model"
)

// defaultLabel is used when a variant yields no usable label of its own.
const defaultLabel = "Default"

// Choice pairs a display label with the variant it resolves to.
type Choice struct {
	Label   string
	Variant model.Variant
}

// ChoiceSet is an ordered, label-deduplicated list of choices plus a
// lookup map for selection.
type ChoiceSet struct {
	Choices []Choice
	byLabel map[string]*model.Variant
}

// Select resolves a chosen label to its variant. Pure map lookup.
func (s *ChoiceSet) Select(label string) (*model.Variant, bool) {
	v, ok := s.byLabel[label]
	return v, ok
}

// BuildChoices derives the selectable choices for a product.
//
// The driving option is the first product option whose name matches any of
// candidateOptionNames case-insensitively. If none match and the product
// has exactly one option, that option drives; otherwise no option is
// selected and labels fall back to variant titles.
//
// Labels are trimmed; an empty label becomes "Default". Duplicate labels
// keep the first variant seen (stable tie-break); later variants sharing
// a label are unreachable through this resolver, which is the intended
// behavior for size pills backed by redundant variants, not a bug.
//
// A product with no variants returns ErrNoChoices: the caller disables
// the add control rather than treating it as an exception.
func BuildChoices(p *model.Product, candidateOptionNames []string) (*ChoiceSet, error) {
	if p == nil || len(p.Variants) == 0 {
		return nil, model.ErrNoChoices
	}

	index, hasIndex := pickOptionIndex(p.Options, candidateOptionNames)

	set := &ChoiceSet{byLabel: make(map[string]*model.Variant)}
	for i := range p.Variants {
		v := &p.Variants[i]
		label := labelFor(v, index, hasIndex)
		if _, seen := set.byLabel[label]; seen {
			continue // first variant under a label wins
		}
		set.byLabel[label] = v
		set.Choices = append(set.Choices, Choice{Label: label, Variant: *v})
	}

	if len(set.Choices) == 0 {
		return nil, model.ErrNoChoices
	}
	return set, nil
}

// pickOptionIndex scans options in order for the first case-insensitive
// candidate match, falling back to the sole option when there is exactly one.
func pickOptionIndex(options []model.OptionSchema, candidates []string) (int, bool) {
	for _, opt := range options {
		for _, cand := range candidates {
			if strings.EqualFold(strings.TrimSpace(opt.Name), strings.TrimSpace(cand)) {
				return opt.Index, true
			}
		}
	}
	if len(options) == 1 {
		return options[0].Index, true
	}
	return 0, false
}

func labelFor(v *model.Variant, index int, hasIndex bool) string {
	var label string
	if hasIndex && index >= 0 && index < len(v.OptionValues) {
		label = v.OptionValues[index]
	}
	if label == "" {
		label = v.Title
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultLabel
	}
	return label
}
