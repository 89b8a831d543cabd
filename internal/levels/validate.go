package levels

import (
	"fmt"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// ValidateManifest checks the manifest structure and returns every problem
// found. An empty result means generation may proceed.
func ValidateManifest(m *Manifest) []error {
	if m == nil || m.Raw == nil {
		return []error{fmt.Errorf("manifest is nil")}
	}
	var errs []error
	if !m.Raw.Value(FieldVersion).Truthy() {
		errs = append(errs, fmt.Errorf("missing manifest version"))
	}
	levels := m.Raw.Value(FieldLevels)
	if !levels.IsList() {
		errs = append(errs, fmt.Errorf("levels must be an array"))
		return errs
	}

	seen := map[string]int{}
	for index, item := range levels.Items() {
		level := item.Map()
		if level == nil {
			errs = append(errs, fmt.Errorf("levels[%d]: entry must be an object", index))
			continue
		}
		id := level.Text(FieldID)
		if id == "" {
			errs = append(errs, fmt.Errorf("levels[%d]: level missing id", index))
			continue
		}
		if first, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate id (first seen at levels[%d])", id, first))
		} else {
			seen[id] = index
		}
		if tier := level.Value(FieldTier); !tier.Truthy() {
			errs = append(errs, fmt.Errorf("%s: missing tier", id))
		} else if _, ok := tier.AsString(); !ok {
			errs = append(errs, fmt.Errorf("%s: tier must be a string, got %s", id, tier.Kind()))
		}
		if !level.Value(FieldTitle).Truthy() {
			errs = append(errs, fmt.Errorf("%s: missing title", id))
		}
		errs = append(errs, validateVariants(id, level.Value(FieldVariants))...)
	}
	return errs
}

func validateVariants(id string, variants doc.Value) []error {
	if variants.IsAbsent() || variants.IsNull() {
		return nil
	}
	if !variants.IsMap() {
		return []error{fmt.Errorf("%s: variants must be an object", id)}
	}
	var errs []error
	variants.Map().Range(func(name string, override doc.Value) bool {
		if !IsVariantName(name) {
			errs = append(errs, fmt.Errorf("%s: unknown variant '%s'", id, name))
		}
		if !override.IsMap() {
			errs = append(errs, fmt.Errorf("%s: variant '%s' override must be an object", id, name))
		}
		return true
	})
	return errs
}
