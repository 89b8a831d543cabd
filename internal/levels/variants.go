package levels

import (
	"fmt"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// Generated is one resolved variant document ready to be written.
type Generated struct {
	FileName string
	BaseID   string
	Variant  string
	Data     *doc.Map
}

// FileName returns the generated file name of a variant.
func FileName(baseID, variant string) string {
	return VariantID(baseID, variant) + ".json"
}

// GenerateVariant resolves one variant: sibling variant definitions are
// dropped from base, override is deep-merged on top and the id is rewritten
// to <baseId>_<variant>. Inputs are never mutated and the output depends on
// nothing but the inputs.
func GenerateVariant(base *doc.Map, variant string, override doc.Value) (*doc.Map, error) {
	if base == nil {
		return nil, fmt.Errorf("levels: variant %q: base level is required", variant)
	}
	if !override.IsAbsent() && !override.IsMap() {
		return nil, fmt.Errorf("levels: %s: variant %q override must be an object, got %s",
			base.Text(FieldID), variant, override.Kind())
	}
	stripped := base.Clone()
	stripped.Delete(FieldVariants)
	merged := doc.Merge(doc.FromMap(stripped), override).Map()
	merged.Set(FieldID, doc.String(VariantID(base.Text(FieldID), variant)))
	return merged, nil
}

// GenerateAllVariants resolves every variant of every level. Levels keep
// manifest order and variants keep their declared order. Levels without
// variants produce nothing; an empty override still produces a document.
func GenerateAllVariants(m *Manifest) ([]Generated, error) {
	var generated []Generated
	for _, level := range m.Levels {
		baseID := level.Text(FieldID)
		for _, named := range Variants(level) {
			data, err := GenerateVariant(level, named.Name, named.Override)
			if err != nil {
				return nil, err
			}
			generated = append(generated, Generated{
				FileName: FileName(baseID, named.Name),
				BaseID:   baseID,
				Variant:  named.Name,
				Data:     data,
			})
		}
	}
	return generated, nil
}

// WithSchema returns the document written to disk for a generated variant,
// with the schema reference as its first key.
func (g Generated) WithSchema() *doc.Map {
	return g.Data.WithLeading(FieldSchema, doc.String(SchemaLevelGame))
}

// Encode renders the on-disk bytes of the generated variant.
func (g Generated) Encode() ([]byte, error) {
	return doc.Encode(doc.FromMap(g.WithSchema()))
}
