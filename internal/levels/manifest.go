package levels

import (
	"fmt"
	"os"
	"strconv"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// Field names the pipeline reads or rewrites.
const (
	FieldSchema      = "$schema"
	FieldVersion     = "version"
	FieldDescription = "description"
	FieldLevels      = "levels"
	FieldID          = "id"
	FieldTier        = "tier"
	FieldTitle       = "title"
	FieldVariants    = "variants"
	FieldIsIndex     = "isIndex"
)

// Schema references stamped into generated documents.
const (
	SchemaManifest        = "./levels-manifest.schema.json"
	SchemaLevelGame       = "./level-game.schema.json"
	SchemaDifficultyIndex = "./levels-difficulty-index.schema.json"
	SchemaLevelIndex      = "./levels-index.schema.json"
)

// Difficulty variant names. The set is closed.
const (
	VariantEasy   = "easy"
	VariantMedium = "medium"
	VariantHard   = "hard"
)

// VariantNames lists the difficulty variants in canonical order.
var VariantNames = []string{VariantEasy, VariantMedium, VariantHard}

// IsVariantName reports whether name belongs to the closed variant set.
func IsVariantName(name string) bool {
	for _, v := range VariantNames {
		if v == name {
			return true
		}
	}
	return false
}

// VariantID returns the identifier of a resolved variant document.
func VariantID(baseID, variant string) string {
	return baseID + "_" + variant
}

// Manifest is the single authored source of truth for level structure.
type Manifest struct {
	// Raw holds the decoded document as authored.
	Raw *doc.Map
	// Version is the manifest version rendered as text.
	Version string
	// Levels holds every level entry that is an object, in manifest order.
	Levels []*doc.Map
}

// ParseManifest decodes manifest JSON. Structural problems are reported by
// ValidateManifest rather than here so that every problem can be listed.
func ParseManifest(data []byte) (*Manifest, error) {
	raw, err := doc.DecodeMap(data)
	if err != nil {
		return nil, fmt.Errorf("levels: decode manifest: %w", err)
	}
	return NewManifest(raw), nil
}

// LoadManifest reads and decodes the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("levels: read manifest %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("levels: %s: %w", path, err)
	}
	return m, nil
}

// NewManifest wraps an already decoded manifest document.
func NewManifest(raw *doc.Map) *Manifest {
	m := &Manifest{Raw: raw, Version: scalarText(raw.Value(FieldVersion))}
	for _, item := range raw.Value(FieldLevels).Items() {
		if level := item.Map(); level != nil {
			m.Levels = append(m.Levels, level)
		}
	}
	return m
}

// Level returns the entry with the given id.
func (m *Manifest) Level(id string) (*doc.Map, bool) {
	for _, level := range m.Levels {
		if level.Text(FieldID) == id {
			return level, true
		}
	}
	return nil, false
}

// Variants returns the variant overrides of level in insertion order. Levels
// without a variants object yield nil.
func Variants(level *doc.Map) []NamedOverride {
	variants := level.Value(FieldVariants).Map()
	if variants == nil {
		return nil
	}
	out := make([]NamedOverride, 0, variants.Len())
	variants.Range(func(name string, override doc.Value) bool {
		out = append(out, NamedOverride{Name: name, Override: override})
		return true
	})
	return out
}

// HasVariants reports whether level declares at least one variant.
func HasVariants(level *doc.Map) bool {
	return level.Value(FieldVariants).Map().Len() > 0
}

// NamedOverride pairs a variant name with its sparse override.
type NamedOverride struct {
	Name     string
	Override doc.Value
}

// scalarText renders a string or number field as text. Other kinds yield "".
func scalarText(v doc.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if n, ok := v.AsNumber(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}
