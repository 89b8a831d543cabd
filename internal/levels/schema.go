package levels

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/invopop/jsonschema"
)

// levelDocument describes the fields every level and variant document
// carries. Other fields are allowed.
type levelDocument struct {
	Schema         string   `json:"$schema,omitempty"`
	ID             string   `json:"id" jsonschema:"required"`
	Tier           string   `json:"tier" jsonschema:"required"`
	Title          string   `json:"title" jsonschema:"required"`
	Objective      string   `json:"objective,omitempty"`
	Description    string   `json:"description,omitempty"`
	IsIndex        bool     `json:"isIndex,omitempty"`
	AvailableGates []string `json:"availableGates,omitempty"`
	Inputs         int      `json:"inputs,omitempty" jsonschema:"minimum=0"`
	MaxGates       int      `json:"maxGates,omitempty" jsonschema:"minimum=0"`
	XPReward       int      `json:"xpReward,omitempty" jsonschema:"minimum=0"`
	Hint           string   `json:"hint,omitempty"`
}

type manifestLevel struct {
	levelDocument
	Variants *manifestVariants `json:"variants,omitempty"`
}

type manifestVariants struct {
	Easy   map[string]any `json:"easy,omitempty" jsonschema:"description=Sparse override for the easy variant"`
	Medium map[string]any `json:"medium,omitempty" jsonschema:"description=Sparse override for the medium variant"`
	Hard   map[string]any `json:"hard,omitempty" jsonschema:"description=Sparse override for the hard variant"`
}

type manifestDocument struct {
	Schema      string          `json:"$schema,omitempty"`
	Version     string          `json:"version" jsonschema:"required"`
	Description string          `json:"description,omitempty"`
	Levels      []manifestLevel `json:"levels" jsonschema:"required"`
}

// JSONSchema describes puzzle references as an object of paths.
func (PuzzleFiles) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "Variant name to puzzle path",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// Schemas returns the JSON schemas of every document the pipeline writes,
// keyed by file name.
func Schemas() (map[string]*jsonschema.Schema, error) {
	open := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
	}
	closed := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	out := map[string]*jsonschema.Schema{}
	add := func(ref string, schema *jsonschema.Schema, title, description string) error {
		if schema == nil {
			return fmt.Errorf("levels: failed to reflect %s", ref)
		}
		schema.Title = title
		schema.Description = description
		out[path.Base(ref)] = schema
		return nil
	}
	if err := add(SchemaManifest, open.Reflect(&manifestDocument{}),
		"Level Manifest", "Base levels with sparse per-difficulty overrides."); err != nil {
		return nil, err
	}
	if err := add(SchemaLevelGame, open.Reflect(&levelDocument{}),
		"Level Variant", "Fully resolved level variant produced from the manifest."); err != nil {
		return nil, err
	}
	if err := add(SchemaDifficultyIndex, closed.Reflect(&DifficultyIndex{}),
		"Difficulty Index", "Generated variants grouped by difficulty."); err != nil {
		return nil, err
	}
	if err := add(SchemaLevelIndex, closed.Reflect(&LevelIndex{}),
		"Level Index", "Lightweight index of the split level layout."); err != nil {
		return nil, err
	}
	return out, nil
}

// SchemaNames returns the schema file names in sorted order.
func SchemaNames(schemas map[string]*jsonschema.Schema) []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeSchema renders a schema with a trailing newline.
func EncodeSchema(schema *jsonschema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("levels: marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
