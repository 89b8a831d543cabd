package levels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// Field groups used when a level is split into theory, puzzle and index
// records.
var (
	TheoryFields = []string{
		"introText", "storyText", "physicsVisual", "physicsDetails",
		"courseOverview", "tierOverview", "levelGuide", "difficultyProgression",
	}
	PuzzleFields = []string{
		"availableGates", "inputs", "targetTruthTable", "targetSequence",
		"maxGates", "xpReward", "hint",
	}
	IndexFields = []string{"id", "tier", "title", "objective", "description", "isIndex"}

	// variantPresentationFields are copied into a variant puzzle only when
	// the override sets them.
	variantPresentationFields = []string{"title", "objective", "description", "physicsVisual"}
)

// Split layout folders, relative to the story directory.
const (
	TheoryFolder  = "level-theory"
	PuzzlesFolder = "level-puzzles"
	MediaFolder   = "level-media"

	LevelIndexVersion     = "2.0.0"
	LevelIndexDescription = "Lightweight level index. Theory and puzzles are loaded on demand."
	BaseVariant           = "base"
)

// TheoryFile returns the theory path of a level relative to the story dir.
func TheoryFile(id string) string {
	return path.Join(TheoryFolder, id+".json")
}

// PuzzleFile returns the puzzle path of a level variant relative to the
// story dir. The base variant has no suffix.
func PuzzleFile(id, variant string) string {
	if variant == "" || variant == BaseVariant {
		return path.Join(PuzzlesFolder, id+".json")
	}
	return path.Join(PuzzlesFolder, FileName(id, variant))
}

// ExtractTheory returns the narrative part of a level.
func ExtractTheory(level *doc.Map) *doc.Map {
	keys := append([]string{FieldID, FieldTier, FieldTitle}, TheoryFields...)
	return level.Pick(keys...)
}

// ExtractPuzzle returns the gameplay part of a level. A nil override yields
// the base puzzle. Variant puzzles are projected from the resolved variant
// so they agree with GenerateVariant field for field.
func ExtractPuzzle(base *doc.Map, variant string, override *doc.Map) (*doc.Map, error) {
	baseID := base.Text(FieldID)
	puzzle := doc.NewMap()
	source := base
	if override == nil {
		puzzle.Set(FieldID, doc.String(baseID))
		puzzle.Set("baseId", doc.String(baseID))
		puzzle.Set("variant", doc.String(BaseVariant))
	} else {
		resolved, err := GenerateVariant(base, variant, doc.FromMap(override))
		if err != nil {
			return nil, err
		}
		source = resolved
		puzzle.Set(FieldID, doc.String(VariantID(baseID, variant)))
		puzzle.Set("baseId", doc.String(baseID))
		puzzle.Set("variant", doc.String(variant))
	}
	source.Pick(PuzzleFields...).Range(func(key string, v doc.Value) bool {
		puzzle.Set(key, v)
		return true
	})
	if override != nil {
		for _, key := range variantPresentationFields {
			if v := override.Value(key); v.Truthy() {
				puzzle.Set(key, source.Value(key).Clone())
			}
		}
	}
	return puzzle, nil
}

// PuzzleFiles maps variant names to puzzle paths in insertion order.
type PuzzleFiles struct {
	entries []PuzzleRef
}

// PuzzleRef is one variant puzzle reference.
type PuzzleRef struct {
	Variant string
	File    string
}

// Add appends or replaces the path of variant.
func (p *PuzzleFiles) Add(variant, file string) {
	for i := range p.entries {
		if p.entries[i].Variant == variant {
			p.entries[i].File = file
			return
		}
	}
	p.entries = append(p.entries, PuzzleRef{Variant: variant, File: file})
}

// Lookup returns the path of variant.
func (p *PuzzleFiles) Lookup(variant string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, ref := range p.entries {
		if ref.Variant == variant {
			return ref.File, true
		}
	}
	return "", false
}

// Refs returns the references in insertion order.
func (p *PuzzleFiles) Refs() []PuzzleRef {
	if p == nil {
		return nil
	}
	return append([]PuzzleRef(nil), p.entries...)
}

// MarshalJSON encodes the references as an ordered object.
func (p PuzzleFiles) MarshalJSON() ([]byte, error) {
	m := doc.NewMap()
	for _, ref := range p.entries {
		m.Set(ref.Variant, doc.String(ref.File))
	}
	return doc.EncodeIndent(doc.FromMap(m), "")
}

// UnmarshalJSON decodes an object of variant paths, keeping key order.
func (p *PuzzleFiles) UnmarshalJSON(data []byte) error {
	m, err := doc.DecodeMap(data)
	if err != nil {
		return fmt.Errorf("levels: puzzleFiles: %w", err)
	}
	p.entries = nil
	var bad error
	m.Range(func(variant string, v doc.Value) bool {
		file, ok := v.AsString()
		if !ok {
			bad = fmt.Errorf("levels: puzzleFiles.%s must be a string", variant)
			return false
		}
		p.Add(variant, file)
		return true
	})
	return bad
}

// IndexEntry is the lightweight record kept in the level index for a level.
type IndexEntry struct {
	ID          string       `json:"id" jsonschema:"required"`
	Tier        string       `json:"tier,omitempty"`
	Title       string       `json:"title,omitempty"`
	Objective   string       `json:"objective,omitempty"`
	Description string       `json:"description,omitempty"`
	IsIndex     bool         `json:"isIndex,omitempty"`
	TheoryFile  string       `json:"theoryFile" jsonschema:"required"`
	PuzzleFiles *PuzzleFiles `json:"puzzleFiles" jsonschema:"required,description=Variant name to puzzle path; null for index levels"`
}

// LevelIndex is the top-level record of the split layout.
type LevelIndex struct {
	Schema      string         `json:"$schema" jsonschema:"required"`
	Version     string         `json:"version" jsonschema:"required"`
	Description string         `json:"description"`
	TotalLevels int            `json:"totalLevels" jsonschema:"required,description=Number of playable (non-index) levels"`
	Structure   IndexStructure `json:"structure" jsonschema:"required"`
	Levels      []IndexEntry   `json:"levels" jsonschema:"required"`
}

// IndexStructure names the folders of the split layout.
type IndexStructure struct {
	TheoryFolder  string `json:"theoryFolder"`
	PuzzlesFolder string `json:"puzzlesFolder"`
	MediaFolder   string `json:"mediaFolder"`
}

// ExtractIndexEntry builds the index record of a level. Variant puzzle
// references are listed when the level declares variants, index levels have
// none and every other level references its base puzzle.
func ExtractIndexEntry(level *doc.Map) IndexEntry {
	id := level.Text(FieldID)
	isIndex, _ := level.Value(FieldIsIndex).AsBool()
	entry := IndexEntry{
		ID:          id,
		Tier:        scalarText(level.Value(FieldTier)),
		Title:       level.Text(FieldTitle),
		Objective:   level.Text("objective"),
		Description: level.Text(FieldDescription),
		IsIndex:     isIndex,
		TheoryFile:  TheoryFile(id),
	}
	switch {
	case HasVariants(level):
		entry.PuzzleFiles = &PuzzleFiles{}
		for _, named := range Variants(level) {
			entry.PuzzleFiles.Add(named.Name, PuzzleFile(id, named.Name))
		}
	case isIndex:
	default:
		entry.PuzzleFiles = &PuzzleFiles{}
		entry.PuzzleFiles.Add(BaseVariant, PuzzleFile(id, BaseVariant))
	}
	return entry
}

// SplitFile is one document produced by SplitManifest, with a path relative
// to the story dir.
type SplitFile struct {
	Path string
	Data *doc.Map
}

// Split is the full output of SplitManifest.
type Split struct {
	Index   *LevelIndex
	Theory  []SplitFile
	Puzzles []SplitFile
}

// SplitManifest splits every manifest level into theory, puzzle and index
// records. Invalid manifests are rejected with every ValidateManifest
// problem joined into one error.
func SplitManifest(m *Manifest) (*Split, error) {
	if problems := ValidateManifest(m); len(problems) > 0 {
		return nil, fmt.Errorf("levels: split: %w", errors.Join(problems...))
	}
	out := &Split{Index: &LevelIndex{
		Schema:      SchemaLevelIndex,
		Version:     LevelIndexVersion,
		Description: LevelIndexDescription,
		Structure: IndexStructure{
			TheoryFolder:  TheoryFolder,
			PuzzlesFolder: PuzzlesFolder,
			MediaFolder:   MediaFolder,
		},
		Levels: []IndexEntry{},
	}}
	for _, level := range m.Levels {
		id := level.Text(FieldID)
		if id == "" {
			return nil, fmt.Errorf("levels: split: level without id")
		}
		entry := ExtractIndexEntry(level)
		out.Index.Levels = append(out.Index.Levels, entry)
		if !entry.IsIndex {
			out.Index.TotalLevels++
		}
		out.Theory = append(out.Theory, SplitFile{Path: TheoryFile(id), Data: ExtractTheory(level)})
		if entry.PuzzleFiles == nil {
			continue
		}
		variants := Variants(level)
		if len(variants) == 0 {
			puzzle, err := ExtractPuzzle(level, BaseVariant, nil)
			if err != nil {
				return nil, err
			}
			out.Puzzles = append(out.Puzzles, SplitFile{Path: PuzzleFile(id, BaseVariant), Data: puzzle})
			continue
		}
		for _, named := range variants {
			override := named.Override.Map()
			if override == nil {
				return nil, fmt.Errorf("levels: split: %s: variant %q override must be an object, got %s",
					id, named.Name, named.Override.Kind())
			}
			puzzle, err := ExtractPuzzle(level, named.Name, override)
			if err != nil {
				return nil, err
			}
			out.Puzzles = append(out.Puzzles, SplitFile{Path: PuzzleFile(id, named.Name), Data: puzzle})
		}
	}
	return out, nil
}

// Encode renders the on-disk bytes of the level index.
func (l *LevelIndex) Encode() ([]byte, error) {
	return encodeJSON(l)
}

// DecodeLevelIndex parses a level index document.
func DecodeLevelIndex(data []byte) (*LevelIndex, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("levels: decode level index: %w", doc.ErrEmpty)
	}
	var index LevelIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("levels: decode level index: %w", err)
	}
	return &index, nil
}
