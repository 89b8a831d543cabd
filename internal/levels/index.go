package levels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// DifficultyIndexVersion is stamped into every difficulty index.
const DifficultyIndexVersion = "1.0.0"

// DifficultyIndex summarizes generated variants per difficulty.
type DifficultyIndex struct {
	Schema       string       `json:"$schema" jsonschema:"required"`
	Version      string       `json:"version" jsonschema:"required"`
	TotalLevels  int          `json:"totalLevels" jsonschema:"required,description=Number of base levels that declare variants"`
	Difficulties Difficulties `json:"difficulties" jsonschema:"required"`
}

// Difficulties keeps the three buckets in canonical order when encoded.
type Difficulties struct {
	Easy   *DifficultyBucket `json:"easy" jsonschema:"required"`
	Medium *DifficultyBucket `json:"medium" jsonschema:"required"`
	Hard   *DifficultyBucket `json:"hard" jsonschema:"required"`
}

// Bucket returns the bucket of a variant name, or nil when the name is not
// part of the closed set.
func (d *Difficulties) Bucket(variant string) *DifficultyBucket {
	switch variant {
	case VariantEasy:
		return d.Easy
	case VariantMedium:
		return d.Medium
	case VariantHard:
		return d.Hard
	default:
		return nil
	}
}

// DifficultyBucket aggregates the levels of one difficulty.
type DifficultyBucket struct {
	Count   int            `json:"count" jsonschema:"required"`
	TotalXP float64        `json:"totalXP" jsonschema:"required"`
	Levels  []LevelSummary `json:"levels" jsonschema:"required"`
}

// LevelSummary is one row of the difficulty index.
type LevelSummary struct {
	ID        string  `json:"id" jsonschema:"required"`
	BaseID    string  `json:"baseId" jsonschema:"required"`
	Tier      string  `json:"tier,omitempty"`
	Title     string  `json:"title,omitempty"`
	Inputs    float64 `json:"inputs" jsonschema:"required"`
	MaxGates  float64 `json:"maxGates" jsonschema:"required"`
	XPReward  float64 `json:"xpReward" jsonschema:"required"`
	GateCount int     `json:"gateCount" jsonschema:"required,description=Number of available gate types"`
	File      string  `json:"file" jsonschema:"required"`
}

// BuildDifficultyIndex buckets generated variants by difficulty. Missing
// numeric fields fall back to zero. Unknown variant names are rejected.
func BuildDifficultyIndex(generated []Generated) (*DifficultyIndex, error) {
	index := &DifficultyIndex{
		Schema:  SchemaDifficultyIndex,
		Version: DifficultyIndexVersion,
		Difficulties: Difficulties{
			Easy:   &DifficultyBucket{Levels: []LevelSummary{}},
			Medium: &DifficultyBucket{Levels: []LevelSummary{}},
			Hard:   &DifficultyBucket{Levels: []LevelSummary{}},
		},
	}
	bases := map[string]struct{}{}
	for _, g := range generated {
		bucket := index.Difficulties.Bucket(g.Variant)
		if bucket == nil {
			return nil, fmt.Errorf("levels: %s: unknown variant %q", g.BaseID, g.Variant)
		}
		bases[g.BaseID] = struct{}{}
		summary := LevelSummary{
			ID:        g.Data.Text(FieldID),
			BaseID:    g.BaseID,
			Tier:      scalarText(g.Data.Value(FieldTier)),
			Title:     g.Data.Text(FieldTitle),
			Inputs:    g.Data.Value("inputs").NumberOr(0),
			MaxGates:  g.Data.Value("maxGates").NumberOr(0),
			XPReward:  g.Data.Value("xpReward").NumberOr(0),
			GateCount: g.Data.Value("availableGates").Len(),
			File:      g.FileName,
		}
		bucket.Count++
		bucket.TotalXP += summary.XPReward
		bucket.Levels = append(bucket.Levels, summary)
	}
	for _, bucket := range []*DifficultyBucket{index.Difficulties.Easy, index.Difficulties.Medium, index.Difficulties.Hard} {
		sort.SliceStable(bucket.Levels, func(i, j int) bool {
			return bucket.Levels[i].BaseID < bucket.Levels[j].BaseID
		})
	}
	index.TotalLevels = len(bases)
	return index, nil
}

// encodeJSON renders typed documents with the same two-space layout used for
// level documents and no trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", doc.Indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encode renders the on-disk bytes of the difficulty index.
func (d *DifficultyIndex) Encode() ([]byte, error) {
	return encodeJSON(d)
}
