package levels

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/docdiff"
)

// ManifestDescription is written into migrated manifests.
const ManifestDescription = "Logic Architect level manifest with variant inheritance"

// BossLevelID always sorts after the numbered levels.
const BossLevelID = "level_boss"

// ComputeOverride returns the fields of variant that differ from base. The id
// is never part of an override since it is derived from the base id.
func ComputeOverride(base, variant *doc.Map) *doc.Map {
	override := doc.NewMap()
	variant.Range(func(key string, v doc.Value) bool {
		if key == FieldID {
			return true
		}
		if !docdiff.Equal(base.Value(key), v) {
			override.Set(key, v.Clone())
		}
		return true
	})
	return override
}

// SortLevelIDs orders base ids by their numeric suffix with the boss level
// last. Ids without a numeric suffix sort after numbered ones by name.
func SortLevelIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a == BossLevelID || b == BossLevelID {
			return b == BossLevelID && a != BossLevelID
		}
		na, aok := levelNumber(a)
		nb, bok := levelNumber(b)
		switch {
		case aok && bok:
			if na != nb {
				return na < nb
			}
			return a < b
		case aok != bok:
			return aok
		default:
			return a < b
		}
	})
}

func levelNumber(id string) (int, bool) {
	digits := strings.TrimPrefix(id, "level_")
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(digits[:end])
	return n, err == nil
}

// LegacyLevel is a base level plus its fully materialized variant files.
type LegacyLevel struct {
	ID       string
	Base     *doc.Map
	Variants []LegacyVariant
}

// LegacyVariant is one materialized variant file.
type LegacyVariant struct {
	Name string
	Data *doc.Map
}

// LoadLegacyLevels reads base levels from levelsDir and their variants from
// variantsDir. Unreadable base levels are reported through warn and skipped.
// Missing variant files are not an error.
func LoadLegacyLevels(levelsDir, variantsDir string, warn func(format string, args ...any)) ([]LegacyLevel, error) {
	entries, err := os.ReadDir(levelsDir)
	if err != nil {
		return nil, fmt.Errorf("levels: read %s: %w", levelsDir, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	SortLevelIDs(ids)

	var out []LegacyLevel
	for _, id := range ids {
		base, err := doc.ReadFile(filepath.Join(levelsDir, id+".json"))
		if err != nil {
			if warn != nil {
				warn("could not load base level %s: %v", id, err)
			}
			continue
		}
		level := LegacyLevel{ID: id, Base: base}
		for _, name := range VariantNames {
			data, err := doc.ReadFile(filepath.Join(variantsDir, FileName(id, name)))
			if err != nil {
				continue
			}
			level.Variants = append(level.Variants, LegacyVariant{Name: name, Data: data})
		}
		out = append(out, level)
	}
	return out, nil
}

// MigrationStats summarizes a manifest migration.
type MigrationStats struct {
	BaseLevels    int
	TotalVariants int
	// FieldsDeduped counts variant fields dropped because they equal the base.
	FieldsDeduped int
	// Identical lists variants that needed no override at all.
	Identical []string
}

// VariantOverride is the override computed for one legacy variant.
type VariantOverride struct {
	ID       string
	Override *doc.Map
}

// Migration is the result of BuildManifest.
type Migration struct {
	Manifest  *doc.Map
	Overrides []VariantOverride
	Stats     MigrationStats
}

// BuildManifest folds legacy levels into a manifest where every variant is
// stored as the minimal override against its base.
func BuildManifest(legacy []LegacyLevel) *Migration {
	out := &Migration{}
	list := make([]doc.Value, 0, len(legacy))
	for _, level := range legacy {
		entry := level.Base.Clone()
		out.Stats.BaseLevels++
		out.Stats.TotalVariants += len(level.Variants)
		if len(level.Variants) > 0 {
			variants := doc.NewMap()
			for _, variant := range level.Variants {
				override := ComputeOverride(level.Base, variant.Data)
				id := VariantID(level.ID, variant.Name)
				if override.Len() == 0 {
					out.Stats.Identical = append(out.Stats.Identical, id)
				}
				out.Stats.FieldsDeduped += variant.Data.Len() - override.Len()
				out.Overrides = append(out.Overrides, VariantOverride{ID: id, Override: override})
				variants.Set(variant.Name, doc.FromMap(override))
			}
			entry.Set(FieldVariants, doc.FromMap(variants))
		}
		list = append(list, doc.FromMap(entry))
	}

	manifest := doc.NewMap()
	manifest.Set(FieldSchema, doc.String(SchemaManifest))
	manifest.Set(FieldVersion, doc.String("1.0.0"))
	manifest.Set(FieldDescription, doc.String(ManifestDescription))
	manifest.Set(FieldLevels, doc.List(list...))
	out.Manifest = manifest
	return out
}
