package levelstore

import (
	"context"
	"fmt"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

// ManifestResolver serves levels straight from the manifest. Variants come
// out of levels.GenerateVariant, so they match the generated files exactly.
type ManifestResolver struct {
	manifest *levels.Manifest
}

// NewManifestResolver validates m and wraps it.
func NewManifestResolver(m *levels.Manifest) (*ManifestResolver, error) {
	if m == nil {
		return nil, fmt.Errorf("levelstore: manifest resolver requires a manifest")
	}
	if errs := levels.ValidateManifest(m); len(errs) > 0 {
		return nil, fmt.Errorf("levelstore: invalid manifest: %w", errs[0])
	}
	return &ManifestResolver{manifest: m}, nil
}

// LoadManifestResolver reads the manifest at path.
func LoadManifestResolver(path string) (*ManifestResolver, error) {
	m, err := levels.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return NewManifestResolver(m)
}

// Manifest returns the wrapped manifest.
func (r *ManifestResolver) Manifest() *levels.Manifest { return r.manifest }

// LoadLevel returns a base level without its variant definitions.
func (r *ManifestResolver) LoadLevel(ctx context.Context, id string) (*doc.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	level, ok := r.manifest.Level(id)
	if !ok {
		return nil, fmt.Errorf("%w: level %s", ErrNotFound, id)
	}
	out := level.Clone()
	out.Delete(levels.FieldVariants)
	return out, nil
}

// LoadAllLevels returns every base level in manifest order.
func (r *ManifestResolver) LoadAllLevels(ctx context.Context) ([]*doc.Map, error) {
	out := make([]*doc.Map, 0, len(r.manifest.Levels))
	for _, level := range r.manifest.Levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clone := level.Clone()
		clone.Delete(levels.FieldVariants)
		out = append(out, clone)
	}
	return out, nil
}

// LoadLevelVariant resolves one variant of a level.
func (r *ManifestResolver) LoadLevelVariant(ctx context.Context, id, variant string) (*doc.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	level, ok := r.manifest.Level(id)
	if !ok {
		return nil, fmt.Errorf("%w: level %s", ErrNotFound, id)
	}
	override, ok := level.Value(levels.FieldVariants).Map().Get(variant)
	if !ok {
		return nil, fmt.Errorf("%w: level %s has no variant %q", ErrNotFound, id, variant)
	}
	return levels.GenerateVariant(level, variant, override)
}

// ResolveAll resolves every variant in the manifest.
func (r *ManifestResolver) ResolveAll() ([]levels.Generated, error) {
	return levels.GenerateAllVariants(r.manifest)
}
