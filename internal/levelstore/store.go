package levelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

// Well-known files of the story directory.
const (
	IndexFile    = "levels-index.json"
	TiersFile    = "tiers.json"
	GlossaryFile = "glossary.json"
	FormulasFile = "formulas.json"
)

// ErrNotFound reports an unknown level, variant or missing content file.
var ErrNotFound = errors.New("levelstore: not found")

// Logger receives load diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option customizes a Store.
type Option func(*Store)

// WithLogger routes diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParallelism caps concurrent file loads in bulk operations.
func WithParallelism(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// Store reads level content from the split layout. Every document is read at
// most once until ClearCache; concurrent loads of the same file share one
// read. Returned documents are copies and may be modified by callers.
type Store struct {
	fsys        fs.FS
	logger      Logger
	parallelism int
	group       singleflight.Group

	mu    sync.RWMutex
	index *levels.LevelIndex
	docs  map[string]*doc.Map
}

// New returns a Store over fsys, rooted at the story directory.
func New(fsys fs.FS, opts ...Option) *Store {
	s := &Store{
		fsys:        fsys,
		logger:      nopLogger{},
		parallelism: 8,
		docs:        map[string]*doc.Map{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a Store over the story directory dir.
func Open(dir string, opts ...Option) *Store {
	return New(os.DirFS(dir), opts...)
}

// ClearCache drops every cached document.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	s.docs = map[string]*doc.Map{}
}

// LoadIndex returns the level index.
func (s *Store) LoadIndex(ctx context.Context) (*levels.LevelIndex, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	if index != nil {
		return index, nil
	}
	v, err := s.shared(ctx, "index:"+IndexFile, func() (any, error) {
		data, err := fs.ReadFile(s.fsys, IndexFile)
		if err != nil {
			return nil, s.readError(IndexFile, err)
		}
		index, err := levels.DecodeLevelIndex(data)
		if err != nil {
			return nil, fmt.Errorf("levelstore: %s: %w", IndexFile, err)
		}
		s.mu.Lock()
		s.index = index
		s.mu.Unlock()
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*levels.LevelIndex), nil
}

// LoadTheory returns the theory document of a base level.
func (s *Store) LoadTheory(ctx context.Context, id string) (*doc.Map, error) {
	return s.loadDoc(ctx, levels.TheoryFile(id))
}

// LoadPuzzle returns a puzzle document by its full id, such as
// level_01_easy.
func (s *Store) LoadPuzzle(ctx context.Context, puzzleID string) (*doc.Map, error) {
	return s.loadDoc(ctx, path.Join(levels.PuzzlesFolder, puzzleID+".json"))
}

// LoadTiers returns the tier metadata.
func (s *Store) LoadTiers(ctx context.Context) (*doc.Map, error) {
	return s.loadDoc(ctx, TiersFile)
}

// LoadGlossary returns the glossary document.
func (s *Store) LoadGlossary(ctx context.Context) (*doc.Map, error) {
	return s.loadDoc(ctx, GlossaryFile)
}

// LoadFormulas returns the formula document.
func (s *Store) LoadFormulas(ctx context.Context) (*doc.Map, error) {
	return s.loadDoc(ctx, FormulasFile)
}

// LoadLevel returns a base level: its index fields overlaid with its theory,
// without file references.
func (s *Store) LoadLevel(ctx context.Context, id string) (*doc.Map, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.level(ctx, entry)
}

// LoadAllLevels returns every base level in index order. Theory files are
// loaded concurrently.
func (s *Store) LoadAllLevels(ctx context.Context) ([]*doc.Map, error) {
	index, err := s.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*doc.Map, len(index.Levels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, entry := range index.Levels {
		i, entry := i, entry
		g.Go(func() error {
			level, err := s.level(gctx, entry)
			if err != nil {
				return err
			}
			out[i] = level
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadLevelsByTier returns the base levels of one tier in index order.
func (s *Store) LoadLevelsByTier(ctx context.Context, tier string) ([]*doc.Map, error) {
	all, err := s.LoadAllLevels(ctx)
	if err != nil {
		return nil, err
	}
	var out []*doc.Map
	for _, level := range all {
		if level.Text(levels.FieldTier) == tier {
			out = append(out, level)
		}
	}
	return out, nil
}

// LoadLevelVariant returns a base level deep-merged with one of its puzzles.
func (s *Store) LoadLevelVariant(ctx context.Context, id, variant string) (*doc.Map, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	file, ok := entry.PuzzleFiles.Lookup(variant)
	if !ok {
		return nil, fmt.Errorf("%w: level %s has no variant %q", ErrNotFound, id, variant)
	}
	base, err := s.level(ctx, entry)
	if err != nil {
		return nil, err
	}
	puzzle, err := s.loadDoc(ctx, file)
	if err != nil {
		return nil, err
	}
	return mergeVariant(base, variant, puzzle), nil
}

// Variant is one resolved variant of a level.
type Variant struct {
	Name string
	Data *doc.Map
}

// LoadLevelVariants returns every difficulty variant the index lists for a
// level, in canonical difficulty order.
func (s *Store) LoadLevelVariants(ctx context.Context, id string) ([]Variant, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Variant
	for _, name := range levels.VariantNames {
		if _, ok := entry.PuzzleFiles.Lookup(name); !ok {
			continue
		}
		data, err := s.LoadLevelVariant(ctx, id, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Variant{Name: name, Data: data})
	}
	return out, nil
}

// Preload warms the cache with every level, puzzle and shared document.
// Missing optional documents are logged, not returned.
func (s *Store) Preload(ctx context.Context) error {
	index, err := s.LoadIndex(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, entry := range index.Levels {
		entry := entry
		g.Go(func() error {
			if _, err := s.LoadTheory(gctx, entry.ID); err != nil {
				return err
			}
			for _, ref := range entry.PuzzleFiles.Refs() {
				if _, err := s.loadDoc(gctx, ref.File); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for _, name := range []string{TiersFile, GlossaryFile, FormulasFile} {
		name := name
		g.Go(func() error {
			if _, err := s.loadDoc(gctx, name); err != nil {
				s.logger.Printf("levelstore: preload %s: %v", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Store) entry(ctx context.Context, id string) (levels.IndexEntry, error) {
	index, err := s.LoadIndex(ctx)
	if err != nil {
		return levels.IndexEntry{}, err
	}
	for _, entry := range index.Levels {
		if entry.ID == id {
			return entry, nil
		}
	}
	return levels.IndexEntry{}, fmt.Errorf("%w: level %s", ErrNotFound, id)
}

func (s *Store) level(ctx context.Context, entry levels.IndexEntry) (*doc.Map, error) {
	theory, err := s.LoadTheory(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	level := entryDoc(entry)
	theory.Range(func(key string, v doc.Value) bool {
		level.Set(key, v)
		return true
	})
	return level, nil
}

// entryDoc renders the index fields of an entry; file references are left
// out.
func entryDoc(entry levels.IndexEntry) *doc.Map {
	m := doc.NewMap()
	m.Set(levels.FieldID, doc.String(entry.ID))
	for _, field := range []struct{ key, value string }{
		{levels.FieldTier, entry.Tier},
		{levels.FieldTitle, entry.Title},
		{"objective", entry.Objective},
		{levels.FieldDescription, entry.Description},
	} {
		if field.value != "" {
			m.Set(field.key, doc.String(field.value))
		}
	}
	if entry.IsIndex {
		m.Set(levels.FieldIsIndex, doc.Bool(true))
	}
	return m
}

// mergeVariant overlays a puzzle on its base level and stamps the variant
// identity.
func mergeVariant(base *doc.Map, variant string, puzzle *doc.Map) *doc.Map {
	merged := doc.MergeMaps(base, puzzle)
	id := puzzle.Text(levels.FieldID)
	if id == "" {
		id = levels.VariantID(base.Text(levels.FieldID), variant)
	}
	merged.Set(levels.FieldID, doc.String(id))
	merged.Set("baseId", doc.String(base.Text(levels.FieldID)))
	merged.Set("variant", doc.String(variant))
	return merged
}

func (s *Store) loadDoc(ctx context.Context, name string) (*doc.Map, error) {
	s.mu.RLock()
	cached, ok := s.docs[name]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}
	v, err := s.shared(ctx, "doc:"+name, func() (any, error) {
		data, err := fs.ReadFile(s.fsys, name)
		if err != nil {
			return nil, s.readError(name, err)
		}
		m, err := doc.DecodeMap(data)
		if err != nil {
			return nil, fmt.Errorf("levelstore: %s: %w", name, err)
		}
		s.mu.Lock()
		s.docs[name] = m
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*doc.Map).Clone(), nil
}

// shared runs fn once per key across concurrent callers. A caller whose
// context ends stops waiting; the read itself completes for the others.
func (s *Store) shared(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := s.group.DoChan(key, fn)
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) readError(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.logger.Printf("levelstore: read %s: %v", name, err)
	return fmt.Errorf("levelstore: read %s: %w", name, err)
}
