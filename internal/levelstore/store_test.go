package levelstore

import (
	"context"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/docdiff"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

const fixtureManifest = `{
  "version": "1.0.0",
  "levels": [
    {"id": "level_00", "tier": "intro", "title": "Welcome", "isIndex": true, "introText": "hi"},
    {
      "id": "level_01", "tier": "gates", "title": "NOT Gate", "objective": "Invert",
      "introText": "A NOT gate flips its input.",
      "physicsVisual": {"type": "inverter"},
      "availableGates": ["NOT"], "inputs": 1, "maxGates": 5, "xpReward": 100,
      "variants": {"easy": {}, "hard": {"maxGates": 2, "xpReward": 150}}
    },
    {"id": "level_02", "tier": "gates", "title": "AND Gate", "maxGates": 4}
  ]
}`

func fixture(t *testing.T) (fstest.MapFS, *levels.Manifest) {
	t.Helper()
	m, err := levels.ParseManifest([]byte(fixtureManifest))
	require.NoError(t, err)
	split, err := levels.SplitManifest(m)
	require.NoError(t, err)

	fsys := fstest.MapFS{}
	indexData, err := split.Index.Encode()
	require.NoError(t, err)
	fsys[IndexFile] = &fstest.MapFile{Data: indexData}
	for _, files := range [][]levels.SplitFile{split.Theory, split.Puzzles} {
		for _, f := range files {
			data, err := doc.Encode(doc.FromMap(f.Data))
			require.NoError(t, err)
			fsys[f.Path] = &fstest.MapFile{Data: data}
		}
	}
	fsys[TiersFile] = &fstest.MapFile{Data: []byte(`{"intro":{"name":"Intro"},"gates":{"name":"Gates"}}`)}
	return fsys, m
}

// countingFS counts file opens per name.
type countingFS struct {
	fs.FS
	mu    sync.Mutex
	opens map[string]int
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.FS.Open(name)
}

func (c *countingFS) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

func TestLoadLevelMergesIndexAndTheory(t *testing.T) {
	fsys, _ := fixture(t)
	store := New(fsys)

	level, err := store.LoadLevel(context.Background(), "level_01")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "tier", "title", "objective", "introText", "physicsVisual"}, level.Keys())
	require.False(t, level.Has("theoryFile"))
	require.False(t, level.Has("puzzleFiles"))
}

func TestLoadLevelVariant(t *testing.T) {
	fsys, m := fixture(t)
	store := New(fsys)
	ctx := context.Background()

	hard, err := store.LoadLevelVariant(ctx, "level_01", "hard")
	require.NoError(t, err)
	require.Equal(t, "level_01_hard", hard.Text("id"))
	require.Equal(t, "level_01", hard.Text("baseId"))
	require.Equal(t, "hard", hard.Text("variant"))
	require.Equal(t, "inverter", hard.Value("physicsVisual").Map().Text("type"))

	resolver, err := NewManifestResolver(m)
	require.NoError(t, err)
	resolved, err := resolver.LoadLevelVariant(ctx, "level_01", "hard")
	require.NoError(t, err)
	for _, field := range levels.PuzzleFields {
		require.True(t, docdiff.Equal(resolved.Value(field), hard.Value(field)), field)
	}

	_, err = store.LoadLevelVariant(ctx, "level_01", "medium")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadLevelVariant(ctx, "level_99", "easy")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadLevelVariantsInDifficultyOrder(t *testing.T) {
	fsys, _ := fixture(t)
	variants, err := New(fsys).LoadLevelVariants(context.Background(), "level_01")
	require.NoError(t, err)
	require.Len(t, variants, 2)
	require.Equal(t, "easy", variants[0].Name)
	require.Equal(t, "hard", variants[1].Name)

	none, err := New(fsys).LoadLevelVariants(context.Background(), "level_00")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestLoadAllLevelsKeepsIndexOrder(t *testing.T) {
	fsys, _ := fixture(t)
	store := New(fsys, WithParallelism(2))
	all, err := store.LoadAllLevels(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, level := range all {
		ids = append(ids, level.Text("id"))
	}
	require.Equal(t, []string{"level_00", "level_01", "level_02"}, ids)

	gates, err := store.LoadLevelsByTier(context.Background(), "gates")
	require.NoError(t, err)
	require.Len(t, gates, 2)
}

func TestCacheAndClear(t *testing.T) {
	fsys, _ := fixture(t)
	counting := &countingFS{FS: fsys, opens: map[string]int{}}
	store := New(counting)
	ctx := context.Background()
	theory := levels.TheoryFile("level_01")

	first, err := store.LoadTheory(ctx, "level_01")
	require.NoError(t, err)
	first.Set("introText", doc.String("mutated"))

	second, err := store.LoadTheory(ctx, "level_01")
	require.NoError(t, err)
	require.Equal(t, "A NOT gate flips its input.", second.Text("introText"))
	require.Equal(t, 1, counting.count(theory))

	store.ClearCache()
	_, err = store.LoadTheory(ctx, "level_01")
	require.NoError(t, err)
	require.Equal(t, 2, counting.count(theory))
}

func TestConcurrentLoadsShareResult(t *testing.T) {
	fsys, _ := fixture(t)
	store := New(fsys)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.LoadLevelVariant(context.Background(), "level_01", "easy")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestPreloadToleratesMissingSharedDocs(t *testing.T) {
	fsys, _ := fixture(t)
	logger := &lineLogger{}
	store := New(fsys, WithLogger(logger))
	require.NoError(t, store.Preload(context.Background()))
	require.Len(t, logger.lines(), 2, "glossary and formulas are missing")

	_, err := store.LoadGlossary(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	tiers, err := store.LoadTiers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"intro", "gates"}, tiers.Keys())
}

func TestCancelledContext(t *testing.T) {
	fsys, _ := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fsys).LoadLevel(ctx, "level_01")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMissingIndex(t *testing.T) {
	_, err := New(fstest.MapFS{}).LoadIndex(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManifestResolver(t *testing.T) {
	_, m := fixture(t)
	resolver, err := NewManifestResolver(m)
	require.NoError(t, err)
	ctx := context.Background()

	level, err := resolver.LoadLevel(ctx, "level_01")
	require.NoError(t, err)
	require.False(t, level.Has("variants"))

	generated, err := resolver.ResolveAll()
	require.NoError(t, err)
	require.Len(t, generated, 2)
	for _, g := range generated {
		runtime, err := resolver.LoadLevelVariant(ctx, g.BaseID, g.Variant)
		require.NoError(t, err)
		require.Empty(t, docdiff.Find(doc.FromMap(g.Data), doc.FromMap(runtime)))
	}

	_, err = resolver.LoadLevelVariant(ctx, "level_02", "easy")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := resolver.LoadAllLevels(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestManifestResolverRejectsInvalidManifest(t *testing.T) {
	m, err := levels.ParseManifest([]byte(`{"levels":[{"id":"x"}]}`))
	require.NoError(t, err)
	_, err = NewManifestResolver(m)
	require.Error(t, err)
}

type lineLogger struct {
	mu  sync.Mutex
	got []string
}

func (l *lineLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, format)
}

func (l *lineLogger) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}
