package docdiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

func decode(t *testing.T, raw string) doc.Value {
	t.Helper()
	v, err := doc.Decode([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	a := decode(t, `{"a":1,"b":{"x":[1,2],"y":null}}`)
	b := decode(t, `{"b":{"y":null,"x":[1,2]},"a":1}`)
	require.True(t, Equal(a, b))
	require.Empty(t, Find(a, b))
}

func TestEqualIsLengthAndKindSensitive(t *testing.T) {
	require.False(t, Equal(decode(t, `[1,2]`), decode(t, `[1,2,3]`)))
	require.False(t, Equal(decode(t, `{"a":1}`), decode(t, `{"a":"1"}`)))
	require.False(t, Equal(decode(t, `{"a":1}`), decode(t, `{"a":1,"b":2}`)))
	require.False(t, Equal(decode(t, `null`), decode(t, `{}`)))
}

func TestFindReportsEveryDifference(t *testing.T) {
	a := decode(t, `{"id":"x","gone":1,"n":1,"t":"s","list":[1,2,3],"shape":[1],"deep":{"k":[{"v":1}]}}`)
	b := decode(t, `{"id":"x","n":2,"t":5,"list":[1,9],"shape":{"0":1},"deep":{"k":[{"v":2}]},"added":true}`)

	diffs := Find(a, b)
	got := map[string]Kind{}
	for _, d := range diffs {
		got[d.Path] = d.Kind
	}
	require.Equal(t, map[string]Kind{
		"gone":        KindMissingInB,
		"n":           KindValueMismatch,
		"t":           KindTypeMismatch,
		"list":        KindLengthMismatch,
		"list[1]":     KindValueMismatch,
		"shape":       KindArrayMismatch,
		"deep.k[0].v": KindValueMismatch,
		"added":       KindMissingInA,
	}, got)
	require.Len(t, diffs, 8)
	require.Equal(t, "added", diffs[len(diffs)-1].Path)
}

func TestFindCarriesValues(t *testing.T) {
	diffs := Find(decode(t, `{"maxGates":5}`), decode(t, `{"maxGates":3}`))
	require.Len(t, diffs, 1)
	a, _ := diffs[0].A.AsNumber()
	b, _ := diffs[0].B.AsNumber()
	require.Equal(t, 5.0, a)
	require.Equal(t, 3.0, b)
}

func TestCompareDirs(t *testing.T) {
	gen := t.TempDir()
	snap := t.TempDir()
	write := func(dir, name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write(gen, "level_01_easy.json", `{"id":"level_01_easy","maxGates":5}`)
	write(snap, "level_01_easy.json", `{"maxGates":5,"id":"level_01_easy"}`)
	write(gen, "level_01_hard.json", `{"id":"level_01_hard","maxGates":2}`)
	write(snap, "level_01_hard.json", `{"id":"level_01_hard","maxGates":3}`)
	write(gen, "level_02_easy.json", `{"id":"level_02_easy"}`)
	write(snap, "level_09_easy.json", `{"id":"level_09_easy"}`)
	write(gen, "notes.txt", "ignored")

	report, err := CompareDirs(gen, snap)
	require.NoError(t, err)
	require.Equal(t, 1, report.Passed())
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 2, report.Skipped())
	require.True(t, report.HasDrift())
	require.Equal(t, 3, report.Generated)
	require.Equal(t, 3, report.Snapshot)
}

func TestCompareDirsRequiresSnapshot(t *testing.T) {
	_, err := CompareDirs(t.TempDir(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
