package levels_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/docdiff"
	"github.com/NLarchive/circuit-sensei-sub001/internal/levels"
)

const sampleManifest = `{
  "$schema": "./levels-manifest.schema.json",
  "version": "1.0.0",
  "levels": [
    {
      "id": "level_00",
      "tier": "intro",
      "title": "Welcome",
      "isIndex": true
    },
    {
      "id": "level_01",
      "tier": "gates",
      "title": "NOT Gate",
      "availableGates": ["NOT"],
      "inputs": 1,
      "maxGates": 5,
      "xpReward": 100,
      "targetTruthTable": [[0, 1], [1, 0]],
      "physicsVisual": {"type": "inverter", "labels": ["in", "out"]},
      "variants": {
        "easy": {},
        "hard": {"maxGates": 2, "xpReward": 150}
      }
    },
    {
      "id": "level_02",
      "tier": "gates",
      "title": "AND Gate",
      "availableGates": ["AND", "NOT"],
      "inputs": 2,
      "maxGates": 4,
      "variants": {
        "medium": {"physicsVisual": {"labels": ["a", "b"]}}
      }
    }
  ]
}`

func parse(t *testing.T, raw string) *levels.Manifest {
	t.Helper()
	m, err := levels.ParseManifest([]byte(raw))
	require.NoError(t, err)
	return m
}

func TestGenerateVariantAppliesOverride(t *testing.T) {
	m := parse(t, sampleManifest)
	base, ok := m.Level("level_01")
	require.True(t, ok)
	before, err := doc.Encode(doc.FromMap(base))
	require.NoError(t, err)

	hard, err := levels.GenerateVariant(base, "hard", doc.FromMap(mustMap(t, `{"maxGates":3}`)))
	require.NoError(t, err)
	require.Equal(t, "level_01_hard", hard.Text("id"))
	gates, _ := hard.Value("maxGates").AsNumber()
	require.Equal(t, 3.0, gates)
	require.False(t, hard.Has("variants"))
	require.Equal(t, "NOT Gate", hard.Text("title"))

	after, err := doc.Encode(doc.FromMap(base))
	require.NoError(t, err)
	require.Equal(t, string(before), string(after), "base must not be mutated")
}

func TestGenerateVariantRejectsScalarOverride(t *testing.T) {
	m := parse(t, sampleManifest)
	base, _ := m.Level("level_01")
	_, err := levels.GenerateVariant(base, "hard", doc.Int(3))
	require.Error(t, err)
}

func TestGenerateVariantOutputDoesNotAliasBase(t *testing.T) {
	m := parse(t, sampleManifest)
	base, _ := m.Level("level_01")
	easy, err := levels.GenerateVariant(base, "easy", doc.FromMap(doc.NewMap()))
	require.NoError(t, err)

	easy.Value("physicsVisual").Map().Set("type", doc.String("changed"))
	require.Equal(t, "inverter", base.Value("physicsVisual").Map().Text("type"))
}

func TestGenerateAllVariants(t *testing.T) {
	m := parse(t, sampleManifest)
	generated, err := levels.GenerateAllVariants(m)
	require.NoError(t, err)

	var names []string
	for _, g := range generated {
		names = append(names, g.FileName)
	}
	require.Equal(t, []string{"level_01_easy.json", "level_01_hard.json", "level_02_medium.json"}, names)

	base, _ := m.Level("level_01")
	expected := base.Clone()
	expected.Delete("variants")
	expected.Set("id", doc.String("level_01_easy"))
	require.True(t, docdiff.Equal(doc.FromMap(expected), doc.FromMap(generated[0].Data)),
		"empty override must reproduce the base: %v", docdiff.Find(doc.FromMap(expected), doc.FromMap(generated[0].Data)))

	hard := generated[1].Data
	gates, _ := hard.Value("maxGates").AsNumber()
	xp, _ := hard.Value("xpReward").AsNumber()
	require.Equal(t, 2.0, gates)
	require.Equal(t, 150.0, xp)

	medium := generated[2].Data.Value("physicsVisual").Map()
	require.Equal(t, []string{"labels"}, medium.Keys())
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := levels.GenerateAllVariants(parse(t, sampleManifest))
	require.NoError(t, err)
	second, err := levels.GenerateAllVariants(parse(t, sampleManifest))
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		a, err := first[i].Encode()
		require.NoError(t, err)
		b, err := second[i].Encode()
		require.NoError(t, err)
		require.Equal(t, string(a), string(b))
	}
}

func TestGeneratedEncodingLeadsWithSchema(t *testing.T) {
	generated, err := levels.GenerateAllVariants(parse(t, sampleManifest))
	require.NoError(t, err)
	data, err := generated[1].Encode()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "{\n  \"$schema\": \"./level-game.schema.json\",\n  \"id\": \"level_01_hard\","),
		"unexpected prefix: %s", data)
	require.False(t, strings.HasSuffix(string(data), "\n"))
}

func TestGeneratedSurvivesDiskRoundTrip(t *testing.T) {
	generated, err := levels.GenerateAllVariants(parse(t, sampleManifest))
	require.NoError(t, err)
	for _, g := range generated {
		data, err := g.Encode()
		require.NoError(t, err)
		back, err := doc.Decode(data)
		require.NoError(t, err)
		require.Empty(t, docdiff.Find(back, doc.FromMap(g.WithSchema())), g.FileName)
	}
}

func TestValidateManifest(t *testing.T) {
	require.Empty(t, levels.ValidateManifest(parse(t, sampleManifest)))

	bad := parse(t, `{
  "levels": [
    {"tier": "x", "title": "no id"},
    {"id": "level_03"},
    {"id": "level_04", "tier": "x", "title": "t", "variants": {"extreme": {}, "hard": 3}},
    {"id": "level_04", "tier": "x", "title": "dup"},
    7
  ]
}`)
	var messages []string
	for _, err := range levels.ValidateManifest(bad) {
		messages = append(messages, err.Error())
	}
	require.Equal(t, []string{
		"missing manifest version",
		"levels[0]: level missing id",
		"level_03: missing tier",
		"level_03: missing title",
		"level_04: unknown variant 'extreme'",
		"level_04: variant 'hard' override must be an object",
		"level_04: duplicate id (first seen at levels[2])",
		"levels[4]: entry must be an object",
	}, messages)

	notArray := parse(t, `{"version": "1.0.0", "levels": {}}`)
	errs := levels.ValidateManifest(notArray)
	require.Len(t, errs, 1)
	require.EqualError(t, errs[0], "levels must be an array")
}

func mustMap(t *testing.T, raw string) *doc.Map {
	t.Helper()
	m, err := doc.DecodeMap([]byte(raw))
	require.NoError(t, err)
	return m
}
