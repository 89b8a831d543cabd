package doc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
	"github.com/NLarchive/circuit-sensei-sub001/internal/docdiff"
)

func mustDecode(t *testing.T, raw string) doc.Value {
	t.Helper()
	v, err := doc.Decode([]byte(raw))
	require.NoError(t, err)
	return v
}

func encode(t *testing.T, v doc.Value) string {
	t.Helper()
	out, err := doc.EncodeIndent(v, "")
	require.NoError(t, err)
	return string(out)
}

func TestMergeRules(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		override string
		want     string
	}{
		{"scalar replaces", `{"a":1}`, `{"a":2}`, `{"a":2}`},
		{"null nulls out", `{"a":1,"b":2}`, `{"a":null}`, `{"a":null,"b":2}`},
		{"array replaced wholesale", `{"g":["not","and","or"]}`, `{"g":["xor"]}`, `{"g":["xor"]}`},
		{"nested maps merge", `{"p":{"x":1,"y":2}}`, `{"p":{"y":3,"z":4}}`, `{"p":{"x":1,"y":3,"z":4}}`},
		{"new keys appended", `{"a":1}`, `{"b":2}`, `{"a":1,"b":2}`},
		{"map over scalar wins", `{"a":1}`, `{"a":{"x":1}}`, `{"a":{"x":1}}`},
		{"map over array wins", `{"a":[1,2]}`, `{"a":{"x":1}}`, `{"a":{"x":1}}`},
		{"scalar over map wins", `{"a":{"x":1}}`, `{"a":"flat"}`, `{"a":"flat"}`},
		{"map over null base wins", `{"a":null}`, `{"a":{"x":1}}`, `{"a":{"x":1}}`},
		{"empty override is identity", `{"a":1,"b":[1],"c":{"d":true}}`, `{}`, `{"a":1,"b":[1],"c":{"d":true}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := doc.Merge(mustDecode(t, test.base), mustDecode(t, test.override))
			require.Equal(t, test.want, encode(t, got))
		})
	}
}

func TestMergeTopLevelSentinels(t *testing.T) {
	base := mustDecode(t, `{"a":1}`)

	require.Equal(t, `{"a":1}`, encode(t, doc.Merge(base, doc.Absent())))
	require.True(t, doc.Merge(base, doc.Null()).IsNull())
	require.Equal(t, `7`, encode(t, doc.Merge(base, doc.Int(7))))
	require.Equal(t, `[1]`, encode(t, doc.Merge(base, doc.List(doc.Int(1)))))
}

func TestMergeIsIdempotent(t *testing.T) {
	base := mustDecode(t, `{"id":"level_01","maxGates":5,"details":{"a":1,"b":{"c":2}},"gates":["not"]}`)
	override := mustDecode(t, `{"maxGates":3,"details":{"b":{"d":4}},"gates":["and","or"],"extra":null}`)

	once := doc.Merge(base, override)
	twice := doc.Merge(once, override)
	require.True(t, docdiff.Equal(once, twice))
	require.Equal(t, encode(t, once), encode(t, twice))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := mustDecode(t, `{"p":{"x":1},"g":["a"]}`)
	override := mustDecode(t, `{"p":{"y":2},"g":["b"]}`)
	baseBefore := encode(t, base)
	overrideBefore := encode(t, override)

	merged := doc.Merge(base, override)
	merged.Map().Value("p").Map().Set("x", doc.Int(99))
	merged.Map().Set("new", doc.Bool(true))

	require.Equal(t, baseBefore, encode(t, base))
	require.Equal(t, overrideBefore, encode(t, override))
}

func TestMergeKeepsBaseKeyOrder(t *testing.T) {
	base := mustDecode(t, `{"id":"x","title":"T","maxGates":5}`)
	merged := doc.Merge(base, mustDecode(t, `{"xpReward":10,"maxGates":2}`))
	require.Equal(t, []string{"id", "title", "maxGates", "xpReward"}, merged.Map().Keys())
}
