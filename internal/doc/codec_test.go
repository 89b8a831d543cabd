package doc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

func TestDecodeKeepsKeyOrder(t *testing.T) {
	m, err := doc.DecodeMap([]byte(`{"zeta":1,"alpha":{"y":1,"b":2},"mid":[{"k2":1,"k1":2}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	require.Equal(t, []string{"y", "b"}, m.Value("alpha").Map().Keys())
}

func TestEncodeMatchesStringifyLayout(t *testing.T) {
	m := doc.NewMap()
	m.Set("id", doc.String("level_01"))
	m.Set("maxGates", doc.Int(5))
	m.Set("ratio", doc.Number(0.5))
	m.Set("gates", doc.Strings("not", "and"))
	m.Set("empty", doc.List())
	m.Set("nested", doc.FromMap(doc.NewMap()))
	m.Set("skip", doc.Absent())
	m.Set("none", doc.Null())

	out, err := doc.Encode(doc.FromMap(m))
	require.NoError(t, err)
	want := `{
  "id": "level_01",
  "maxGates": 5,
  "ratio": 0.5,
  "gates": [
    "not",
    "and"
  ],
  "empty": [],
  "nested": {},
  "none": null
}`
	require.Equal(t, want, string(out))
}

func TestEncodeNumbersLikeJavaScript(t *testing.T) {
	cases := map[float64]string{
		1:        "1",
		-3:       "-3",
		1000000:  "1000000",
		0.1:      "0.1",
		1e21:     "1e+21",
		1.5e-7:   "1.5e-7",
		123.4567: "123.4567",
	}
	for in, want := range cases {
		out, err := doc.EncodeIndent(doc.Number(in), "")
		require.NoError(t, err)
		require.Equal(t, want, string(out), "input %v", in)
	}
}

func TestEncodeEscapesLikeJavaScript(t *testing.T) {
	out, err := doc.EncodeIndent(doc.String("a\"b\\c\n<tag> & é \x01"), "")
	require.NoError(t, err)
	require.Equal(t, `"a\"b\\c\n<tag> & é \u0001"`, string(out))
}

func TestEncodeNestedLayout(t *testing.T) {
	v, err := doc.Decode([]byte(`{"a<b":[{"x":1,"y":[]},{}],"n":{"k":"&"}}`))
	require.NoError(t, err)
	out, err := doc.Encode(v)
	require.NoError(t, err)
	require.Equal(t, `{
  "a<b": [
    {
      "x": 1,
      "y": []
    },
    {}
  ],
  "n": {
    "k": "&"
  }
}`, string(out))

	compact, err := doc.EncodeIndent(v, "")
	require.NoError(t, err)
	require.Equal(t, `{"a<b":[{"x":1,"y":[]},{}],"n":{"k":"&"}}`, string(compact))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	raw := `{
  "id": "level_02",
  "targetTruthTable": [
    {
      "in": [
        0,
        1
      ],
      "out": [
        1
      ]
    }
  ],
  "flag": false,
  "note": null
}`
	v, err := doc.Decode([]byte(raw))
	require.NoError(t, err)
	out, err := doc.Encode(v)
	require.NoError(t, err)
	require.Equal(t, raw, string(out))
}

func TestDecodeErrors(t *testing.T) {
	_, err := doc.Decode([]byte("   "))
	require.ErrorIs(t, err, doc.ErrEmpty)

	_, err = doc.Decode([]byte(`{"a":`))
	require.Error(t, err)

	_, err = doc.DecodeMap([]byte(`[1,2]`))
	require.ErrorIs(t, err, doc.ErrNotObject)

	_, err = doc.Encode(doc.Absent())
	require.ErrorIs(t, err, doc.ErrAbsent)
}

func TestWithLeadingPutsKeyFirst(t *testing.T) {
	m := doc.NewMap()
	m.Set("id", doc.String("a"))
	m.Set("$schema", doc.String("mine"))

	out := m.WithLeading("$schema", doc.String("./level-game.schema.json"))
	require.Equal(t, []string{"$schema", "id"}, out.Keys())
	require.Equal(t, "mine", out.Text("$schema"))

	fresh := doc.NewMap()
	fresh.Set("id", doc.String("b"))
	require.Equal(t, "./x.json", fresh.WithLeading("$schema", doc.String("./x.json")).Text("$schema"))
}
