// Package docdiff compares level documents structurally. It is the content
// pipeline's regression net: freshly generated files are compared with a
// trusted snapshot and every discrepancy is reported with its path.
package docdiff

import (
	"strconv"

	"github.com/NLarchive/circuit-sensei-sub001/internal/doc"
)

// Kind classifies a difference.
type Kind string

const (
	KindMissingInA     Kind = "missing_in_a"
	KindMissingInB     Kind = "missing_in_b"
	KindValueMismatch  Kind = "value_mismatch"
	KindTypeMismatch   Kind = "type_mismatch"
	KindArrayMismatch  Kind = "array_mismatch"
	KindLengthMismatch Kind = "length_mismatch"
)

// Difference is one discrepancy between a and b.
type Difference struct {
	Path string
	Kind Kind
	// A and B hold the values at Path; absent when the side is missing.
	A doc.Value
	B doc.Value
}

// Equal reports whether a and b are structurally equal. Object key order is
// ignored; arrays compare element-wise.
func Equal(a, b doc.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case doc.KindAbsent, doc.KindNull:
		return true
	case doc.KindBool:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		return x == y
	case doc.KindNumber:
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return x == y
	case doc.KindString:
		x, _ := a.AsString()
		y, _ := b.AsString()
		return x == y
	case doc.KindList:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !Equal(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case doc.KindMap:
		am, bm := a.Map(), b.Map()
		if am.Len() != bm.Len() {
			return false
		}
		equal := true
		am.Range(func(key string, av doc.Value) bool {
			bv, ok := bm.Get(key)
			if !ok || !Equal(av, bv) {
				equal = false
			}
			return equal
		})
		return equal
	}
	return false
}

// Find returns every difference between a and b. It never stops at the first
// one. Object keys are visited in a's order followed by keys only in b.
func Find(a, b doc.Value) []Difference {
	return find(nil, a, b, "")
}

func find(diffs []Difference, a, b doc.Value, path string) []Difference {
	if a.IsList() != b.IsList() && (a.IsList() || a.IsMap()) && (b.IsList() || b.IsMap()) {
		return append(diffs, Difference{Path: path, Kind: KindArrayMismatch, A: a, B: b})
	}
	if a.Kind() != b.Kind() {
		return append(diffs, Difference{Path: path, Kind: KindTypeMismatch, A: a, B: b})
	}
	switch a.Kind() {
	case doc.KindList:
		if a.Len() != b.Len() {
			diffs = append(diffs, Difference{Path: path, Kind: KindLengthMismatch, A: a, B: b})
		}
		n := min(a.Len(), b.Len())
		for i := 0; i < n; i++ {
			diffs = find(diffs, a.Index(i), b.Index(i), path+"["+strconv.Itoa(i)+"]")
		}
		return diffs
	case doc.KindMap:
		am, bm := a.Map(), b.Map()
		am.Range(func(key string, av doc.Value) bool {
			next := joinPath(path, key)
			bv, ok := bm.Get(key)
			if !ok {
				diffs = append(diffs, Difference{Path: next, Kind: KindMissingInB, A: av})
				return true
			}
			diffs = find(diffs, av, bv, next)
			return true
		})
		bm.Range(func(key string, bv doc.Value) bool {
			if !am.Has(key) {
				diffs = append(diffs, Difference{Path: joinPath(path, key), Kind: KindMissingInA, B: bv})
			}
			return true
		})
		return diffs
	default:
		if !Equal(a, b) {
			diffs = append(diffs, Difference{Path: path, Kind: KindValueMismatch, A: a, B: b})
		}
		return diffs
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
