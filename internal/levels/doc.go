// Package levels resolves the level manifest: base levels plus sparse
// per-difficulty overrides are expanded into fully materialized variant
// documents. The offline generator and the runtime level store both call
// into this package so the two can never diverge.
package levels
