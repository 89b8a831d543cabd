// Package levelstore loads level content at runtime. Store reads the split
// layout (index, theory and puzzle files) from any fs.FS and caches what it
// reads; ManifestResolver materializes levels straight from the manifest
// with the same resolver the offline generator uses.
package levelstore
