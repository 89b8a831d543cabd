// Package doc models level documents as a closed set of value kinds: null,
// bool, number, string, list and map, plus an "absent" zero value used for
// fields that are not present at all. Maps keep key insertion order so a
// document can be written back byte-for-byte in the order it was authored.
package doc
