// Package exif extracts photo metadata with exiftool.
//
// Key types:
//   - Data: category -> field -> value, the shape persisted on photos
//   - Extractor: the interface the pipeline depends on
//   - Tool: the exiftool-backed Extractor
//
// Raw exiftool fields pass through Filter (drops nil, empty, "undef" and
// binary-looking values) and Categorize, which applies an ordered rule list
// with "other" as the catch-all. Summary flattens the handful of fields the
// catalog copies into a photo's metadata map.
package exif
