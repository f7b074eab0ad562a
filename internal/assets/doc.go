// Package assets stores original photo files and the images derived from
// them.
//
// Originals live under originals/<photo id>/, resized variants under
// variants/<photo id>/<name>.jpg and face crops under faces/<photo id>/. Every
// write goes through a temp file and rename, so concurrent workers rendering
// the same variant are safe and readers never see partial output. Variants
// and crops are rendered on first request and served from disk afterwards.
package assets
