// Package detector locates reference icons in screenshots.
//
// A Matcher slides each scaled reference over the screenshot and emits every
// offset whose zero-mean normalized cross-correlation reaches the template's
// threshold. Suppress reduces those raw candidates to one detection per icon
// occurrence, independently per template, and RegionFor derives the rectangle
// next to a detection that is handed to the text reader.
package detector
