// Package segment splits documents into positioned segments, the unit of
// extraction for the rest of the pipeline.
//
// The segmenter prefers structural splitting: it recognizes section markers
// (heading lines and inline "Abstract:" style prefixes) and assigns each
// section its kind. Documents that yield too few structural units fall back to
// paragraph-boundary splitting. Positions are assigned in document order
// starting at 0 with no gaps, and the concatenated segment contents
// reconstruct the document text apart from the whitespace consumed at split
// boundaries.
package segment
