// Package dupes finds byte-identical files among a flat set of paths.
//
// Candidates pass through three filters, cheapest first: file size, a digest
// of the leading bytes, and a digest of the whole content. Each stage only
// sees files that still share a key with another file, so most files are
// never read in full. Work inside a stage may run on several goroutines; a
// stage's buckets are built only after all of its files are done.
package dupes
