// Package report derives provenance answers from a recorded build.
//
// Every query is a read-only traversal of the access relation: which files a
// source file feeds into, which inputs a product came from, and which files
// are hot, unused or terminal artifacts. Input sets are never modified and
// results come back in ascending id order unless a ranking is documented.
package report
