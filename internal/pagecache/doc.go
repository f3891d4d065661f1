// Package pagecache implements a fixed-capacity LRU page cache over the
// block I/O layer. It serves byte-range reads and writes of arbitrary
// length and offset by translating them into page-level operations,
// honoring fetch-before-write for partial pages.
//
// Lookup, insert and eviction are O(1): resident frames live in a
// hashmap keyed by file page number and in a doubly-linked recency list
// whose front is the most recently used frame.
package pagecache
