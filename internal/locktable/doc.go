// Package locktable provides reference-counted reader/writer locks keyed
// by file offset. Entries are created on first acquisition and removed
// once the last holder releases, so the table stays proportional to the
// number of records under concurrent access, not to the file.
package locktable
