// Package blockio implements page-aligned random access I/O against a
// single file. It is the leaf layer of the storage engine: the page cache
// sits on top of it and the record store never touches it directly.
package blockio
