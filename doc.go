// Package recordfile provides a single-file, thread-safe embedded storage
// engine for variable-length binary records.
//
// Records of up to 4 GiB each live in one backing file behind an LRU page
// cache. They form a doubly-linked list in insertion order; removed
// records are chained into an on-disk free list and their slots are
// recycled by later allocations. Record headers and payloads are
// protected by Adler-32 checksums.
//
// # Quick Start
//
//	store, err := recordfile.Open("./data.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	cursor, err := store.CreateRecord([]byte("hello"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	data, err := cursor.Data()
//
// # Traversal
//
//	for cursor, err := store.GetFirstRecord(); err == nil; {
//		data, _ := cursor.Data()
//		process(data)
//		if !cursor.Next() {
//			break
//		}
//	}
//
// The store is safe for concurrent use by many goroutines. Individual
// cursors are not; give each goroutine its own cursor.
package recordfile
