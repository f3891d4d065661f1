package recordfile_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/recordfile"
)

func Example() {
	dir, err := os.MkdirTemp("", "recordfile")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := recordfile.Open(filepath.Join(dir, "example.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	for _, payload := range []string{"alpha", "beta", "gamma"} {
		if _, err := store.CreateRecord([]byte(payload)); err != nil {
			log.Fatal(err)
		}
	}

	cursor, err := store.GetFirstRecord()
	if err != nil {
		log.Fatal(err)
	}
	for {
		data, err := cursor.Data()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(data))
		if !cursor.Next() {
			break
		}
	}

	fmt.Println("records:", store.TotalRecords())
	// Output:
	// alpha
	// beta
	// gamma
	// records: 3
}

func Example_update() {
	dir, err := os.MkdirTemp("", "recordfile")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := recordfile.Open(filepath.Join(dir, "example.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	cursor, err := store.CreateRecord([]byte("short"))
	if err != nil {
		log.Fatal(err)
	}

	// Growing past the slot capacity relocates the record; the cursor
	// follows it to the new offset.
	if err := cursor.SetData([]byte("a payload that no longer fits the slot")); err != nil {
		log.Fatal(err)
	}

	data, err := cursor.Data()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
	fmt.Println("free slots:", store.TotalFreeRecords())
	// Output:
	// a payload that no longer fits the slot
	// free slots: 1
}
