// Package fs abstracts the file system operations the storage engine
// needs, so that tests can inject faults (short reads, failing syncs)
// without touching a real disk driver.
package fs
