// Package hash provides the Adler-32 checksum used by the record file
// format for header and payload integrity checks.
package hash
