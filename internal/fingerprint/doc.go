// Package fingerprint computes the content identity used for duplicate
// detection: chunked SHA-256 over the file's bytes with the byte size
// appended as a suffix.
package fingerprint
