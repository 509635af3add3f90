// Command intake scans directory trees, fingerprints their files, and
// reports which ones were already uploaded.
package main
