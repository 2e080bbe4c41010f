// Package fs implements the durable stores on the local file system.
//
// Both stores keep one payload file and one meta file per sample, named by
// sample id. The meta file is the commit point and every meta write goes
// through atomic file replacement (write temp, fsync, rename), so an
// unclean shutdown never exposes a partial entry. The buffer store
// additionally persists its id sequence so restarts cannot re-issue ids.
package fs
