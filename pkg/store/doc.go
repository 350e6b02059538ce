// Package store owns all mutable per-session state: the in-memory index
// cache over durable on-disk indexes, the session metadata recorded at index
// creation, and the in-process conversation histories.
//
// Invariants:
//   - At most one index per session key is cached at a time.
//   - The cache is read-through: on a miss the on-disk index, if present, is
//     loaded back into the cache. Disk is written once at index creation and
//     never synced back.
//   - History and index lifetimes are independent; only Delete removes both.
//   - Callers must serialize chat turns on one session key via LockSession.
package store
