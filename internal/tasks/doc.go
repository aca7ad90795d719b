// Package tasks keeps a registry of tracked playlists in step with the playlist service and texts the
// owner when a collaborator adds a track.
//
// # Core Operations
//
//  1. [Diff] / [DiffWith] : compare two snapshots of one playlist
//     - Equal version markers short-circuit to [Unchanged]
//     - Otherwise set difference in both directions; equal sets are [ReorderedOnly]
//     - Pure: no I/O, inputs are never mutated
//
//  2. [Decide] : turn a [ChangeReport] into [Notification] values
//     - One per added track whose adder is not self
//     - Removals never notify
//
//  3. [Reconciler.Cycle] : one pass of the watch
//     - Without a registry: scan the account's playlists page by page and snapshot every configured name
//     - With a registry: fetch, diff, notify and replace each tracked snapshot, then persist the registry
//
//  4. [Reconciler.Run] : [Reconciler.Cycle] on a fixed interval until shutdown or auth failure
//
// # Failures
//
// An unavailable access token is fatal ([IsFatal]). Everything else is scoped to the cycle or to the
// playlist: a failed fetch keeps the stored snapshot, a failed send is counted and the cycle moves on.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, the playlist name and optional data.
// Updates use select with default to prevent blocking.
package tasks
