// Package ordering enforces in-order application of full-state updates within
// a partition.
//
// It complements the dedup guard for side effects that are "apply the latest
// full-state snapshot" rather than "perform a one-shot action" - for example
// propagating the current contents of a shopping cart instead of a delta.
// Deduplication alone is not enough there: two distinct updates for the same
// entity may overtake each other between retries and load-balanced instances,
// and applying them out of order leaves the consumer with a stale final state.
//
// Three collaborators cover the sender and consumer side:
//   - Resolver derives a deterministic partition id from a request
//   - Sequencer attaches a strictly increasing per-partition sequence number
//     to every update on the sender side
//   - Applier applies updates on the consumer side, either buffering
//     out-of-order arrivals until the gap closes (StrictOrder) or discarding
//     updates older than the last applied one (LatestWins)
//
// Ordering is guaranteed only within one partition. No ordering is promised
// or enforced across different partitions.
package ordering
