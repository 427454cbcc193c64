// Package queue implements the notification queue manager.
//
// The manager receives notifications from a transport, drops duplicates using
// two guards (a short pending-key debounce and a longer recency window over
// the live queue), keeps the accepted notifications in arrival order and
// broadcasts a copy of the queue to every registered listener after each
// change.
//
// Broadcasts never run inline with the mutating call. They are posted to a
// single dispatch goroutine in mutation order, so listeners observe queue
// states in the order the mutations were issued and may safely call back
// into the manager.
package queue
