// Package queue defines message payloads exchanged over the message broker
// and the background consumer that acts on them.
package queue

// InvalidationQueue is the durable queue carrying cache invalidations.
const InvalidationQueue = "cache.invalidate"

// InvalidationEvent asks consumers to delete cache keys whose source record
// changed.  It is published when a write succeeded but the immediate cache
// delete failed, so a later consumer can finish the job.
type InvalidationEvent struct {
	ID        string   `json:"id"`
	Keys      []string `json:"keys"`
	Reason    string   `json:"reason"`
	CreatedAt string   `json:"created_at"`
}
