package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, publishers and queues return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: key does not exist in a cache or store
// - ErrUnavailable: backing service temporarily unavailable
// - ErrQueueFull: a bounded queue refused new work
// - ErrClosed: component was shut down and accepts no more work
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrQueueFull   = errors.New("queue full")
	ErrClosed      = errors.New("closed")
)
