package consumer

import "sync/atomic"

// counters are process-local and reset only on restart.
type counters struct {
	processed    atomic.Uint64
	duplicates   atomic.Uint64
	failed       atomic.Uint64
	deadLettered atomic.Uint64
}

// Stats is a point-in-time snapshot of a consumer's counters. Safe to
// request concurrently with the running loop.
//
// Failed and DeadLettered are distinct categories: Failed counts decode
// and handoff/processing errors, DeadLettered counts records routed to the
// dead-letter sink. Validation failures increment only DeadLettered;
// handoff failures increment both.
type Stats struct {
	Processed    uint64   `json:"processed"`
	Duplicates   uint64   `json:"duplicates"`
	Failed       uint64   `json:"failed"`
	DeadLettered uint64   `json:"dead_lettered"`
	Running      bool     `json:"running"`
	Topics       []string `json:"topics"`
}

func (c *counters) snapshot(running bool, topics []string) Stats {
	return Stats{
		Processed:    c.processed.Load(),
		Duplicates:   c.duplicates.Load(),
		Failed:       c.failed.Load(),
		DeadLettered: c.deadLettered.Load(),
		Running:      running,
		Topics:       topics,
	}
}
