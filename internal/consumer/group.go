package consumer

import (
	"errors"
	"sync"
)

// Group supervises N consumer instances sharing a logical group id. Each
// instance polls its assigned partitions on its own goroutine; partition
// balancing itself is the broker's job.
type Group struct {
	consumers []*Consumer
}

func NewGroup(cs ...*Consumer) *Group {
	return &Group{consumers: cs}
}

// StartAll runs every consumer and blocks until all loops exit. Errors
// from individual loops are joined.
func (g *Group) StartAll() error {
	var wg sync.WaitGroup
	errs := make([]error, len(g.consumers))
	for i, c := range g.consumers {
		wg.Add(1)
		go func(i int, c *Consumer) {
			defer wg.Done()
			errs[i] = c.Run()
		}(i, c)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// StopAll signals every run loop to exit after its in-flight message.
func (g *Group) StopAll() {
	for _, c := range g.consumers {
		c.Stop()
	}
}

// CloseAll releases every instance's resources.
func (g *Group) CloseAll() error {
	var errs []error
	for _, c := range g.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats snapshots every instance's counters.
func (g *Group) Stats() []Stats {
	out := make([]Stats, 0, len(g.consumers))
	for _, c := range g.consumers {
		out = append(out, c.Stats())
	}
	return out
}
