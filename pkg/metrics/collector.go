package metrics

import (
	"sync"

	"github.com/fieldscout/fieldscout/pkg/core"
)

// Collector keeps records in memory for experiment summaries and tests.
type Collector struct {
	mu       sync.RWMutex
	records  []core.StepRecord
	capacity int
}

// NewCollector builds a collector. A capacity of zero or less means
// unbounded; otherwise the oldest record is dropped once the capacity is
// exceeded.
func NewCollector(capacity int) *Collector {
	return &Collector{
		records:  make([]core.StepRecord, 0, max(capacity, 0)),
		capacity: capacity,
	}
}

func (c *Collector) Record(rec core.StepRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	if c.capacity > 0 && len(c.records) > c.capacity {
		c.records = c.records[1:]
	}
	return nil
}

// Records returns a copy, oldest first.
func (c *Collector) Records() []core.StepRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.StepRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records currently held.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

var _ core.Sink = (*Collector)(nil)
