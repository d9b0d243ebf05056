package mock

import (
	"sync"
	"time"
)

// Record is one MessageProcessed call.
type Record struct {
	Destination string
	Duration    time.Duration
	Err         error
}

// Collector is a middleware.MetricsCollector that keeps every call.
type Collector struct {
	mu      sync.Mutex
	records []Record
}

func (c *Collector) MessageProcessed(destination string, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, Record{Destination: destination, Duration: d, Err: err})
}

func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}
