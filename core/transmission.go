package core

// TransmissionManager records the producers, consumers and browsers a
// session created, in creation order, so tests can find and inspect them.
// Closed ones stay listed.
type TransmissionManager struct {
	dm        *DestinationManager
	producers []*Producer
	consumers []*Consumer
	browsers  []*Browser
}

func (tm *TransmissionManager) Producers() []*Producer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return append([]*Producer(nil), tm.producers...)
}

// Producer returns the i-th created producer or nil.
func (tm *TransmissionManager) Producer(i int) *Producer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return at(tm.producers, i)
}

// ProducersFor returns the producers bound to dest.
func (tm *TransmissionManager) ProducersFor(dest Destination) []*Producer {
	return tm.filterProducers(func(p *Producer) bool { return sameDestination(p.dest, dest) })
}

// QueueSenders returns the producers bound to a queue.
func (tm *TransmissionManager) QueueSenders() []*Producer {
	return tm.filterProducers(func(p *Producer) bool { return p.dest != nil && p.dest.Kind() == QueueKind })
}

// TopicPublishers returns the producers bound to a topic.
func (tm *TransmissionManager) TopicPublishers() []*Producer {
	return tm.filterProducers(func(p *Producer) bool { return p.dest != nil && p.dest.Kind() == TopicKind })
}

func (tm *TransmissionManager) Consumers() []*Consumer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return append([]*Consumer(nil), tm.consumers...)
}

// Consumer returns the i-th created consumer or nil.
func (tm *TransmissionManager) Consumer(i int) *Consumer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return at(tm.consumers, i)
}

// ConsumersFor returns the consumers on dest.
func (tm *TransmissionManager) ConsumersFor(dest Destination) []*Consumer {
	return tm.filterConsumers(func(c *Consumer) bool { return sameDestination(c.dest, dest) })
}

func (tm *TransmissionManager) QueueReceivers() []*Consumer {
	return tm.filterConsumers(func(c *Consumer) bool { return c.dest.Kind() == QueueKind })
}

// TopicSubscribers returns every topic consumer, durable ones included.
func (tm *TransmissionManager) TopicSubscribers() []*Consumer {
	return tm.filterConsumers(func(c *Consumer) bool { return c.dest.Kind() == TopicKind })
}

func (tm *TransmissionManager) DurableSubscribers() []*Consumer {
	return tm.filterConsumers(func(c *Consumer) bool { return c.IsDurable() })
}

// DurableSubscriber returns the most recent durable subscriber called name,
// or nil.
func (tm *TransmissionManager) DurableSubscriber(name string) *Consumer {
	subs := tm.filterConsumers(func(c *Consumer) bool { return c.IsDurable() && c.sub.key.name == name })
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func (tm *TransmissionManager) Browsers() []*Browser {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return append([]*Browser(nil), tm.browsers...)
}

// Browser returns the i-th created browser or nil.
func (tm *TransmissionManager) Browser(i int) *Browser {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	return at(tm.browsers, i)
}

func (tm *TransmissionManager) filterProducers(keep func(*Producer) bool) []*Producer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	var out []*Producer
	for _, p := range tm.producers {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (tm *TransmissionManager) filterConsumers(keep func(*Consumer) bool) []*Consumer {
	tm.dm.mu.Lock()
	defer tm.dm.mu.Unlock()
	var out []*Consumer
	for _, c := range tm.consumers {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func at[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}
