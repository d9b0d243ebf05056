package broker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/miladsoleymani/mockjms/core"
)

var (
	// ErrNameNotFound is returned by lookups of unbound names.
	ErrNameNotFound = errors.New("mockjms: name not found")

	// ErrNameBound is returned by Bind when the name is taken.
	ErrNameBound = errors.New("mockjms: name already bound")
)

// Context is a naming directory. Application code looks its connection
// factories and destinations up by name; tests bind the mocks under those
// names beforehand.
type Context struct {
	mu       sync.RWMutex
	bindings map[string]any
}

func NewContext() *Context {
	return &Context{bindings: make(map[string]any)}
}

// Bind binds obj to name. It fails if name is already bound.
func (c *Context) Bind(name string, obj any) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", core.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bindings[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameBound, name)
	}
	c.bindings[name] = obj
	return nil
}

// Rebind binds obj to name, replacing any earlier binding.
func (c *Context) Rebind(name string, obj any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[name] = obj
}

func (c *Context) Unbind(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bindings[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNameNotFound, name)
	}
	delete(c.bindings, name)
	return nil
}

func (c *Context) Lookup(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNameNotFound, name)
	}
	return obj, nil
}

// Names returns the bound names in lexical order.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings))
	for name := range c.bindings {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LookupFactory returns the connection factory bound to name.
func (c *Context) LookupFactory(name string) (*core.ConnectionFactory, error) {
	return lookupAs[*core.ConnectionFactory](c, name)
}

// LookupQueue returns the queue bound to name.
func (c *Context) LookupQueue(name string) (*core.Queue, error) {
	return lookupAs[*core.Queue](c, name)
}

// LookupTopic returns the topic bound to name.
func (c *Context) LookupTopic(name string) (*core.Topic, error) {
	return lookupAs[*core.Topic](c, name)
}

func lookupAs[T any](c *Context, name string) (T, error) {
	var zero T
	obj, err := c.Lookup(name)
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is bound to %T, not %T", core.ErrInvalidArgument, name, obj, zero)
	}
	return v, nil
}

// BindAll binds f under factoryName and every destination of its
// destination manager under its own name, queues first.
func BindAll(c *Context, factoryName string, f *core.ConnectionFactory) {
	c.Rebind(factoryName, f)
	dm := f.DestinationManager()
	for _, q := range dm.Queues() {
		c.Rebind(q.Name(), q)
	}
	for _, t := range dm.Topics() {
		c.Rebind(t.Name(), t)
	}
}
