package broker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Factory creates a connection factory from the given Config.
type Factory func(cfg Config, opts ...core.Option) (*core.ConnectionFactory, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func init() {
	Register("mock", New)
}

// Register adds a named factory constructor. Packages that wrap the mock call
// this from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates a connection factory by name using the registered
// constructor.
func Create(name string, cfg Config, opts ...core.Option) (*core.ConnectionFactory, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mockjms: unknown factory %q", name)
	}
	return f(cfg, opts...)
}

// New builds the in-memory connection factory described by cfg, with its
// queues and topics created. opts are applied after the configuration, so a
// WithLogger given here wins over cfg.Log.
func New(cfg Config, opts ...core.Option) (*core.ConnectionFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	all := append(cfg.Options(), core.WithLogger(logger))
	f := core.NewConnectionFactory(append(all, opts...)...)

	dm := f.DestinationManager()
	for _, name := range cfg.Queues {
		dm.CreateQueue(name)
	}
	for _, name := range cfg.Topics {
		dm.CreateTopic(name)
	}
	f.Logger().Debug("connection factory ready",
		zap.Strings("queues", cfg.Queues),
		zap.Strings("topics", cfg.Topics),
	)
	return f, nil
}
