package thread

import (
	"context"

	"github.com/tezrry/kthread/alloc"
	"github.com/tezrry/kthread/pkg/logging"
)

type ConfigFunc func(c *Config)

type Config struct {
	// MemoryPages is the number of linear memory pages committed up front,
	// the first one holds the runtime's static cells.
	MemoryPages uint32

	// MaxMemoryPages is the most pages the linear memory may grow to.
	MaxMemoryPages uint32

	// Logger receives worker failure reports. When nil the host's logger is
	// used if it has one, the default logger otherwise.
	Logger logging.Logger
}

func WithConfig(config *Config) ConfigFunc {
	return func(c *Config) {
		*c = *config
	}
}

func WithMemoryPages(initial, max uint32) ConfigFunc {
	return func(c *Config) {
		c.MemoryPages = initial
		c.MaxMemoryPages = max
	}
}

func WithLogger(logger logging.Logger) ConfigFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// SpawnConfig tunes a single Spawn.
type SpawnConfig struct {
	// Context is the parent of the context the entry function receives.
	// Cancelling it does not stop the worker, the entry may watch it.
	Context context.Context

	// Allocator serves the argument block and completion cell. It must
	// allocate from the runtime's linear memory and be safe for concurrent
	// use. Defaults to the runtime's allocator.
	Allocator alloc.Allocator
}
