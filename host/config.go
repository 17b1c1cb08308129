package host

import (
	"time"

	"github.com/tezrry/kthread/pkg/logging"
)

// DefaultMaxWorkers bounds the number of workers running at once when
// WithMaxWorkers is not given.
const DefaultMaxWorkers = 4096

type ConfigFunc func(c *Config)

type Config struct {
	// MaxWorkers is the most workers that may run at once, a worker request
	// beyond it is refused rather than queued.
	MaxWorkers int

	// ExpiryDuration is how long an idle pooled goroutine is kept around.
	ExpiryDuration time.Duration

	// PreAlloc allocates the whole worker queue up front.
	PreAlloc bool

	// NativeFutex parks waiters on the kernel futex where the platform has one,
	// instead of the in-process parking lot.
	NativeFutex bool

	// ReleaseTimeout bounds how long Close waits for idle workers to exit.
	ReleaseTimeout time.Duration

	// Logger is the customized logger, the default logger is used when it is nil.
	Logger logging.Logger

	// LogPath is the local file logs are written into when Logger is nil.
	LogPath string

	// LogLevel is the level used together with LogPath.
	LogLevel logging.Level
}

func WithConfig(config *Config) ConfigFunc {
	return func(c *Config) {
		*c = *config
	}
}

func WithMaxWorkers(num int) ConfigFunc {
	return func(c *Config) {
		c.MaxWorkers = num
	}
}

func WithExpiryDuration(d time.Duration) ConfigFunc {
	return func(c *Config) {
		c.ExpiryDuration = d
	}
}

func WithPreAlloc(v bool) ConfigFunc {
	return func(c *Config) {
		c.PreAlloc = v
	}
}

func WithNativeFutex(v bool) ConfigFunc {
	return func(c *Config) {
		c.NativeFutex = v
	}
}

func WithReleaseTimeout(d time.Duration) ConfigFunc {
	return func(c *Config) {
		c.ReleaseTimeout = d
	}
}

func WithLogger(logger logging.Logger) ConfigFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithLogPath(path string, level logging.Level) ConfigFunc {
	return func(c *Config) {
		c.LogPath = path
		c.LogLevel = level
	}
}
