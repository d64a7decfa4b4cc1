package engine

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxUnremovedSteps is the default admission-control cap on the
	// total number of non-removed review steps in the system.
	DefaultMaxUnremovedSteps int64 = 100
)

// Config holds the engine's tunable parameters.
type Config struct {
	// MaxUnremovedSteps caps the number of non-removed steps that may
	// exist at once. Assign rejects with NotAssignableError once the cap
	// is reached.
	MaxUnremovedSteps int64

	// Clock returns the current time. Swappable in tests.
	Clock func() time.Time

	// Logger is the parent logger; the engine scopes it per component.
	Logger *slog.Logger
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxUnremovedSteps: DefaultMaxUnremovedSteps,
		Clock:             time.Now,
		Logger:            slog.Default(),
	}
}

// Option modifies the engine configuration.
type Option func(*Config)

// WithMaxUnremovedSteps overrides the admission-control cap. A
// non-positive value disables the cap.
func WithMaxUnremovedSteps(max int64) Option {
	return func(cfg *Config) {
		cfg.MaxUnremovedSteps = max
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(cfg *Config) {
		cfg.Clock = clock
	}
}

// WithLogger overrides the parent logger.
func WithLogger(log *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = log
	}
}
