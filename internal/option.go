package internal

import "github.com/starford/jera/internal/builder"

// Option is a functional option for configuring a watch session.
type Option func(*application)

type application struct {
	config *Config
	format builder.Format
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithFormat sets the output format the session builds.
func WithFormat(f builder.Format) Option {
	return func(a *application) {
		a.format = f
	}
}
