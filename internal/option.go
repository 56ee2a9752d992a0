package internal

import "github.com/starford/ansuz/internal/agent"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	completer agent.Completer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCompleter overrides the OpenAI-backed completer, for testing.
func WithCompleter(c agent.Completer) Option {
	return func(a *application) {
		a.completer = c
	}
}
