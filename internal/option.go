package internal

import "github.com/starford/ansuz/internal/llm"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	invoker llm.Invoker
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithInvoker overrides the model invoker. Tests use this to run the full
// pipeline against a scripted mock.
func WithInvoker(inv llm.Invoker) Option {
	return func(a *application) {
		a.invoker = inv
	}
}
