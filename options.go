package huffc

import (
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/hufflang/huffc/resolver"
)

// Option is a configuration function for a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for debug tracing across all phases. The
// default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithConstantOverrides supplies values that replace in-source constant
// definitions of the same name in every target.
func WithConstantOverrides(overrides map[string]*uint256.Int) Option {
	return func(c *Compiler) {
		for k, v := range overrides {
			c.overrides[k] = v
		}
	}
}

// WithRuntimeOnly makes each artifact's Bytecode field carry the runtime
// alone, with no constructor or deployment bootstrap.
func WithRuntimeOnly() Option {
	return func(c *Compiler) {
		c.runtimeOnly = true
	}
}

// WithFileCache supplies a shared parse cache. Compilations that share
// imports read and parse each file at most once.
func WithFileCache(cache *resolver.FileCache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// WithSource preloads in-memory source text under the given path, taking
// precedence over the filesystem for that path and any include of it.
func WithSource(path, source string) Option {
	return func(c *Compiler) {
		c.sources[path] = source
	}
}

// WithMaxParallel bounds how many targets compile concurrently in
// CompileFiles. Zero or negative means one goroutine per target.
func WithMaxParallel(n int) Option {
	return func(c *Compiler) {
		c.maxParallel = n
	}
}
