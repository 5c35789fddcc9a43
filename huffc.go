// Package huffc compiles Huff source into EVM bytecode.
//
// Compilation of one target runs the phases in order: the resolver walks
// the include graph and merges every reachable definition, then the code
// generator expands the entry macro, settles jump offsets, and packages the
// result into an Artifact. Multiple targets compile in parallel over a
// shared parse cache.
package huffc

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hufflang/huffc/codegen"
	"github.com/hufflang/huffc/resolver"
)

// Compiler compiles one or more entry files into artifacts. A Compiler is
// safe for concurrent use once constructed.
type Compiler struct {
	cache       *resolver.FileCache
	logger      zerolog.Logger
	overrides   map[string]*uint256.Int
	sources     map[string]string
	runtimeOnly bool
	maxParallel int
}

// NewCompiler creates a Compiler.
func NewCompiler(options ...Option) *Compiler {
	c := &Compiler{
		logger:    zerolog.Nop(),
		overrides: map[string]*uint256.Int{},
		sources:   map[string]string{},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewFileCache()
	}
	for path, source := range c.sources {
		c.cache.Preload(path, source)
	}
	return c
}

// NewFileCache creates a parse cache suitable for sharing between
// compilers via WithFileCache.
func NewFileCache() *resolver.FileCache {
	return resolver.NewFileCache()
}

// Compile compiles a single entry file.
func (c *Compiler) Compile(ctx context.Context, entryPath string) (*codegen.Artifact, error) {
	contract, err := resolver.New(
		resolver.WithCache(c.cache),
		resolver.WithLogger(c.logger),
		resolver.WithConstantOverrides(c.overrides),
	).Resolve(ctx, entryPath)
	if err != nil {
		return nil, err
	}
	generator := codegen.New(contract, codegen.WithLogger(c.logger))
	result, err := generator.Generate()
	if err != nil {
		return nil, err
	}
	artifact := generator.Artifact(result)
	if c.runtimeOnly {
		artifact.Bytecode = artifact.Runtime
	}
	return artifact, nil
}

// CompileFiles compiles every entry file, in parallel, over the shared
// parse cache. The returned artifacts are ordered like the inputs. When
// targets fail independently their errors are aggregated; artifacts are
// only returned if every target succeeded.
func (c *Compiler) CompileFiles(ctx context.Context, entryPaths []string) ([]*codegen.Artifact, error) {
	artifacts := make([]*codegen.Artifact, len(entryPaths))
	failures := make([]error, len(entryPaths))
	group, ctx := errgroup.WithContext(ctx)
	if c.maxParallel > 0 {
		group.SetLimit(c.maxParallel)
	}
	for i, path := range entryPaths {
		i, path := i, path
		group.Go(func() error {
			artifact, err := c.Compile(ctx, path)
			if err != nil {
				failures[i] = err
				return nil
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	var merged *multierror.Error
	for _, err := range failures {
		if err != nil {
			merged = multierror.Append(merged, err)
		}
	}
	if merged != nil {
		return nil, merged.ErrorOrNil()
	}
	return artifacts, nil
}

// Compile compiles a single entry file with a one-shot Compiler.
func Compile(ctx context.Context, entryPath string, options ...Option) (*codegen.Artifact, error) {
	return NewCompiler(options...).Compile(ctx, entryPath)
}

// CompileSource compiles in-memory source text registered under the given
// path. Includes resolve against the filesystem unless they are also
// preloaded with WithSource.
func CompileSource(ctx context.Context, path, source string, options ...Option) (*codegen.Artifact, error) {
	options = append(options, WithSource(path, source))
	return NewCompiler(options...).Compile(ctx, path)
}

// CompileFiles compiles several entry files in parallel with a one-shot
// Compiler.
func CompileFiles(ctx context.Context, entryPaths []string, options ...Option) ([]*codegen.Artifact, error) {
	return NewCompiler(options...).CompileFiles(ctx, entryPaths)
}
