// Package resolver builds the merged symbol table for a compilation target.
//
// Starting from an entry file, the resolver walks the #include graph,
// reading each file at most once through a shared cache, and merges every
// reachable definition into a single Contract. Name collisions across the
// merged closure are fatal. Free storage pointer constants are assigned
// sequential slots here, and caller-supplied constant overrides are applied
// last.
package resolver

import (
	"context"
	"path/filepath"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
)

// Contract is the merged compilation unit for one entry file: every
// definition reachable through the import graph, indexed by name.
type Contract struct {
	// EntryFile is the canonical path of the entry file.
	EntryFile string

	// Files holds the parsed files in traversal order, entry first.
	Files []*ast.File

	Macros     map[string]*ast.Macro
	Functions  map[string]*ast.Function
	Constants  map[string]*ast.Constant
	JumpTables map[string]*ast.JumpTable
	CodeTables map[string]*ast.CodeTable

	// TableOrder lists jump table and code table names in declaration
	// order across the traversal. Table data is emitted in this order.
	TableOrder []string

	// ConstantValues maps each constant name to its concrete value, with
	// free storage pointer slots assigned and overrides applied.
	ConstantValues map[string]*uint256.Int
}

// Table looks up a jump table or code table by name. Jump tables and code
// tables share a namespace.
func (c *Contract) Table(name string) (ast.Definition, bool) {
	if t, ok := c.JumpTables[name]; ok {
		return t, true
	}
	if t, ok := c.CodeTables[name]; ok {
		return t, true
	}
	return nil, false
}

// Option is a configuration function for a Resolver.
type Option func(*Resolver)

// WithCache supplies a shared file cache. Compilations of independent
// targets that share imports should share one cache.
func WithCache(cache *FileCache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithLogger supplies a logger for debug-level tracing of the import
// traversal. The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithConstantOverrides supplies constant values that take precedence over
// in-source constant definitions. Overriding a constant that does not exist
// in the merged closure is an unresolved reference error.
func WithConstantOverrides(overrides map[string]*uint256.Int) Option {
	return func(r *Resolver) {
		for k, v := range overrides {
			r.overrides[k] = v
		}
	}
}

// Resolver merges the import closure of entry files into Contracts.
type Resolver struct {
	cache     *FileCache
	logger    zerolog.Logger
	overrides map[string]*uint256.Int
}

// New creates a Resolver.
func New(options ...Option) *Resolver {
	r := &Resolver{
		logger:    zerolog.Nop(),
		overrides: map[string]*uint256.Int{},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewFileCache()
	}
	return r
}

// Cache returns the resolver's file cache.
func (r *Resolver) Cache() *FileCache {
	return r.cache
}

// Resolve builds the Contract for the given entry file.
func (r *Resolver) Resolve(ctx context.Context, entryPath string) (*Contract, error) {
	entry := r.canonical("", entryPath)
	contract := &Contract{
		EntryFile:      entry,
		Macros:         map[string]*ast.Macro{},
		Functions:      map[string]*ast.Function{},
		Constants:      map[string]*ast.Constant{},
		JumpTables:     map[string]*ast.JumpTable{},
		CodeTables:     map[string]*ast.CodeTable{},
		ConstantValues: map[string]*uint256.Int{},
	}
	visited := map[string]bool{}
	if err := r.walk(ctx, entry, contract, visited); err != nil {
		return nil, err
	}
	if err := r.resolveConstants(contract); err != nil {
		return nil, err
	}
	return contract, nil
}

// walk loads one file and recurses through its includes depth-first. A file
// already visited in this traversal is skipped, which makes diamond imports
// harmless and terminates include cycles.
func (r *Resolver) walk(ctx context.Context, path string, contract *Contract, visited map[string]bool) error {
	if visited[path] {
		return nil
	}
	visited[path] = true

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.logger.Debug().Str("path", path).Msg("resolving file")
	file, err := r.cache.Load(ctx, path)
	if err != nil {
		switch err.(type) {
		case *errors.CompileError, *errors.CompileErrors:
			return err
		}
		// Read failures surface as unresolved references to the import.
		return errors.New(errors.UnresolvedReference, errors.SourceLocation{
			Filename: path,
		}, "unable to read %s: %v", path, err)
	}
	contract.Files = append(contract.Files, file)

	if err := r.merge(contract, file); err != nil {
		return err
	}
	for _, inc := range file.Includes() {
		if err := r.walk(ctx, r.canonical(path, inc.Path()), contract, visited); err != nil {
			return err
		}
	}
	return nil
}

// canonical resolves an include path relative to the including file and
// normalizes it so that one file on disk maps to exactly one cache key.
// Preloaded in-memory paths are kept as written.
func (r *Resolver) canonical(from, path string) string {
	if from != "" {
		path = filepath.Join(filepath.Dir(from), path)
	}
	path = filepath.Clean(path)
	if r.cache.Contains(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil && r.cache.Contains(abs) {
		return abs
	}
	if filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// merge adds a file's definitions to the contract, failing on any name that
// is already defined in the closure.
func (r *Resolver) merge(contract *Contract, file *ast.File) error {
	for _, def := range file.Defs {
		switch def := def.(type) {
		case *ast.Include:
			// handled by the traversal
		case *ast.Macro:
			if prev, ok := contract.Macros[def.Name()]; ok {
				return r.duplicate(file, "macro", def, prev)
			}
			contract.Macros[def.Name()] = def
		case *ast.Function:
			if prev, ok := contract.Functions[def.Name()]; ok {
				return r.duplicate(file, "function", def, prev)
			}
			contract.Functions[def.Name()] = def
		case *ast.Constant:
			if prev, ok := contract.Constants[def.Name()]; ok {
				return r.duplicate(file, "constant", def, prev)
			}
			contract.Constants[def.Name()] = def
		case *ast.JumpTable:
			if prev, ok := contract.Table(def.Name()); ok {
				return r.duplicate(file, "table", def, prev)
			}
			contract.JumpTables[def.Name()] = def
			contract.TableOrder = append(contract.TableOrder, def.Name())
		case *ast.CodeTable:
			if prev, ok := contract.Table(def.Name()); ok {
				return r.duplicate(file, "table", def, prev)
			}
			contract.CodeTables[def.Name()] = def
			contract.TableOrder = append(contract.TableOrder, def.Name())
		}
	}
	return nil
}

func (r *Resolver) duplicate(file *ast.File, namespace string, def, prev ast.Definition) error {
	tok := def.Token()
	err := errors.New(errors.UnresolvedReference, errors.SourceLocation{
		Filename: file.Path,
		Line:     tok.StartPosition.LineNumber(),
		Column:   tok.StartPosition.ColumnNumber(),
	}, "%s %q defined more than once in the import closure", namespace, def.Name())
	if prevTok := prev.Token(); prevTok.StartPosition.File != "" {
		err.Note = "previously defined in " + prevTok.StartPosition.File
	}
	return err
}

// resolveConstants assigns free storage pointer slots in traversal order and
// applies caller overrides.
func (r *Resolver) resolveConstants(contract *Contract) error {
	slot := uint64(0)
	for _, file := range contract.Files {
		for _, def := range file.Defs {
			constant, ok := def.(*ast.Constant)
			if !ok {
				continue
			}
			if constant.IsFreeStoragePointer() {
				contract.ConstantValues[constant.Name()] = uint256.NewInt(slot)
				slot++
			} else {
				contract.ConstantValues[constant.Name()] = constant.Value()
			}
		}
	}
	for name, value := range r.overrides {
		if _, ok := contract.Constants[name]; !ok {
			return errors.New(errors.UnresolvedReference, errors.SourceLocation{
				Filename: contract.EntryFile,
			}, "constant override %q does not match any constant definition", name)
		}
		r.logger.Debug().Str("constant", name).Msg("applying constant override")
		contract.ConstantValues[name] = value
	}
	return nil
}
