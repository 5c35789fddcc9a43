// Package ast defines the abstract syntax tree representation of Huff code.
//
// A Huff source file is a flat sequence of top-level definitions: macros,
// functions, constants, jump tables, code tables, and includes. Macro bodies
// are sequences of statements. The AST performs no name resolution; that is
// the resolver's job.
package ast

import "github.com/hufflang/huffc/token"

// Node represents a portion of the syntax tree. All nodes have position
// information indicating where they appear in the source code.
type Node interface {
	// Token returns the token that introduced the node.
	Token() token.Token

	// String returns a human friendly representation of the Node. This should
	// be similar to the original source code, but not necessarily identical.
	String() string
}

// Definition is a top-level construct in a Huff file.
type Definition interface {
	Node

	// Name returns the definition name, which must be unique within its
	// namespace in the merged import closure.
	Name() string

	definitionNode()
}

// Statement is a single element of a macro body.
type Statement interface {
	Node
	statementNode()
}

// File is the root node produced by parsing one Huff source file.
type File struct {
	// Path is the path the file was read from, or a synthetic name for
	// in-memory sources.
	Path string

	// Defs holds the top-level definitions in source order.
	Defs []Definition
}

// Includes returns the include definitions in source order.
func (f *File) Includes() []*Include {
	var includes []*Include
	for _, def := range f.Defs {
		if inc, ok := def.(*Include); ok {
			includes = append(includes, inc)
		}
	}
	return includes
}
