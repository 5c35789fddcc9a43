package codegen

import (
	"strings"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/evm"
	"github.com/hufflang/huffc/token"
)

// MaxExpansionDepth bounds macro expansion. Macros may be mutually
// referential by name, but a call chain deeper than this is treated as an
// infinite expansion cycle.
const MaxExpansionDepth = 128

// frame is created per macro call site during expansion. It binds the
// formal parameters to the argument statements supplied at the call site and
// carries a unique scope identifier used to rename labels, so that two
// invocations of the same macro never collide on label names.
type frame struct {
	macro  *ast.Macro
	parent *frame

	// scope uniquely identifies this invocation
	scope string

	// args binds each formal parameter to the statement written at the call
	// site, together with the frame that statement must be evaluated in
	args map[string]binding

	// labels maps label names declared in this macro body to their scoped
	// keys in the emitted stream
	labels map[string]string
}

// binding is an argument bound in an invocation frame. The statement is
// evaluated in the frame where it was written (the caller), which is what
// lets an argument forward a label, opcode, or another argument downward
// through nested invocations.
type binding struct {
	stmt  ast.Statement
	frame *frame
}

// newFrame creates an invocation frame for the macro, pre-scanning its body
// for label declarations so that forward label references within the body
// resolve.
func newFrame(macro *ast.Macro, parent *frame) (*frame, error) {
	scope := uuid.Must(uuid.NewV4()).String()[:8]
	f := &frame{
		macro:  macro,
		parent: parent,
		scope:  scope,
		args:   map[string]binding{},
		labels: map[string]string{},
	}
	for _, stmt := range macro.Body() {
		if label, ok := stmt.(*ast.LabelDef); ok {
			if _, exists := f.labels[label.Name()]; exists {
				return nil, errors.New(errors.ParseError, locationOf(label.Token()),
					"label %q declared more than once in macro %s", label.Name(), macro.Name())
			}
			f.labels[label.Name()] = label.Name() + "@" + scope
		}
	}
	return f, nil
}

// resolveLabel returns the scoped key for a label name, searching this frame
// and then its callers. Labels in unrelated invocations are not visible.
func (f *frame) resolveLabel(name string) (string, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if key, ok := cur.labels[name]; ok {
			return key, true
		}
	}
	return "", false
}

// resolveArg returns the binding for a formal parameter in this frame.
func (f *frame) resolveArg(name string) (binding, bool) {
	b, ok := f.args[name]
	return b, ok
}

// expand walks a macro body in AST order, appending elements to the stream.
// Nested macro invocations are inlined in place.
func (g *Generator) expand(macro *ast.Macro, f *frame, depth int, out *[]element) error {
	if depth > MaxExpansionDepth {
		return errors.New(errors.RecursionLimitExceeded, locationOf(macro.Token()),
			"macro expansion exceeded %d frames expanding %s", MaxExpansionDepth, macro.Name())
	}
	for _, stmt := range macro.Body() {
		if err := g.emitStatement(stmt, f, depth, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) emitStatement(stmt ast.Statement, f *frame, depth int, out *[]element) error {
	switch stmt := stmt.(type) {
	case *ast.PushLiteral:
		// Literals push at their written byte width: 0x0001 encodes as
		// PUSH2, not PUSH1, so authors can pad a push deliberately.
		*out = append(*out, element{
			kind:  elemPush,
			value: stmt.Value(),
			width: stmt.Width(),
			tok:   stmt.Token(),
		})
		return nil
	case *ast.LabelDef:
		key, _ := f.resolveLabel(stmt.Name())
		*out = append(*out, element{kind: elemLabelDef, label: key, tok: stmt.Token()})
		return nil
	case *ast.Ident:
		return g.emitIdent(stmt, f, out)
	case *ast.ConstantRef:
		value, ok := g.contract.ConstantValues[stmt.Name()]
		if !ok {
			return errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
				"constant %q is not defined", stmt.Name())
		}
		*out = append(*out, pushElement(value, stmt.Token()))
		return nil
	case *ast.ArgCall:
		b, ok := f.resolveArg(stmt.Name())
		if !ok {
			return errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
				"argument %q is not bound in macro %s", stmt.Name(), f.macro.Name())
		}
		return g.emitStatement(b.stmt, b.frame, depth, out)
	case *ast.MacroCall:
		return g.emitMacroCall(stmt, f, depth, out)
	case *ast.Builtin:
		return g.emitBuiltin(stmt, f, out)
	default:
		return errors.New(errors.ParseError, locationOf(stmt.Token()),
			"unsupported statement %s", stmt.String())
	}
}

// emitIdent resolves a bare identifier as an opcode mnemonic first, then as
// a label reference in the current invocation frame.
func (g *Generator) emitIdent(stmt *ast.Ident, f *frame, out *[]element) error {
	name := stmt.Name()
	if op, ok := evm.Lookup(name); ok {
		if evm.IsPush(op) {
			return errors.New(errors.ParseError, locationOf(stmt.Token()),
				"%s takes an immediate; write the literal instead", name)
		}
		*out = append(*out, element{kind: elemOp, op: op, tok: stmt.Token()})
		return nil
	}
	if key, ok := f.resolveLabel(name); ok {
		*out = append(*out, element{
			kind:  elemLabelRef,
			label: key,
			width: maxOffsetWidth,
			tok:   stmt.Token(),
		})
		return nil
	}
	return errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
		"%q is neither an opcode nor a label in scope", name)
}

func (g *Generator) emitMacroCall(call *ast.MacroCall, f *frame, depth int, out *[]element) error {
	macro, ok := g.contract.Macros[call.Name()]
	if !ok {
		return errors.New(errors.UnresolvedReference, locationOf(call.Token()),
			"macro %q is not defined", call.Name())
	}
	if len(call.Args()) != len(macro.Params()) {
		return errors.New(errors.ArgumentArityMismatch, locationOf(call.Token()),
			"macro %s takes %d arguments but %d were supplied",
			macro.Name(), len(macro.Params()), len(call.Args()))
	}
	child, err := newFrame(macro, f)
	if err != nil {
		return err
	}
	for i, param := range macro.Params() {
		child.args[param] = binding{stmt: call.Args()[i], frame: f}
	}
	g.logger.Debug().
		Str("macro", macro.Name()).
		Str("scope", child.scope).
		Int("depth", depth+1).
		Msg("expanding macro invocation")
	return g.expand(macro, child, depth+1, out)
}

func (g *Generator) emitBuiltin(stmt *ast.Builtin, f *frame, out *[]element) error {
	switch stmt.Name() {
	case ast.BuiltinCodesize:
		macro, ok := g.contract.Macros[stmt.Arg()]
		if !ok {
			return errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
				"__codesize argument %q is not a defined macro", stmt.Arg())
		}
		size, err := g.codesize(macro)
		if err != nil {
			return err
		}
		*out = append(*out, pushElement(uint256.NewInt(uint64(size)), stmt.Token()))
		return nil
	case ast.BuiltinTablesize:
		size, err := g.tableSize(stmt)
		if err != nil {
			return err
		}
		*out = append(*out, pushElement(uint256.NewInt(uint64(size)), stmt.Token()))
		return nil
	case ast.BuiltinTablestart:
		if _, ok := g.contract.Table(stmt.Arg()); !ok {
			return errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
				"__tablestart argument %q is not a defined table", stmt.Arg())
		}
		g.markTableUsed(stmt.Arg())
		*out = append(*out, element{
			kind:  elemTableRef,
			table: stmt.Arg(),
			width: tableRefWidth,
			tok:   stmt.Token(),
		})
		return nil
	case ast.BuiltinFuncSig:
		selector, err := g.funcSig(stmt)
		if err != nil {
			return err
		}
		// Selectors always encode as PUSH4, even with leading zero bytes.
		*out = append(*out, element{
			kind:  elemPush,
			value: selector,
			width: 4,
			tok:   stmt.Token(),
		})
		return nil
	default:
		return errors.New(errors.ParseError, locationOf(stmt.Token()),
			"unknown builtin %s", stmt.Name())
	}
}

func (g *Generator) tableSize(stmt *ast.Builtin) (int, error) {
	table, ok := g.contract.Table(stmt.Arg())
	if !ok {
		return 0, errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
			"__tablesize argument %q is not a defined table", stmt.Arg())
	}
	g.markTableUsed(stmt.Arg())
	switch table := table.(type) {
	case *ast.JumpTable:
		return table.Size(), nil
	case *ast.CodeTable:
		return table.Size(), nil
	}
	return 0, errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
		"__tablesize argument %q is not a defined table", stmt.Arg())
}

func (g *Generator) funcSig(stmt *ast.Builtin) (*uint256.Int, error) {
	arg := stmt.Arg()
	if strings.Contains(arg, "(") {
		return selectorOf(arg), nil
	}
	fn, ok := g.contract.Functions[arg]
	if !ok {
		return nil, errors.New(errors.UnresolvedReference, locationOf(stmt.Token()),
			"__FUNC_SIG argument %q is not a defined function", arg)
	}
	return selectorOf(fn.Signature()), nil
}

// pushElement builds a push of a known value using the shortest encoding.
// Zero still pushes one immediate byte, matching PUSH1 0x00.
func pushElement(value *uint256.Int, tok token.Token) element {
	width := evm.ImmediateWidth(value)
	if width == 0 {
		width = 1
	}
	return element{kind: elemPush, value: value, width: width, tok: tok}
}
