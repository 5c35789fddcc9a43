package ast

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/token"
)

// Ident is a bare identifier in a macro body. It is either an opcode
// mnemonic or a reference to a label; deciding which is a code generation
// concern, since label definitions may appear later in the body or in a
// different expansion of the same macro.
type Ident struct {
	tok  token.Token
	name string
}

// NewIdent creates a new Ident statement.
func NewIdent(tok token.Token, name string) *Ident {
	return &Ident{tok: tok, name: name}
}

func (s *Ident) statementNode() {}

func (s *Ident) Token() token.Token { return s.tok }

// Name returns the identifier text.
func (s *Ident) Name() string { return s.name }

func (s *Ident) String() string { return s.name }

// PushLiteral is a hex literal in a macro body, emitted as a push
// instruction. The push width is the byte count the author wrote: a
// literal like 0x0001 pushes two bytes, leading zeros included.
type PushLiteral struct {
	tok   token.Token
	value *uint256.Int
	width int
}

// NewPushLiteral creates a new PushLiteral statement. Width is the number
// of bytes spelled out in the source literal.
func NewPushLiteral(tok token.Token, value *uint256.Int, width int) *PushLiteral {
	return &PushLiteral{tok: tok, value: value, width: width}
}

func (s *PushLiteral) statementNode() {}

func (s *PushLiteral) Token() token.Token { return s.tok }

// Value returns the literal value.
func (s *PushLiteral) Value() *uint256.Int { return s.value }

// Width returns the written byte width of the literal.
func (s *PushLiteral) Width() int { return s.width }

func (s *PushLiteral) String() string { return s.tok.Literal }

// LabelDef declares a jump destination at the current position in the
// emitted bytecode. Labels are scoped to the macro invocation that expands
// them, so two invocations of the same macro never collide.
type LabelDef struct {
	tok  token.Token
	name string
}

// NewLabelDef creates a new LabelDef statement.
func NewLabelDef(tok token.Token, name string) *LabelDef {
	return &LabelDef{tok: tok, name: name}
}

func (s *LabelDef) statementNode() {}

func (s *LabelDef) Token() token.Token { return s.tok }

// Name returns the label name.
func (s *LabelDef) Name() string { return s.name }

func (s *LabelDef) String() string { return s.name + ":" }

// ConstantRef is a "[NAME]" reference to a constant definition. The value is
// substituted during code generation and emitted as a push.
type ConstantRef struct {
	tok  token.Token
	name string
}

// NewConstantRef creates a new ConstantRef statement.
func NewConstantRef(tok token.Token, name string) *ConstantRef {
	return &ConstantRef{tok: tok, name: name}
}

func (s *ConstantRef) statementNode() {}

func (s *ConstantRef) Token() token.Token { return s.tok }

// Name returns the referenced constant name.
func (s *ConstantRef) Name() string { return s.name }

func (s *ConstantRef) String() string { return "[" + s.name + "]" }

// ArgCall is a "<name>" reference to a formal macro parameter, substituted
// from the invocation frame during expansion.
type ArgCall struct {
	tok  token.Token
	name string
}

// NewArgCall creates a new ArgCall statement.
func NewArgCall(tok token.Token, name string) *ArgCall {
	return &ArgCall{tok: tok, name: name}
}

func (s *ArgCall) statementNode() {}

func (s *ArgCall) Token() token.Token { return s.tok }

// Name returns the parameter name.
func (s *ArgCall) Name() string { return s.name }

func (s *ArgCall) String() string { return "<" + s.name + ">" }

// MacroCall invokes another macro, inlining its body at this call site.
type MacroCall struct {
	tok  token.Token
	name string
	args []Statement
}

// NewMacroCall creates a new MacroCall statement. Arguments are restricted
// by the parser to literals, identifiers, constant refs, and arg calls.
func NewMacroCall(tok token.Token, name string, args []Statement) *MacroCall {
	return &MacroCall{tok: tok, name: name, args: args}
}

func (s *MacroCall) statementNode() {}

func (s *MacroCall) Token() token.Token { return s.tok }

// Name returns the invoked macro name.
func (s *MacroCall) Name() string { return s.name }

// Args returns the call-site arguments in order.
func (s *MacroCall) Args() []Statement { return s.args }

func (s *MacroCall) String() string {
	var out bytes.Buffer
	out.WriteString(s.name)
	out.WriteString("(")
	for i, arg := range s.args {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(arg.String())
	}
	out.WriteString(")")
	return out.String()
}

// Builtin names for the directives the code generator understands.
const (
	BuiltinCodesize   = "__codesize"
	BuiltinTablestart = "__tablestart"
	BuiltinTablesize  = "__tablesize"
	BuiltinFuncSig    = "__FUNC_SIG"
)

// Builtin is a compiler directive call such as __codesize(MACRO) or
// __tablestart(TABLE). The argument is a single identifier or string.
type Builtin struct {
	tok  token.Token
	name string
	arg  string
}

// NewBuiltin creates a new Builtin statement.
func NewBuiltin(tok token.Token, name string, arg string) *Builtin {
	return &Builtin{tok: tok, name: name, arg: arg}
}

func (s *Builtin) statementNode() {}

func (s *Builtin) Token() token.Token { return s.tok }

// Name returns the directive name, including the leading underscores.
func (s *Builtin) Name() string { return s.name }

// Arg returns the directive argument.
func (s *Builtin) Arg() string { return s.arg }

func (s *Builtin) String() string {
	return fmt.Sprintf("%s(%s)", s.name, s.arg)
}
