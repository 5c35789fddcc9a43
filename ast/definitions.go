package ast

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/token"
)

// Include is an "#include" directive naming another Huff file whose
// definitions are merged into this file's compilation.
type Include struct {
	tok  token.Token
	path string
}

// NewInclude creates a new Include node.
func NewInclude(tok token.Token, path string) *Include {
	return &Include{tok: tok, path: path}
}

func (d *Include) definitionNode() {}

func (d *Include) Token() token.Token { return d.tok }

// Name returns the include path. Includes occupy no namespace, so the path
// doubles as a display name.
func (d *Include) Name() string { return d.path }

// Path returns the relative path of the included file.
func (d *Include) Path() string { return d.path }

func (d *Include) String() string {
	return fmt.Sprintf("#include %q", d.path)
}

// Constant is a "#define constant" definition. The value is either a literal
// or a free storage pointer assigned a sequential slot at resolve time.
type Constant struct {
	tok  token.Token
	name string

	// value is nil when the constant is declared as FREE_STORAGE_POINTER()
	value *uint256.Int

	freeStoragePointer bool
}

// NewConstant creates a new Constant node with a literal value.
func NewConstant(tok token.Token, name string, value *uint256.Int) *Constant {
	return &Constant{tok: tok, name: name, value: value}
}

// NewFreeStoragePointer creates a Constant node declared with
// FREE_STORAGE_POINTER(), whose value is assigned during resolution.
func NewFreeStoragePointer(tok token.Token, name string) *Constant {
	return &Constant{tok: tok, name: name, freeStoragePointer: true}
}

func (d *Constant) definitionNode() {}

func (d *Constant) Token() token.Token { return d.tok }

func (d *Constant) Name() string { return d.name }

// Value returns the literal value, or nil for a free storage pointer.
func (d *Constant) Value() *uint256.Int { return d.value }

// IsFreeStoragePointer reports whether the constant was declared with
// FREE_STORAGE_POINTER().
func (d *Constant) IsFreeStoragePointer() bool { return d.freeStoragePointer }

func (d *Constant) String() string {
	if d.freeStoragePointer {
		return fmt.Sprintf("#define constant %s = FREE_STORAGE_POINTER()", d.name)
	}
	return fmt.Sprintf("#define constant %s = %s", d.name, d.value.Hex())
}

// Macro is a "#define macro" definition: a named, parameterized block of
// statements inlined at each call site.
type Macro struct {
	tok    token.Token
	name   string
	params []string

	// takes and returns are the declared stack input and output counts.
	// They are carried for metadata and are not verified by the compiler.
	takes   int
	returns int

	body []Statement
}

// NewMacro creates a new Macro node.
func NewMacro(tok token.Token, name string, params []string, takes, returns int, body []Statement) *Macro {
	return &Macro{tok: tok, name: name, params: params, takes: takes, returns: returns, body: body}
}

func (d *Macro) definitionNode() {}

func (d *Macro) Token() token.Token { return d.tok }

func (d *Macro) Name() string { return d.name }

// Params returns the formal parameter names in declaration order.
func (d *Macro) Params() []string { return d.params }

// Takes returns the declared stack input count.
func (d *Macro) Takes() int { return d.takes }

// Returns returns the declared stack output count.
func (d *Macro) Returns() int { return d.returns }

// Body returns the macro body statements in source order.
func (d *Macro) Body() []Statement { return d.body }

func (d *Macro) String() string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "#define macro %s(%s) = takes(%d) returns(%d) {",
		d.name, strings.Join(d.params, ", "), d.takes, d.returns)
	for _, stmt := range d.body {
		out.WriteString(" ")
		out.WriteString(stmt.String())
	}
	out.WriteString(" }")
	return out.String()
}

// Function is a "#define function" interface declaration. Functions emit no
// code; they exist so selectors can be derived and exported in the artifact
// metadata.
type Function struct {
	tok     token.Token
	name    string
	inputs  []string
	outputs []string

	// view, pure, payable or nonpayable
	visibility string
}

// NewFunction creates a new Function node. The inputs and outputs are
// canonical ABI type names such as "uint256" or "address".
func NewFunction(tok token.Token, name string, inputs, outputs []string, visibility string) *Function {
	return &Function{tok: tok, name: name, inputs: inputs, outputs: outputs, visibility: visibility}
}

func (d *Function) definitionNode() {}

func (d *Function) Token() token.Token { return d.tok }

func (d *Function) Name() string { return d.name }

// Inputs returns the argument type names.
func (d *Function) Inputs() []string { return d.inputs }

// Outputs returns the return type names.
func (d *Function) Outputs() []string { return d.outputs }

// Visibility returns the declared mutability keyword.
func (d *Function) Visibility() string { return d.visibility }

// Signature returns the canonical signature used for selector derivation,
// for example "transfer(address,uint256)".
func (d *Function) Signature() string {
	return fmt.Sprintf("%s(%s)", d.name, strings.Join(d.inputs, ","))
}

func (d *Function) String() string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "#define function %s", d.Signature())
	if d.visibility != "" {
		out.WriteString(" " + d.visibility)
	}
	if len(d.outputs) > 0 {
		fmt.Fprintf(&out, " returns (%s)", strings.Join(d.outputs, ","))
	}
	return out.String()
}

// JumpTable is a "#define jumptable" definition: an ordered list of label
// names whose resolved byte offsets are written into the artifact after all
// executable code. Entries are 32 bytes each, or 2 bytes when packed.
type JumpTable struct {
	tok    token.Token
	name   string
	labels []string
	packed bool
}

// NewJumpTable creates a new JumpTable node.
func NewJumpTable(tok token.Token, name string, labels []string, packed bool) *JumpTable {
	return &JumpTable{tok: tok, name: name, labels: labels, packed: packed}
}

func (d *JumpTable) definitionNode() {}

func (d *JumpTable) Token() token.Token { return d.tok }

func (d *JumpTable) Name() string { return d.name }

// Labels returns the label names in table order.
func (d *JumpTable) Labels() []string { return d.labels }

// Packed reports whether entries are 2 bytes rather than 32.
func (d *JumpTable) Packed() bool { return d.packed }

// EntrySize returns the encoded size of one table entry in bytes.
func (d *JumpTable) EntrySize() int {
	if d.packed {
		return 2
	}
	return 32
}

// Size returns the encoded size of the whole table in bytes.
func (d *JumpTable) Size() int {
	return len(d.labels) * d.EntrySize()
}

func (d *JumpTable) String() string {
	kind := "jumptable"
	if d.packed {
		kind = "jumptable__packed"
	}
	return fmt.Sprintf("#define %s %s { %s }", kind, d.name, strings.Join(d.labels, " "))
}

// CodeTable is a "#define table" definition holding raw bytes that are
// appended verbatim after all executable code.
type CodeTable struct {
	tok  token.Token
	name string
	data []byte
}

// NewCodeTable creates a new CodeTable node.
func NewCodeTable(tok token.Token, name string, data []byte) *CodeTable {
	return &CodeTable{tok: tok, name: name, data: data}
}

func (d *CodeTable) definitionNode() {}

func (d *CodeTable) Token() token.Token { return d.tok }

func (d *CodeTable) Name() string { return d.name }

// Data returns the raw table bytes.
func (d *CodeTable) Data() []byte { return d.data }

// Size returns the encoded size of the table in bytes.
func (d *CodeTable) Size() int { return len(d.data) }

func (d *CodeTable) String() string {
	return fmt.Sprintf("#define table %s { 0x%s }", d.name, hex.EncodeToString(d.data))
}
