package codegen

import (
	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/evm"
	"github.com/hufflang/huffc/token"
)

// Instruction is the lowest-level emitted unit: one opcode plus its
// immediate operand bytes, with the source position it originated from.
// The sequence of Instructions for a target is append-only during emission
// and immutable once offset resolution completes.
type Instruction struct {
	// Offset is the byte position of the opcode within the stream.
	Offset int

	// Op is the opcode byte.
	Op evm.Code

	// Immediate holds the operand bytes following the opcode, if any.
	Immediate []byte

	// Source is the token the instruction originated from, surviving macro
	// expansion for diagnostics and source maps.
	Source token.Token
}

// Len returns the encoded length of the instruction in bytes.
func (in Instruction) Len() int {
	return 1 + len(in.Immediate)
}

// elementKind discriminates the pre-resolution stream elements.
type elementKind int

const (
	// elemOp is a bare opcode with no immediate
	elemOp elementKind = iota

	// elemPush is a push of a known value; its width never changes
	elemPush

	// elemLabelDef marks a jump destination and emits JUMPDEST
	elemLabelDef

	// elemLabelRef pushes a label's byte offset; width is provisional
	// until the fixed point stabilizes
	elemLabelRef

	// elemTableRef pushes a table's start offset at a fixed two-byte width
	elemTableRef
)

// element is one entry in the expanded instruction-level stream. Label
// references carry a provisional immediate width that the fixed-point pass
// adjusts; everything else has a fixed encoding length.
type element struct {
	kind  elementKind
	op    evm.Code     // elemOp
	value *uint256.Int // elemPush
	width int          // immediate width for elemPush/elemLabelRef/elemTableRef
	label string       // scoped label key for elemLabelDef/elemLabelRef
	table string       // table name for elemTableRef
	tok   token.Token  // originating source token
}

// length returns the current encoded length of the element in bytes.
func (e *element) length() int {
	switch e.kind {
	case elemOp, elemLabelDef:
		return 1
	default:
		return 1 + e.width
	}
}
