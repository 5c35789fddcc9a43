// Package codegen lowers a resolved contract to EVM bytecode. The entry
// macro MAIN is expanded into a flat instruction stream, label and table
// references are narrowed to their final push widths by iterating layout
// passes, and referenced tables are appended after the code. When a
// CONSTRUCTOR macro is present its code is emitted ahead of a bootstrap
// sequence that copies the runtime into memory and returns it.
package codegen

import (
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/evm"
	"github.com/hufflang/huffc/resolver"
	"github.com/hufflang/huffc/token"
)

// EntryMacro is the required runtime entry point of every contract.
const EntryMacro = "MAIN"

// ConstructorMacro, when defined, supplies initialization code that runs
// once at deployment, ahead of the bootstrap that returns the runtime.
const ConstructorMacro = "CONSTRUCTOR"

// Result is the generated bytecode for one contract.
type Result struct {
	// Bytecode is the deployment bytecode: constructor code, the bootstrap
	// sequence, and the runtime.
	Bytecode []byte

	// Runtime is the code that lives on chain after deployment, including
	// any referenced table data appended after the instructions.
	Runtime []byte

	// Instructions is the runtime instruction stream with final offsets,
	// excluding appended table data.
	Instructions []Instruction

	// TableOffsets maps each emitted table name to its byte offset within
	// the runtime.
	TableOffsets map[string]int
}

// Option is a configuration function for a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for debug tracing during generation.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// Generator lowers one resolved contract. It is single use.
type Generator struct {
	contract *resolver.Contract
	logger   zerolog.Logger

	// codesizes caches __codesize results per macro name; sizing tracks
	// measurements in progress to reject self-referential sizes
	codesizes map[string]int
	sizing    map[string]bool

	// usedSet tracks which tables the code references; usedTables records
	// them in mark order so speculative marks can be rolled back
	usedTables []string
	usedSet    map[string]bool

	// maxPasses bounds offset resolution, normally MaxFixedPointPasses
	maxPasses int
}

// New creates a Generator for the contract.
func New(contract *resolver.Contract, opts ...Option) *Generator {
	g := &Generator{
		contract:  contract,
		logger:    zerolog.Nop(),
		codesizes: map[string]int{},
		sizing:    map[string]bool{},
		usedSet:   map[string]bool{},
		maxPasses: MaxFixedPointPasses,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the runtime and deployment bytecode for the contract.
func (g *Generator) Generate() (*Result, error) {
	main, ok := g.contract.Macros[EntryMacro]
	if !ok {
		return nil, errors.New(errors.UnresolvedReference, errors.SourceLocation{Filename: g.contract.EntryFile},
			"entry macro %s is not defined", EntryMacro)
	}
	root, err := newFrame(main, nil)
	if err != nil {
		return nil, err
	}
	var elems []element
	if err := g.expand(main, root, 0, &elems); err != nil {
		return nil, err
	}
	tables := g.emittedTables()
	lay, err := g.resolveOffsets(elems, tables)
	if err != nil {
		return nil, err
	}
	runtime, instructions := assemble(elems, lay)
	for _, name := range tables {
		data, err := g.tableBytes(name, root, lay)
		if err != nil {
			return nil, err
		}
		runtime = append(runtime, data...)
	}
	result := &Result{
		Runtime:      runtime,
		Instructions: instructions,
		TableOffsets: lay.tableOffsets,
	}
	ctor, err := g.constructorCode()
	if err != nil {
		return nil, err
	}
	result.Bytecode = deployBytecode(ctor, runtime)
	g.logger.Debug().
		Int("runtime_len", len(result.Runtime)).
		Int("bytecode_len", len(result.Bytecode)).
		Int("tables", len(g.usedTables)).
		Msg("generated contract")
	return result, nil
}

// constructorCode expands and assembles the CONSTRUCTOR macro, if defined.
// Constructor code runs before the runtime is laid out, so it may not
// reference tables; their offsets only exist within the runtime.
func (g *Generator) constructorCode() ([]byte, error) {
	ctor, ok := g.contract.Macros[ConstructorMacro]
	if !ok {
		return nil, nil
	}
	mark := len(g.usedTables)
	root, err := newFrame(ctor, nil)
	if err != nil {
		return nil, err
	}
	var elems []element
	if err := g.expand(ctor, root, 0, &elems); err != nil {
		return nil, err
	}
	for i := range elems {
		if elems[i].kind == elemTableRef {
			return nil, errors.New(errors.UnresolvedReference, locationOf(elems[i].tok),
				"tables cannot be referenced from %s; their offsets exist only in the runtime", ConstructorMacro)
		}
	}
	for _, name := range g.usedTables[mark:] {
		delete(g.usedSet, name)
	}
	g.usedTables = g.usedTables[:mark]
	lay, err := g.resolveOffsets(elems, nil)
	if err != nil {
		return nil, err
	}
	code, _ := assemble(elems, lay)
	return code, nil
}

// deployBytecode wraps the runtime in the standard bootstrap: the runtime
// length and its offset within the deployment code are pushed, CODECOPY
// moves the runtime to memory offset zero, and RETURN hands it to the EVM
// as the deployed code. RETURNDATASIZE supplies the zero. The push widths
// and the runtime start offset depend on each other, so they are settled
// with a short loop.
func deployBytecode(ctor, runtime []byte) []byte {
	// 7 fixed bytes: two push opcodes, DUP1, RETURNDATASIZE, CODECOPY,
	// RETURNDATASIZE, RETURN
	lenWidth := evm.OffsetWidth(len(runtime))
	startWidth := 1
	for {
		start := len(ctor) + lenWidth + startWidth + 7
		if want := evm.OffsetWidth(start); want != startWidth {
			startWidth = want
			continue
		}
		break
	}
	start := len(ctor) + lenWidth + startWidth + 7
	out := make([]byte, 0, start+len(runtime))
	out = append(out, ctor...)
	out = evm.EncodeOffsetPush(out, len(runtime), lenWidth)
	out = append(out, byte(evm.Dup1))
	out = evm.EncodeOffsetPush(out, start, startWidth)
	out = append(out, byte(evm.Returndatasize), byte(evm.Codecopy))
	out = append(out, byte(evm.Returndatasize), byte(evm.Return))
	return append(out, runtime...)
}

// assemble encodes the element stream into bytes using the final widths.
func assemble(elems []element, lay *layout) ([]byte, []Instruction) {
	code := make([]byte, 0, lay.codeLen)
	instructions := make([]Instruction, 0, len(elems))
	offset := 0
	for i := range elems {
		e := &elems[i]
		var op evm.Code
		var immediate []byte
		switch e.kind {
		case elemOp:
			op = e.op
		case elemLabelDef:
			op = evm.Jumpdest
		case elemPush:
			op = evm.PushFor(e.width)
			buf := e.value.Bytes32()
			immediate = buf[32-e.width:]
		case elemLabelRef:
			op = evm.PushFor(e.width)
			immediate = offsetBytes(lay.labelOffsets[e.label], e.width)
		case elemTableRef:
			op = evm.PushFor(e.width)
			immediate = offsetBytes(lay.tableOffsets[e.table], e.width)
		}
		code = append(code, byte(op))
		code = append(code, immediate...)
		instructions = append(instructions, Instruction{
			Offset:    offset,
			Op:        op,
			Immediate: immediate,
			Source:    e.tok,
		})
		offset += 1 + len(immediate)
	}
	return code, instructions
}

// tableBytes renders one table's data. Jump table entries are the offsets
// of the named labels, looked up in the entry macro's own scope.
func (g *Generator) tableBytes(name string, root *frame, lay *layout) ([]byte, error) {
	table, _ := g.contract.Table(name)
	switch table := table.(type) {
	case *ast.CodeTable:
		return table.Data(), nil
	case *ast.JumpTable:
		entrySize := table.EntrySize()
		out := make([]byte, 0, table.Size())
		for _, label := range table.Labels() {
			key, ok := root.labels[label]
			if !ok {
				return nil, errors.New(errors.UnresolvedReference, locationOf(table.Token()),
					"jump table %s references label %q, which is not declared in %s", name, label, root.macro.Name())
			}
			out = appendEntry(out, lay.labelOffsets[key], entrySize)
		}
		return out, nil
	}
	return nil, errors.New(errors.UnresolvedReference, errors.SourceLocation{Filename: g.contract.EntryFile},
		"table %q is not defined", name)
}

func (g *Generator) markTableUsed(name string) {
	if !g.usedSet[name] {
		g.usedSet[name] = true
		g.usedTables = append(g.usedTables, name)
	}
}

// emittedTables returns the referenced tables in declaration order.
// Unreferenced tables take no space in the output.
func (g *Generator) emittedTables() []string {
	var out []string
	for _, name := range g.contract.TableOrder {
		if g.usedSet[name] {
			out = append(out, name)
		}
	}
	return out
}

// codesize measures a macro as if it were compiled standalone, caching the
// result. The expansion runs through the same fixed point as real code, and
// table start pushes have a fixed width, so the measured size matches the
// bytes the macro emits inline.
func (g *Generator) codesize(macro *ast.Macro) (int, error) {
	if size, ok := g.codesizes[macro.Name()]; ok {
		return size, nil
	}
	if g.sizing[macro.Name()] {
		return 0, errors.New(errors.RecursionLimitExceeded, locationOf(macro.Token()),
			"__codesize of %s depends on its own size", macro.Name())
	}
	g.sizing[macro.Name()] = true
	defer delete(g.sizing, macro.Name())
	root, err := newFrame(macro, nil)
	if err != nil {
		return 0, err
	}
	// measuring is not emitting: tables referenced only here stay unemitted
	mark := len(g.usedTables)
	var elems []element
	if err := g.expand(macro, root, 0, &elems); err != nil {
		return 0, err
	}
	for _, name := range g.usedTables[mark:] {
		delete(g.usedSet, name)
	}
	g.usedTables = g.usedTables[:mark]
	lay, err := g.resolveOffsets(elems, nil)
	if err != nil {
		return 0, err
	}
	g.codesizes[macro.Name()] = lay.codeLen
	return lay.codeLen, nil
}

// selectorOf computes the 4-byte function selector for a canonical
// signature, the first four bytes of its Keccak-256 hash.
func selectorOf(signature string) *uint256.Int {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	sum := hash.Sum(nil)
	return new(uint256.Int).SetBytes(sum[:4])
}

func offsetBytes(offset, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(offset)
		offset >>= 8
	}
	return out
}

func appendEntry(dst []byte, offset, size int) []byte {
	entry := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		entry[i] = byte(offset)
		offset >>= 8
	}
	return append(dst, entry...)
}

func locationOf(tok token.Token) errors.SourceLocation {
	return errors.SourceLocation{
		Filename: tok.StartPosition.File,
		Line:     tok.StartPosition.LineNumber(),
		Column:   tok.StartPosition.ColumnNumber(),
	}
}
