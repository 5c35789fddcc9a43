package codegen

import (
	"encoding/hex"
	"sort"
)

// FunctionInfo describes one declared external function: its canonical
// signature and the 4-byte selector derived from it.
type FunctionInfo struct {
	Name      string
	Signature string
	Selector  [4]byte
	Inputs    int
	Outputs   int
}

// MacroInfo describes one defined macro.
type MacroInfo struct {
	Name    string
	Params  int
	Takes   int
	Returns int
}

// Artifact is the finished output for one compilation target. It is
// immutable once returned.
type Artifact struct {
	// SourceFile is the canonical path of the entry file.
	SourceFile string

	// Bytecode is the deployable bytecode.
	Bytecode []byte

	// Runtime is the post-deployment bytecode.
	Runtime []byte

	// Instructions is the runtime instruction stream, for source maps and
	// disassembly.
	Instructions []Instruction

	// TableOffsets maps emitted table names to byte offsets in the runtime.
	TableOffsets map[string]int

	// Functions and Macros are metadata sorted by name.
	Functions []FunctionInfo
	Macros    []MacroInfo
}

// BytecodeHex returns the deployable bytecode as a lowercase hex string.
func (a *Artifact) BytecodeHex() string {
	return hex.EncodeToString(a.Bytecode)
}

// RuntimeHex returns the runtime bytecode as a lowercase hex string.
func (a *Artifact) RuntimeHex() string {
	return hex.EncodeToString(a.Runtime)
}

// Artifact packages a generation result together with the contract's
// declared functions and macros.
func (g *Generator) Artifact(result *Result) *Artifact {
	artifact := &Artifact{
		SourceFile:   g.contract.EntryFile,
		Bytecode:     result.Bytecode,
		Runtime:      result.Runtime,
		Instructions: result.Instructions,
		TableOffsets: result.TableOffsets,
	}
	for name, fn := range g.contract.Functions {
		signature := fn.Signature()
		var selector [4]byte
		sum := selectorOf(signature).Bytes32()
		copy(selector[:], sum[28:])
		artifact.Functions = append(artifact.Functions, FunctionInfo{
			Name:      name,
			Signature: signature,
			Selector:  selector,
			Inputs:    len(fn.Inputs()),
			Outputs:   len(fn.Outputs()),
		})
	}
	for name, macro := range g.contract.Macros {
		artifact.Macros = append(artifact.Macros, MacroInfo{
			Name:    name,
			Params:  len(macro.Params()),
			Takes:   macro.Takes(),
			Returns: macro.Returns(),
		})
	}
	sort.Slice(artifact.Functions, func(i, j int) bool {
		return artifact.Functions[i].Name < artifact.Functions[j].Name
	})
	sort.Slice(artifact.Macros, func(i, j int) bool {
		return artifact.Macros[i].Name < artifact.Macros[j].Name
	})
	return artifact
}
