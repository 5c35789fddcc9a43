package codegen

import (
	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/evm"
)

const (
	// maxOffsetWidth is the provisional immediate width assigned to label
	// references before their targets are known. Four bytes covers any
	// offset in code up to the EVM contract size limit.
	maxOffsetWidth = 4

	// tableRefWidth is the fixed immediate width of a table start push. The
	// EVM code size cap (0x6000 bytes) always fits in two bytes, and a fixed
	// width keeps a macro's measured size independent of where its tables
	// end up in the final stream.
	tableRefWidth = 2

	// MaxFixedPointPasses bounds the offset resolution loop. Widths only
	// shrink between passes, so the loop normally settles in two or three;
	// hitting the cap means the layout never stabilized.
	MaxFixedPointPasses = 32
)

// layout holds the byte positions computed for one code stream: every label
// definition, the start of every appended table, and the total lengths.
type layout struct {
	labelOffsets map[string]int
	tableOffsets map[string]int

	// codeLen is the length of the instruction stream, before tables
	codeLen int

	// totalLen includes the table bytes appended after the code
	totalLen int
}

// resolveOffsets iterates layout passes until every label reference is
// encoded with its final width. Each pass measures the stream under the
// current widths, then shrinks any reference whose target offset fits in
// fewer bytes. Shrinking a reference moves later offsets down, which can
// only shrink other references, so the process is monotone. Table start
// pushes keep their fixed width and never participate.
func (g *Generator) resolveOffsets(elems []element, tables []string) (*layout, error) {
	var lay *layout
	for pass := 1; ; pass++ {
		if pass > g.maxPasses {
			return nil, errors.New(errors.OffsetResolutionDivergence, errors.SourceLocation{},
				"offset resolution did not stabilize after %d passes", g.maxPasses)
		}
		lay = g.measure(elems, tables)
		changed, err := g.shrink(elems, lay)
		if err != nil {
			return nil, err
		}
		g.logger.Debug().
			Int("pass", pass).
			Int("code_len", lay.codeLen).
			Int("total_len", lay.totalLen).
			Bool("changed", changed).
			Msg("offset resolution pass")
		if !changed {
			return lay, nil
		}
	}
}

// measure walks the stream under the current widths, recording where each
// label lands and where each table starts.
func (g *Generator) measure(elems []element, tables []string) *layout {
	lay := &layout{
		labelOffsets: map[string]int{},
		tableOffsets: map[string]int{},
	}
	offset := 0
	for i := range elems {
		e := &elems[i]
		if e.kind == elemLabelDef {
			lay.labelOffsets[e.label] = offset
		}
		offset += e.length()
	}
	lay.codeLen = offset
	for _, name := range tables {
		lay.tableOffsets[name] = offset
		offset += g.tableByteSize(name)
	}
	lay.totalLen = offset
	return lay
}

// shrink narrows any label reference whose resolved offset fits in fewer
// immediate bytes than currently reserved. Widths never grow, which keeps
// the fixed point monotone. Returns whether any width changed.
func (g *Generator) shrink(elems []element, lay *layout) (bool, error) {
	changed := false
	for i := range elems {
		e := &elems[i]
		if e.kind != elemLabelRef {
			continue
		}
		offset, ok := lay.labelOffsets[e.label]
		if !ok {
			return false, errors.New(errors.UnresolvedReference, locationOf(e.tok),
				"label %q is never declared", e.tok.Literal)
		}
		if want := evm.OffsetWidth(offset); want < e.width {
			e.width = want
			changed = true
		}
	}
	return changed, nil
}

func (g *Generator) tableByteSize(name string) int {
	table, ok := g.contract.Table(name)
	if !ok {
		return 0
	}
	switch table := table.(type) {
	case *ast.JumpTable:
		return table.Size()
	case *ast.CodeTable:
		return table.Size()
	}
	return 0
}
