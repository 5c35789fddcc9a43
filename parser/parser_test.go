package parser

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
)

func parse(t *testing.T, input string) *ast.File {
	t.Helper()
	file, err := Parse(context.Background(), input, WithFilename("test.huff"))
	require.NoError(t, err)
	require.NotNil(t, file)
	return file
}

func parseFail(t *testing.T, input string) *errors.CompileErrors {
	t.Helper()
	file, err := Parse(context.Background(), input)
	require.Error(t, err)
	require.Nil(t, file, "no partial AST on failure")
	var errs *errors.CompileErrors
	require.ErrorAs(t, err, &errs)
	return errs
}

func TestParseMacro(t *testing.T) {
	file := parse(t, `
		#define macro ADD_TWO(a, b) = takes(0) returns(1) {
			<a> <b> add
		}
	`)
	require.Len(t, file.Defs, 1)
	macro, ok := file.Defs[0].(*ast.Macro)
	require.True(t, ok)
	require.Equal(t, "ADD_TWO", macro.Name())
	require.Equal(t, []string{"a", "b"}, macro.Params())
	require.Equal(t, 0, macro.Takes())
	require.Equal(t, 1, macro.Returns())
	require.Len(t, macro.Body(), 3)

	argA, ok := macro.Body()[0].(*ast.ArgCall)
	require.True(t, ok)
	require.Equal(t, "a", argA.Name())
	opcode, ok := macro.Body()[2].(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "add", opcode.Name())
}

func TestParseMacroWithoutStackAnnotations(t *testing.T) {
	file := parse(t, `#define macro MAIN() = { 0x00 0x00 return }`)
	macro := file.Defs[0].(*ast.Macro)
	require.Equal(t, 0, macro.Takes())
	require.Equal(t, 0, macro.Returns())
	require.Len(t, macro.Body(), 3)
}

func TestParseMacroBodyStatements(t *testing.T) {
	file := parse(t, `
		#define macro MAIN() = takes(0) returns(0) {
			start:
			0x20 [SLOT] sload
			HELPER(0x01, <x>)
			__codesize(HELPER)
			__tablestart(targets)
			__FUNC_SIG(transfer)
			start jump
		}
	`)
	body := file.Defs[0].(*ast.Macro).Body()
	require.IsType(t, &ast.LabelDef{}, body[0])
	require.IsType(t, &ast.PushLiteral{}, body[1])
	require.IsType(t, &ast.ConstantRef{}, body[2])
	require.IsType(t, &ast.Ident{}, body[3])
	require.IsType(t, &ast.MacroCall{}, body[4])
	require.IsType(t, &ast.Builtin{}, body[5])
	require.IsType(t, &ast.Builtin{}, body[6])
	require.IsType(t, &ast.Builtin{}, body[7])
	require.IsType(t, &ast.Ident{}, body[8])
	require.IsType(t, &ast.Ident{}, body[9])

	call := body[4].(*ast.MacroCall)
	require.Equal(t, "HELPER", call.Name())
	require.Len(t, call.Args(), 2)

	sig := body[7].(*ast.Builtin)
	require.Equal(t, ast.BuiltinFuncSig, sig.Name())
	require.Equal(t, "transfer", sig.Arg())
}

func TestParseConstant(t *testing.T) {
	file := parse(t, `
		#define constant OWNER_SLOT = FREE_STORAGE_POINTER()
		#define constant MAX = 0xffff
	`)
	require.Len(t, file.Defs, 2)

	fsp := file.Defs[0].(*ast.Constant)
	require.True(t, fsp.IsFreeStoragePointer())
	require.Nil(t, fsp.Value())

	max := file.Defs[1].(*ast.Constant)
	require.False(t, max.IsFreeStoragePointer())
	require.Equal(t, uint256.NewInt(0xffff), max.Value())
}

func TestParseFunction(t *testing.T) {
	file := parse(t, `
		#define function balanceOf(address) view returns (uint256)
		#define function transfer(address, uint256) nonpayable returns (bool)
		#define function deposit() payable returns ()
	`)
	require.Len(t, file.Defs, 3)

	balanceOf := file.Defs[0].(*ast.Function)
	require.Equal(t, "balanceOf(address)", balanceOf.Signature())
	require.Equal(t, "view", balanceOf.Visibility())
	require.Equal(t, []string{"address"}, balanceOf.Inputs())
	require.Equal(t, []string{"uint256"}, balanceOf.Outputs())

	transfer := file.Defs[1].(*ast.Function)
	require.Equal(t, "transfer(address,uint256)", transfer.Signature())

	deposit := file.Defs[2].(*ast.Function)
	require.Empty(t, deposit.Inputs())
	require.Empty(t, deposit.Outputs())
}

func TestParseArrayTypes(t *testing.T) {
	file := parse(t, `#define function batch(address[], uint256[4]) nonpayable returns ()`)
	fn := file.Defs[0].(*ast.Function)
	require.Equal(t, []string{"address[]", "uint256[4]"}, fn.Inputs())
	require.Equal(t, "batch(address[],uint256[4])", fn.Signature())
}

func TestParseJumpTable(t *testing.T) {
	file := parse(t, `
		#define jumptable JUMPS {
			case_one case_two case_three
		}
		#define jumptable__packed PACKED {
			a b
		}
	`)
	wide := file.Defs[0].(*ast.JumpTable)
	require.Equal(t, []string{"case_one", "case_two", "case_three"}, wide.Labels())
	require.False(t, wide.Packed())
	require.Equal(t, 32, wide.EntrySize())
	require.Equal(t, 96, wide.Size())

	packed := file.Defs[1].(*ast.JumpTable)
	require.True(t, packed.Packed())
	require.Equal(t, 2, packed.EntrySize())
	require.Equal(t, 4, packed.Size())
}

func TestParseCodeTable(t *testing.T) {
	file := parse(t, `
		#define table DATA {
			0xdeadbeef
		}
	`)
	table := file.Defs[0].(*ast.CodeTable)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, table.Data())
	require.Equal(t, 4, table.Size())
}

func TestParseInclude(t *testing.T) {
	file := parse(t, `
		#include "./lib/safemath.huff"
		#define macro MAIN() = takes(0) returns(0) {}
	`)
	includes := file.Includes()
	require.Len(t, includes, 1)
	require.Equal(t, "./lib/safemath.huff", includes[0].Path())
}

func TestDuplicateTopLevelName(t *testing.T) {
	errs := parseFail(t, `
		#define macro FOO() = takes(0) returns(0) {}
		#define macro FOO() = takes(0) returns(0) {}
	`)
	require.Equal(t, 1, errs.Count())
	compileErr := errs.Unwrap()[0].(*errors.CompileError)
	require.Equal(t, errors.ParseError, compileErr.Kind)
	require.Contains(t, compileErr.Message, "FOO")
}

func TestDuplicateAcrossTableNamespaces(t *testing.T) {
	// jumptable and table share one namespace
	parseFail(t, `
		#define jumptable T { a }
		#define table T { 0x00 }
	`)
}

func TestSameNameDifferentNamespaces(t *testing.T) {
	parse(t, `
		#define constant VALUE = 0x01
		#define macro VALUE() = takes(0) returns(0) {}
	`)
}

func TestLiteralTooLarge(t *testing.T) {
	errs := parseFail(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x0101010101010101010101010101010101010101010101010101010101010101ff
		}
	`)
	compileErr := errs.Unwrap()[0].(*errors.CompileError)
	require.Equal(t, errors.LiteralTooLarge, compileErr.Kind)
}

func TestLeadingZerosAreNotTooLarge(t *testing.T) {
	file := parse(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x0000000000000000000000000000000000000000000000000000000000000001
		}
	`)
	lit := file.Defs[0].(*ast.Macro).Body()[0].(*ast.PushLiteral)
	require.Equal(t, uint256.NewInt(1), lit.Value())
	require.Equal(t, 32, lit.Width())
}

func TestLiteralWidthFollowsWrittenDigits(t *testing.T) {
	file := parse(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x01 0x0001 0x123 0x00
		}
	`)
	body := file.Defs[0].(*ast.Macro).Body()
	widths := make([]int, len(body))
	for i, stmt := range body {
		widths[i] = stmt.(*ast.PushLiteral).Width()
	}
	require.Equal(t, []int{1, 2, 2, 1}, widths)
}

func TestPaddedLiteralWiderThanPush32(t *testing.T) {
	// the value fits in one byte, but 33 written bytes exceed PUSH32
	errs := parseFail(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x000000000000000000000000000000000000000000000000000000000000000001
		}
	`)
	compileErr := errs.Unwrap()[0].(*errors.CompileError)
	require.Equal(t, errors.LiteralTooLarge, compileErr.Kind)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing macro name", `#define macro () = takes(0) returns(0) {}`},
		{"missing body brace", `#define macro M() = takes(0) returns(0)`},
		{"unclosed body", `#define macro M() = takes(0) returns(0) { add`},
		{"bad statement", `#define macro M() = takes(0) returns(0) { #define }`},
		{"unknown builtin", `#define macro M() = takes(0) returns(0) { __frob(x) }`},
		{"missing constant value", `#define constant C =`},
		{"bad visibility", `#define function f() external returns ()`},
		{"empty jumptable", `#define jumptable T {}`},
		{"odd code table digits", `#define table T { 0x123 }`},
		{"stray top level token", `add`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parseFail(t, tt.input)
		})
	}
}

func TestErrorRecoveryCollectsMultiple(t *testing.T) {
	errs := parseFail(t, `
		#define macro A() = takes(0) returns(0) { 0x0101010101010101010101010101010101010101010101010101010101010101ff }
		#define macro B() = takes(0) returns(0) { __frob(x) }
	`)
	require.GreaterOrEqual(t, errs.Count(), 2, "parser recovers at the next definition")
}

func TestMaxErrorsCap(t *testing.T) {
	input := ""
	for i := 0; i < 30; i++ {
		input += "#define macro M() = takes(0) returns(0) { __frob(x) }\n"
	}
	errs := parseFail(t, input)
	require.LessOrEqual(t, errs.Count(), MaxErrors)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, `#define macro MAIN() = takes(0) returns(0) {}`)
	require.ErrorIs(t, err, context.Canceled)
}
