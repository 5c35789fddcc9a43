package codegen

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/evm"
	"github.com/hufflang/huffc/resolver"
)

func generate(t *testing.T, source string) *Result {
	t.Helper()
	result, err := tryGenerate(source)
	require.NoError(t, err)
	return result
}

func tryGenerate(source string) (*Result, error) {
	cache := resolver.NewFileCache()
	cache.Preload("test.huff", source)
	contract, err := resolver.New(resolver.WithCache(cache)).
		Resolve(context.Background(), "test.huff")
	if err != nil {
		return nil, err
	}
	return New(contract).Generate()
}

func requireKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	require.Error(t, err)
	var compileErr *errors.CompileError
	require.ErrorAs(t, err, &compileErr)
	require.Equal(t, kind, compileErr.Kind)
}

func TestMinimalRuntime(t *testing.T) {
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x00 0x00 return
		}
	`)
	require.Equal(t, "60006000f3", hex.EncodeToString(result.Runtime))
	require.Equal(t, "60058060093d393df360006000f3", hex.EncodeToString(result.Bytecode))
}

func TestForwardJump(t *testing.T) {
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			end jump
			0x00 0x00
			end:
			stop
		}
	`)
	require.Equal(t, "600756600060005b00", hex.EncodeToString(result.Runtime))
	// the pushed offset points at the JUMPDEST
	require.Equal(t, byte(evm.Jumpdest), result.Runtime[result.Runtime[1]])
}

func TestLiteralPushWidths(t *testing.T) {
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x00 0xff 0x0100 0xdeadbeef
		}
	`)
	require.Equal(t, "600060ff610100"+"63deadbeef", hex.EncodeToString(result.Runtime))
}

func TestZeroPaddedLiteralKeepsWrittenWidth(t *testing.T) {
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x0001 0x000000 0x123
		}
	`)
	// padding widens the push: 0x0001 is PUSH2 0x0001, never PUSH1 0x01.
	// Odd digit counts round up, so 0x123 is also two bytes.
	require.Equal(t, "610001"+"62000000"+"610123", hex.EncodeToString(result.Runtime))
}

func TestMacroExpansionInline(t *testing.T) {
	result := generate(t, `
		#define macro PUSH_PAIR(a, b) = takes(0) returns(2) {
			<a> <b>
		}
		#define macro MAIN() = takes(0) returns(0) {
			PUSH_PAIR(0x01, 0x02)
			add
			PUSH_PAIR(0x03, 0x04)
			add
		}
	`)
	require.Equal(t, "60016002016003600401", hex.EncodeToString(result.Runtime))
}

func TestLabelScopingPerInvocation(t *testing.T) {
	result := generate(t, `
		#define macro SPIN(v) = takes(0) returns(0) {
			again:
			<v>
			again jump
		}
		#define macro MAIN() = takes(0) returns(0) {
			SPIN(0x01)
			SPIN(0x02)
		}
	`)
	// each invocation jumps to its own JUMPDEST
	require.Equal(t, "5b60016000565b6002600656", hex.EncodeToString(result.Runtime))
}

func TestArgumentForwarding(t *testing.T) {
	result := generate(t, `
		#define macro INNER(x) = takes(0) returns(1) { <x> }
		#define macro OUTER(y) = takes(0) returns(1) { INNER(<y>) }
		#define macro MAIN() = takes(0) returns(0) {
			OUTER(0x2a)
		}
	`)
	require.Equal(t, "602a", hex.EncodeToString(result.Runtime))
}

func TestOpcodeArgument(t *testing.T) {
	result := generate(t, `
		#define macro APPLY(op) = takes(2) returns(1) { <op> }
		#define macro MAIN() = takes(0) returns(0) {
			0x01 0x02 APPLY(add)
			0x03 0x04 APPLY(mul)
		}
	`)
	require.Equal(t, "60016002016003600402", hex.EncodeToString(result.Runtime))
}

func TestLabelArgument(t *testing.T) {
	result := generate(t, `
		#define macro JUMP_TO(dest) = takes(0) returns(0) {
			<dest> jump
		}
		#define macro MAIN() = takes(0) returns(0) {
			JUMP_TO(done)
			0x00
			done:
			stop
		}
	`)
	// the label written at the call site resolves in the caller's scope
	require.Equal(t, "600556"+"6000"+"5b00", hex.EncodeToString(result.Runtime))
}

func TestConstants(t *testing.T) {
	result := generate(t, `
		#define constant SLOT = FREE_STORAGE_POINTER()
		#define constant VALUE = 0xff00
		#define macro MAIN() = takes(0) returns(0) {
			[VALUE] [SLOT] sstore
		}
	`)
	require.Equal(t, "61ff00600055", hex.EncodeToString(result.Runtime))
}

func TestCodesize(t *testing.T) {
	result := generate(t, `
		#define macro SMALL() = takes(0) returns(1) {
			0x01 0x02 add
		}
		#define macro MAIN() = takes(0) returns(0) {
			__codesize(SMALL)
		}
	`)
	require.Equal(t, "6005", hex.EncodeToString(result.Runtime))
}

func TestCodesizeCoversTableReference(t *testing.T) {
	result := generate(t, `
		#define table DATA { 0xcafe }
		#define macro LOAD_START() = takes(0) returns(1) {
			__tablestart(DATA)
		}
		#define macro MAIN() = takes(0) returns(0) {
			__codesize(LOAD_START)
			LOAD_START()
		}
	`)
	// the reported size (3) equals the bytes LOAD_START emits inline,
	// since a table start pushes a fixed two-byte offset either way
	require.Equal(t, "6003"+"610005"+"cafe", hex.EncodeToString(result.Runtime))
}

func TestFuncSig(t *testing.T) {
	result := generate(t, `
		#define function transfer(address, uint256) nonpayable returns (bool)
		#define macro MAIN() = takes(0) returns(0) {
			__FUNC_SIG(transfer)
			__FUNC_SIG("balanceOf(address)")
		}
	`)
	require.Equal(t, "63a9059cbb"+"6370a08231", hex.EncodeToString(result.Runtime))
}

func TestJumpTable(t *testing.T) {
	result := generate(t, `
		#define jumptable TARGETS {
			first second
		}
		#define macro MAIN() = takes(0) returns(0) {
			__tablestart(TARGETS)
			first:
			stop
			second:
			stop
		}
	`)
	require.Equal(t, 7, result.TableOffsets["TARGETS"])
	require.Len(t, result.Runtime, 7+64)
	// 32-byte entries hold the label offsets right-aligned
	require.Equal(t, byte(3), result.Runtime[7+31])
	require.Equal(t, byte(5), result.Runtime[7+63])
	require.Equal(t, byte(evm.Jumpdest), result.Runtime[3])
	require.Equal(t, byte(evm.Jumpdest), result.Runtime[5])
}

func TestPackedJumpTable(t *testing.T) {
	result := generate(t, `
		#define jumptable__packed TARGETS {
			first second
		}
		#define macro MAIN() = takes(0) returns(0) {
			__tablestart(TARGETS)
			__tablesize(TARGETS)
			first:
			stop
			second:
			stop
		}
	`)
	// 2-byte start push, push size 4, two JUMPDEST/STOP pairs, 2-byte entries
	require.Equal(t, "610009"+"6004"+"5b005b00"+"0005"+"0007", hex.EncodeToString(result.Runtime))
}

func TestUnreferencedTableIsOmitted(t *testing.T) {
	result := generate(t, `
		#define table UNUSED { 0xdeadbeef }
		#define macro MAIN() = takes(0) returns(0) {
			0x00
		}
	`)
	require.Equal(t, "6000", hex.EncodeToString(result.Runtime))
}

func TestCodeTable(t *testing.T) {
	result := generate(t, `
		#define table DATA { 0xcafe }
		#define macro MAIN() = takes(0) returns(0) {
			__tablestart(DATA)
			pop
		}
	`)
	// table starts always push two bytes, so the start lands at 4
	require.Equal(t, "610004"+"50"+"cafe", hex.EncodeToString(result.Runtime))
}

func TestConstructor(t *testing.T) {
	result := generate(t, `
		#define macro CONSTRUCTOR() = takes(0) returns(0) {
			0x01 0x02 sstore
		}
		#define macro MAIN() = takes(0) returns(0) {
			0x00 0x00 return
		}
	`)
	require.Equal(t, "60006000f3", hex.EncodeToString(result.Runtime))
	require.Equal(t, "6001600255"+"6005"+"80"+"600e"+"3d393df3"+"60006000f3",
		hex.EncodeToString(result.Bytecode))
}

func TestWidePushOffsets(t *testing.T) {
	// the jump target lands past offset 255, forcing a two-byte push
	var body strings.Builder
	body.WriteString("end jump\n")
	for i := 0; i < 300; i++ {
		body.WriteString("stop\n")
	}
	body.WriteString("end:\nstop\n")
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			`+body.String()+`
		}
	`)
	require.Equal(t, byte(evm.PushFor(2)), result.Runtime[0])
	require.Equal(t, byte(0x01), result.Runtime[1])
	require.Equal(t, byte(0x30), result.Runtime[2])
	require.Equal(t, byte(evm.Jumpdest), result.Runtime[0x130])
}

func TestDeterministicOutput(t *testing.T) {
	source := `
		#define jumptable TARGETS { a b }
		#define macro PUSHV(v) = takes(0) returns(1) { <v> }
		#define macro MAIN() = takes(0) returns(0) {
			__tablestart(TARGETS)
			a:
			PUSHV(0x01)
			b:
			a jump
		}
	`
	first := generate(t, source)
	second := generate(t, source)
	require.Equal(t, first.Runtime, second.Runtime)
	require.Equal(t, first.Bytecode, second.Bytecode)
}

func TestInstructionStream(t *testing.T) {
	result := generate(t, `
		#define macro MAIN() = takes(0) returns(0) {
			0x1234 pop
		}
	`)
	require.Len(t, result.Instructions, 2)
	require.Equal(t, 0, result.Instructions[0].Offset)
	require.Equal(t, []byte{0x12, 0x34}, result.Instructions[0].Immediate)
	require.Equal(t, 3, result.Instructions[1].Offset)
	require.Equal(t, evm.Pop, result.Instructions[1].Op)
	require.Equal(t, "pop", result.Instructions[1].Source.Literal)
}

func TestMissingMain(t *testing.T) {
	_, err := tryGenerate(`#define macro HELPER() = takes(0) returns(0) {}`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestUndefinedMacro(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) { NOPE() }
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestUndefinedLabel(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) { nowhere jump }
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestUndefinedConstant(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) { [NOPE] }
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestLabelsDoNotLeakAcrossInvocations(t *testing.T) {
	_, err := tryGenerate(`
		#define macro DECLARES() = takes(0) returns(0) {
			inner:
			stop
		}
		#define macro MAIN() = takes(0) returns(0) {
			DECLARES()
			inner jump
		}
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestRecursionLimit(t *testing.T) {
	_, err := tryGenerate(`
		#define macro LOOP() = takes(0) returns(0) { LOOP() }
		#define macro MAIN() = takes(0) returns(0) { LOOP() }
	`)
	requireKind(t, err, errors.RecursionLimitExceeded)
}

func TestMutualRecursionLimit(t *testing.T) {
	_, err := tryGenerate(`
		#define macro PING() = takes(0) returns(0) { PONG() }
		#define macro PONG() = takes(0) returns(0) { PING() }
		#define macro MAIN() = takes(0) returns(0) { PING() }
	`)
	requireKind(t, err, errors.RecursionLimitExceeded)
}

func TestSelfReferentialCodesize(t *testing.T) {
	_, err := tryGenerate(`
		#define macro M() = takes(0) returns(0) { __codesize(M) }
		#define macro MAIN() = takes(0) returns(0) { M() }
	`)
	requireKind(t, err, errors.RecursionLimitExceeded)
}

func TestArityMismatch(t *testing.T) {
	_, err := tryGenerate(`
		#define macro TAKES_TWO(a, b) = takes(0) returns(0) { <a> <b> }
		#define macro MAIN() = takes(0) returns(0) { TAKES_TWO(0x01) }
	`)
	requireKind(t, err, errors.ArgumentArityMismatch)
}

func TestUnboundArgument(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) { <nothing> }
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestExplicitPushMnemonicRejected(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) { push1 }
	`)
	requireKind(t, err, errors.ParseError)
}

func TestTableRefInConstructorRejected(t *testing.T) {
	_, err := tryGenerate(`
		#define table DATA { 0xcafe }
		#define macro CONSTRUCTOR() = takes(0) returns(0) {
			__tablestart(DATA)
		}
		#define macro MAIN() = takes(0) returns(0) { stop }
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestJumpTableUndeclaredLabel(t *testing.T) {
	_, err := tryGenerate(`
		#define jumptable TARGETS { ghost }
		#define macro MAIN() = takes(0) returns(0) {
			__tablestart(TARGETS)
		}
	`)
	requireKind(t, err, errors.UnresolvedReference)
}

func TestDuplicateLabelInMacro(t *testing.T) {
	_, err := tryGenerate(`
		#define macro MAIN() = takes(0) returns(0) {
			here:
			here:
		}
	`)
	requireKind(t, err, errors.ParseError)
}

func TestOffsetResolutionPassBound(t *testing.T) {
	cache := resolver.NewFileCache()
	cache.Preload("test.huff", `
		#define macro MAIN() = takes(0) returns(0) {
			end jump
			end:
		}
	`)
	contract, err := resolver.New(resolver.WithCache(cache)).
		Resolve(context.Background(), "test.huff")
	require.NoError(t, err)
	g := New(contract)
	// a forward jump shrinks on the first pass, so a one-pass bound trips
	g.maxPasses = 1
	_, genErr := g.Generate()
	requireKind(t, genErr, errors.OffsetResolutionDivergence)
}

func TestArtifactMetadata(t *testing.T) {
	cache := resolver.NewFileCache()
	cache.Preload("test.huff", `
		#define function transfer(address, uint256) nonpayable returns (bool)
		#define function balanceOf(address) view returns (uint256)
		#define macro HELPER(a) = takes(0) returns(0) { <a> }
		#define macro MAIN() = takes(0) returns(0) { HELPER(0x01) }
	`)
	contract, err := resolver.New(resolver.WithCache(cache)).
		Resolve(context.Background(), "test.huff")
	require.NoError(t, err)
	generator := New(contract)
	result, err := generator.Generate()
	require.NoError(t, err)
	artifact := generator.Artifact(result)

	require.Equal(t, "test.huff", artifact.SourceFile)
	require.Equal(t, result.Bytecode, artifact.Bytecode)
	require.Equal(t, result.Runtime, artifact.Runtime)
	require.Equal(t, "6001", artifact.RuntimeHex())

	require.Len(t, artifact.Functions, 2)
	require.Equal(t, "balanceOf", artifact.Functions[0].Name)
	require.Equal(t, [4]byte{0x70, 0xa0, 0x82, 0x31}, artifact.Functions[0].Selector)
	require.Equal(t, "transfer", artifact.Functions[1].Name)
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, artifact.Functions[1].Selector)
	require.Equal(t, 2, artifact.Functions[1].Inputs)

	require.Len(t, artifact.Macros, 2)
	require.Equal(t, "HELPER", artifact.Macros[0].Name)
	require.Equal(t, 1, artifact.Macros[0].Params)
	require.Equal(t, "MAIN", artifact.Macros[1].Name)
}

func TestSelectorStability(t *testing.T) {
	first := selectorOf("transfer(address,uint256)")
	second := selectorOf("transfer(address,uint256)")
	require.Equal(t, first, second)
	require.Equal(t, uint64(0xa9059cbb), first.Uint64())
}
