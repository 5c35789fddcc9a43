// Package evm defines the EVM opcodes emitted by the Huff compiler.
//
// Only instruction encoding is covered here: each opcode has a byte value, a
// mnemonic, and an immediate size (nonzero only for the push family). Gas and
// execution semantics are intentionally absent.
package evm

import "fmt"

// Code is the single byte value of an EVM opcode.
type Code byte

const (
	Stop           Code = 0x00
	Add            Code = 0x01
	Mul            Code = 0x02
	Sub            Code = 0x03
	Div            Code = 0x04
	Sdiv           Code = 0x05
	Mod            Code = 0x06
	Smod           Code = 0x07
	Addmod         Code = 0x08
	Mulmod         Code = 0x09
	Exp            Code = 0x0a
	Signextend     Code = 0x0b
	Lt             Code = 0x10
	Gt             Code = 0x11
	Slt            Code = 0x12
	Sgt            Code = 0x13
	Eq             Code = 0x14
	Iszero         Code = 0x15
	And            Code = 0x16
	Or             Code = 0x17
	Xor            Code = 0x18
	Not            Code = 0x19
	Byte           Code = 0x1a
	Shl            Code = 0x1b
	Shr            Code = 0x1c
	Sar            Code = 0x1d
	Sha3           Code = 0x20
	Address        Code = 0x30
	Balance        Code = 0x31
	Origin         Code = 0x32
	Caller         Code = 0x33
	Callvalue      Code = 0x34
	Calldataload   Code = 0x35
	Calldatasize   Code = 0x36
	Calldatacopy   Code = 0x37
	Codesize       Code = 0x38
	Codecopy       Code = 0x39
	Gasprice       Code = 0x3a
	Extcodesize    Code = 0x3b
	Extcodecopy    Code = 0x3c
	Returndatasize Code = 0x3d
	Returndatacopy Code = 0x3e
	Extcodehash    Code = 0x3f
	Blockhash      Code = 0x40
	Coinbase       Code = 0x41
	Timestamp      Code = 0x42
	Number         Code = 0x43
	Prevrandao     Code = 0x44
	Gaslimit       Code = 0x45
	Chainid        Code = 0x46
	Selfbalance    Code = 0x47
	Basefee        Code = 0x48
	Pop            Code = 0x50
	Mload          Code = 0x51
	Mstore         Code = 0x52
	Mstore8        Code = 0x53
	Sload          Code = 0x54
	Sstore         Code = 0x55
	Jump           Code = 0x56
	Jumpi          Code = 0x57
	Pc             Code = 0x58
	Msize          Code = 0x59
	Gas            Code = 0x5a
	Jumpdest       Code = 0x5b
	Push0          Code = 0x5f
	Push1          Code = 0x60
	Push2          Code = 0x61
	Push32         Code = 0x7f
	Dup1           Code = 0x80
	Dup16          Code = 0x8f
	Swap1          Code = 0x90
	Swap16         Code = 0x9f
	Log0           Code = 0xa0
	Log4           Code = 0xa4
	Create         Code = 0xf0
	Call           Code = 0xf1
	Callcode       Code = 0xf2
	Return         Code = 0xf3
	Delegatecall   Code = 0xf4
	Create2        Code = 0xf5
	Staticcall     Code = 0xfa
	Revert         Code = 0xfd
	Invalid        Code = 0xfe
	Selfdestruct   Code = 0xff
)

// Info contains information about an opcode.
type Info struct {
	Code Code
	Name string

	// ImmediateSize is the number of operand bytes that follow the opcode in
	// the instruction stream. Nonzero only for PUSH1 through PUSH32.
	ImmediateSize int
}

var (
	infos     [256]Info
	mnemonics = map[string]Code{}
)

func register(op Code, name string) {
	infos[op] = Info{Code: op, Name: name}
	mnemonics[name] = op
}

func init() {
	type opName struct {
		op   Code
		name string
	}
	ops := []opName{
		{Stop, "stop"},
		{Add, "add"},
		{Mul, "mul"},
		{Sub, "sub"},
		{Div, "div"},
		{Sdiv, "sdiv"},
		{Mod, "mod"},
		{Smod, "smod"},
		{Addmod, "addmod"},
		{Mulmod, "mulmod"},
		{Exp, "exp"},
		{Signextend, "signextend"},
		{Lt, "lt"},
		{Gt, "gt"},
		{Slt, "slt"},
		{Sgt, "sgt"},
		{Eq, "eq"},
		{Iszero, "iszero"},
		{And, "and"},
		{Or, "or"},
		{Xor, "xor"},
		{Not, "not"},
		{Byte, "byte"},
		{Shl, "shl"},
		{Shr, "shr"},
		{Sar, "sar"},
		{Sha3, "sha3"},
		{Address, "address"},
		{Balance, "balance"},
		{Origin, "origin"},
		{Caller, "caller"},
		{Callvalue, "callvalue"},
		{Calldataload, "calldataload"},
		{Calldatasize, "calldatasize"},
		{Calldatacopy, "calldatacopy"},
		{Codesize, "codesize"},
		{Codecopy, "codecopy"},
		{Gasprice, "gasprice"},
		{Extcodesize, "extcodesize"},
		{Extcodecopy, "extcodecopy"},
		{Returndatasize, "returndatasize"},
		{Returndatacopy, "returndatacopy"},
		{Extcodehash, "extcodehash"},
		{Blockhash, "blockhash"},
		{Coinbase, "coinbase"},
		{Timestamp, "timestamp"},
		{Number, "number"},
		{Prevrandao, "prevrandao"},
		{Gaslimit, "gaslimit"},
		{Chainid, "chainid"},
		{Selfbalance, "selfbalance"},
		{Basefee, "basefee"},
		{Pop, "pop"},
		{Mload, "mload"},
		{Mstore, "mstore"},
		{Mstore8, "mstore8"},
		{Sload, "sload"},
		{Sstore, "sstore"},
		{Jump, "jump"},
		{Jumpi, "jumpi"},
		{Pc, "pc"},
		{Msize, "msize"},
		{Gas, "gas"},
		{Jumpdest, "jumpdest"},
		{Push0, "push0"},
		{Create, "create"},
		{Call, "call"},
		{Callcode, "callcode"},
		{Return, "return"},
		{Delegatecall, "delegatecall"},
		{Create2, "create2"},
		{Staticcall, "staticcall"},
		{Revert, "revert"},
		{Invalid, "invalid"},
		{Selfdestruct, "selfdestruct"},
	}
	for _, o := range ops {
		register(o.op, o.name)
	}
	// keccak256 is the modern spelling of sha3
	mnemonics["keccak256"] = Sha3

	for i := 1; i <= 32; i++ {
		op := Code(0x5f + i)
		infos[op] = Info{Code: op, Name: fmt.Sprintf("push%d", i), ImmediateSize: i}
		mnemonics[fmt.Sprintf("push%d", i)] = op
	}
	for i := 1; i <= 16; i++ {
		register(Code(0x7f+i), fmt.Sprintf("dup%d", i))
		register(Code(0x8f+i), fmt.Sprintf("swap%d", i))
	}
	for i := 0; i <= 4; i++ {
		register(Code(0xa0+i), fmt.Sprintf("log%d", i))
	}
	// "difficulty" predates the merge but still appears in older sources
	mnemonics["difficulty"] = Prevrandao
}

// GetInfo returns information about the given opcode. Unassigned byte values
// return a zero Info whose Name is empty.
func GetInfo(op Code) Info {
	return infos[op]
}

// Lookup resolves a lowercase mnemonic to its opcode.
func Lookup(mnemonic string) (Code, bool) {
	op, ok := mnemonics[mnemonic]
	return op, ok
}

// IsPush reports whether the opcode is PUSH1 through PUSH32. PUSH0 carries no
// immediate and is excluded.
func IsPush(op Code) bool {
	return op >= Push1 && op <= Push32
}

// PushFor returns the push opcode that carries an immediate of n bytes.
// PushFor(0) returns PUSH0.
func PushFor(n int) Code {
	return Code(0x5f + n)
}

// String returns the mnemonic for the opcode, or a hex form for unassigned
// byte values.
func (op Code) String() string {
	info := infos[op]
	if info.Name == "" {
		return fmt.Sprintf("UNKNOWN_0x%02X", byte(op))
	}
	return info.Name
}
