// Package token defines language keywords and tokens used when lexing Huff
// source code.
package token

// Type describes the type of a token as a string.
type Type string

// Position points to a particular location in an input string.
type Position struct {
	Value     rune
	Char      int
	LineStart int
	Line      int
	Column    int
	File      string
}

// LineNumber returns the 1-indexed line number for this position in the input.
func (p Position) LineNumber() int {
	return p.Line + 1
}

// ColumnNumber returns the 1-indexed column number for this position in the input.
func (p Position) ColumnNumber() int {
	return p.Column + 1
}

// Token represents one token lexed from the input source code.
type Token struct {
	Type          Type
	Literal       string
	StartPosition Position
	EndPosition   Position
}

// Token types
const (
	ASSIGN           Type = "="
	COLON            Type = ":"
	COMMA            Type = ","
	CONSTANT         Type = "CONSTANT"
	DEFINE           Type = "#define"
	EOF              Type = "EOF"
	FREE_STORAGE     Type = "FREE_STORAGE_POINTER"
	FUNCTION         Type = "FUNCTION"
	GT               Type = ">"
	HEX              Type = "HEX"
	IDENT            Type = "IDENT"
	ILLEGAL          Type = "ILLEGAL"
	INCLUDE          Type = "#include"
	INT              Type = "INT"
	JUMPTABLE        Type = "JUMPTABLE"
	JUMPTABLE_PACKED Type = "JUMPTABLE_PACKED"
	LBRACE           Type = "{"
	LBRACKET         Type = "["
	LPAREN           Type = "("
	LT               Type = "<"
	MACRO            Type = "MACRO"
	RBRACE           Type = "}"
	RBRACKET         Type = "]"
	RETURNS          Type = "RETURNS"
	RPAREN           Type = ")"
	STRING           Type = "STRING"
	TABLE            Type = "TABLE"
	TAKES            Type = "TAKES"
)

// Reserved keywords. These only carry meaning in definition headers; inside a
// macro body an identifier spelled like a keyword is reported by the parser.
var keywords = map[string]Type{
	"constant":             CONSTANT,
	"function":             FUNCTION,
	"jumptable":            JUMPTABLE,
	"jumptable__packed":    JUMPTABLE_PACKED,
	"macro":                MACRO,
	"returns":              RETURNS,
	"table":                TABLE,
	"takes":                TAKES,
	"FREE_STORAGE_POINTER": FREE_STORAGE,
}

// LookupIdentifier is used to determine whether an identifier is a keyword.
func LookupIdentifier(identifier string) Type {
	if tok, ok := keywords[identifier]; ok {
		return tok
	}
	return IDENT
}
