// Package parser is used to generate the abstract syntax tree (AST) for a
// Huff source file.
//
// A parser is created by calling New() with a lexer as input. The parser
// should then be used only once, by calling parser.Parse() to produce the
// AST. Parsing validates structure only: bracket matching, definition header
// shape, and statement grammar. Whether a referenced name exists is checked
// later, during resolution and code generation, because definitions may be
// forward-referenced or imported.
package parser

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/hufflang/huffc/ast"
	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/lexer"
	"github.com/hufflang/huffc/token"
)

// MaxErrors is the maximum number of errors to collect before stopping.
const MaxErrors = 10

// Parse the provided input as Huff source code and return the AST. This is a
// shorthand way to create a Lexer and Parser and then call Parse on that.
func Parse(ctx context.Context, input string, options ...Option) (*ast.File, error) {
	l := lexer.New(input)
	p := New(l, options...)
	return p.Parse(ctx)
}

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the file name used in node positions and errors.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// Parser object
type Parser struct {
	// the Context supplied in the Parse() call
	ctx context.Context

	// l is our lexer
	l *lexer.Lexer

	// curToken holds the current token from the lexer
	curToken token.Token

	// peekToken holds the next token from the lexer
	peekToken token.Token

	// parsing errors collected so far
	errs errors.CompileErrors

	// defErrorCount tracks the error count at the start of the current
	// top-level definition, so the main loop can detect new errors.
	defErrorCount int

	// filename of the input
	filename string

	// top-level names seen so far, keyed by namespace then name
	seen map[string]map[string]bool
}

// New returns a Parser for the file provided by the given Lexer.
func New(l *lexer.Lexer, options ...Option) *Parser {
	p := &Parser{
		l:    l,
		seen: map[string]map[string]bool{},
	}
	for _, opt := range options {
		opt(p)
	}
	if p.filename != "" {
		l.SetFilename(p.filename)
	}
	// Prime the token pump
	p.nextToken() // curToken=<empty>, peekToken=token[0]
	p.nextToken() // curToken=token[0], peekToken=token[1]
	return p
}

// Parse the file that is provided via the lexer. On failure no AST is
// returned; all collected errors are wrapped in the returned error.
func (p *Parser) Parse(ctx context.Context) (*ast.File, error) {
	p.ctx = ctx
	if p.errs.HasErrors() {
		// Lexing the first tokens already failed in the constructor.
		return nil, p.errs.ToError()
	}
	file := &ast.File{Path: p.filename}
	for p.curToken.Type != token.EOF {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if p.errs.Count() >= MaxErrors {
			break
		}
		p.defErrorCount = p.errs.Count()
		def := p.parseDefinition()
		if def != nil {
			p.registerName(def)
			file.Defs = append(file.Defs, def)
		} else if p.errs.Count() > p.defErrorCount {
			p.synchronize()
			continue
		}
		p.nextToken()
	}
	if p.errs.HasErrors() {
		return nil, p.errs.ToError()
	}
	return file, nil
}

// synchronize skips tokens until the start of the next top-level definition.
func (p *Parser) synchronize() {
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.DEFINE) || p.curTokenIs(token.INCLUDE) {
			return
		}
		prev := p.curToken.StartPosition
		p.advanceToken()
		// Safety: if we didn't advance (lexer stuck), bail out
		if p.curToken.StartPosition == prev {
			return
		}
	}
}

func (p *Parser) parseDefinition() ast.Definition {
	switch p.curToken.Type {
	case token.INCLUDE:
		return p.parseInclude()
	case token.DEFINE:
		return p.parseDefine()
	default:
		p.tokenError(p.curToken, "unexpected %s at top level (expected #define or #include)",
			tokenDescription(p.curToken))
		return nil
	}
}

func (p *Parser) parseInclude() ast.Definition {
	tok := p.curToken
	if !p.expectPeek("include", token.STRING) {
		return nil
	}
	return ast.NewInclude(tok, p.curToken.Literal)
}

func (p *Parser) parseDefine() ast.Definition {
	tok := p.curToken
	p.nextToken()
	switch p.curToken.Type {
	case token.MACRO:
		return p.parseMacro(tok)
	case token.CONSTANT:
		return p.parseConstant(tok)
	case token.FUNCTION:
		return p.parseFunction(tok)
	case token.JUMPTABLE:
		return p.parseJumpTable(tok, false)
	case token.JUMPTABLE_PACKED:
		return p.parseJumpTable(tok, true)
	case token.TABLE:
		return p.parseCodeTable(tok)
	default:
		p.tokenError(p.curToken, "unexpected %s after #define (expected macro, constant, function, jumptable, or table)",
			tokenDescription(p.curToken))
		return nil
	}
}

func (p *Parser) parseMacro(tok token.Token) ast.Definition {
	if !p.expectPeek("macro definition", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("macro definition", token.LPAREN) {
		return nil
	}
	params := p.parseParamList()
	if p.failed() {
		return nil
	}
	if !p.expectPeek("macro definition", token.ASSIGN) {
		return nil
	}
	takes, returns := 0, 0
	if p.peekTokenIs(token.TAKES) {
		p.nextToken()
		takes = p.parseStackCount("takes")
		if p.failed() {
			return nil
		}
	}
	if p.peekTokenIs(token.RETURNS) {
		p.nextToken()
		returns = p.parseStackCount("returns")
		if p.failed() {
			return nil
		}
	}
	if !p.expectPeek("macro definition", token.LBRACE) {
		return nil
	}
	body := p.parseMacroBody()
	if p.failed() {
		return nil
	}
	return ast.NewMacro(tok, name, params, takes, returns, body)
}

// parseParamList consumes "(a, b, c)" starting on the LPAREN and finishing
// on the RPAREN.
func (p *Parser) parseParamList() []string {
	var params []string
	for {
		if p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			return params
		}
		if !p.expectPeek("parameter list", token.IDENT) {
			return nil
		}
		params = append(params, p.curToken.Literal)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek("parameter list", token.RPAREN) {
			return nil
		}
		return params
	}
}

// parseStackCount consumes "(n)" following a takes or returns keyword.
func (p *Parser) parseStackCount(context string) int {
	if !p.expectPeek(context, token.LPAREN) {
		return 0
	}
	if !p.expectPeek(context, token.INT) {
		return 0
	}
	n, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.tokenError(p.curToken, "invalid %s count %q", context, p.curToken.Literal)
		return 0
	}
	if !p.expectPeek(context, token.RPAREN) {
		return 0
	}
	return n
}

// parseMacroBody consumes statements until the closing brace, starting with
// curToken on the LBRACE and finishing on the RBRACE.
func (p *Parser) parseMacroBody() []ast.Statement {
	var body []ast.Statement
	for {
		if p.peekTokenIs(token.RBRACE) {
			p.nextToken()
			return body
		}
		if p.peekTokenIs(token.EOF) {
			p.tokenError(p.peekToken, "unexpected end of file in macro body (missing closing brace)")
			return nil
		}
		p.nextToken()
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		body = append(body, stmt)
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.HEX:
		return p.parseHexLiteral()
	case token.LBRACKET:
		return p.parseConstantRef()
	case token.LT:
		return p.parseArgCall()
	case token.IDENT:
		if p.peekTokenIs(token.COLON) {
			tok := p.curToken
			name := p.curToken.Literal
			p.nextToken()
			return ast.NewLabelDef(tok, name)
		}
		if p.peekTokenIs(token.LPAREN) {
			return p.parseCall()
		}
		return ast.NewIdent(p.curToken, p.curToken.Literal)
	default:
		p.tokenError(p.curToken, "unexpected %s in macro body", tokenDescription(p.curToken))
		return nil
	}
}

func (p *Parser) parseHexLiteral() ast.Statement {
	tok := p.curToken
	value, err := parseHexValue(tok.Literal)
	if err != nil {
		p.addError(errors.New(errors.LiteralTooLarge, p.location(tok),
			"literal %s exceeds 32 bytes", tok.Literal))
		return nil
	}
	return ast.NewPushLiteral(tok, value, literalWidth(tok.Literal))
}

// literalWidth is the byte width the author wrote: 0x0001 is two bytes even
// though the value fits in one. Odd digit counts round up.
func literalWidth(literal string) int {
	digits := len(strings.TrimPrefix(literal, "0x"))
	if digits < 2 {
		return 1
	}
	return (digits + 1) / 2
}

func (p *Parser) parseConstantRef() ast.Statement {
	tok := p.curToken
	if !p.expectPeek("constant reference", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("constant reference", token.RBRACKET) {
		return nil
	}
	return ast.NewConstantRef(tok, name)
}

func (p *Parser) parseArgCall() ast.Statement {
	tok := p.curToken
	if !p.expectPeek("argument call", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("argument call", token.GT) {
		return nil
	}
	return ast.NewArgCall(tok, name)
}

// parseCall handles both macro invocations and builtin directives, starting
// with curToken on the name.
func (p *Parser) parseCall() ast.Statement {
	tok := p.curToken
	name := tok.Literal
	p.nextToken() // consume name; curToken is now LPAREN
	if strings.HasPrefix(name, "__") {
		return p.parseBuiltin(tok, name)
	}
	var args []ast.Statement
	for {
		if p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			return ast.NewMacroCall(tok, name, args)
		}
		p.nextToken()
		arg := p.parseCallArg()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek("macro invocation", token.RPAREN) {
			return nil
		}
		return ast.NewMacroCall(tok, name, args)
	}
}

// parseCallArg parses a single macro invocation argument: a literal, an
// identifier, a constant reference, or a nested argument call.
func (p *Parser) parseCallArg() ast.Statement {
	switch p.curToken.Type {
	case token.HEX:
		return p.parseHexLiteral()
	case token.IDENT:
		return ast.NewIdent(p.curToken, p.curToken.Literal)
	case token.LBRACKET:
		return p.parseConstantRef()
	case token.LT:
		return p.parseArgCall()
	default:
		p.tokenError(p.curToken, "unexpected %s in macro invocation arguments",
			tokenDescription(p.curToken))
		return nil
	}
}

// parseBuiltin parses "__name(arg)" where arg is one identifier or string.
// The curToken is on the LPAREN.
func (p *Parser) parseBuiltin(tok token.Token, name string) ast.Statement {
	switch name {
	case ast.BuiltinCodesize, ast.BuiltinTablestart, ast.BuiltinTablesize, ast.BuiltinFuncSig:
	default:
		p.tokenError(tok, "unknown builtin %s", name)
		return nil
	}
	p.nextToken()
	if !p.curTokenIs(token.IDENT) && !p.curTokenIs(token.STRING) {
		p.tokenError(p.curToken, "unexpected %s as %s argument (expected identifier)",
			tokenDescription(p.curToken), name)
		return nil
	}
	arg := p.curToken.Literal
	if !p.expectPeek("builtin call", token.RPAREN) {
		return nil
	}
	return ast.NewBuiltin(tok, name, arg)
}

func (p *Parser) parseConstant(tok token.Token) ast.Definition {
	if !p.expectPeek("constant definition", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("constant definition", token.ASSIGN) {
		return nil
	}
	p.nextToken()
	switch p.curToken.Type {
	case token.HEX:
		value, err := parseHexValue(p.curToken.Literal)
		if err != nil {
			p.addError(errors.New(errors.LiteralTooLarge, p.location(p.curToken),
				"literal %s exceeds 32 bytes", p.curToken.Literal))
			return nil
		}
		return ast.NewConstant(tok, name, value)
	case token.FREE_STORAGE:
		if !p.expectPeek("constant definition", token.LPAREN) {
			return nil
		}
		if !p.expectPeek("constant definition", token.RPAREN) {
			return nil
		}
		return ast.NewFreeStoragePointer(tok, name)
	default:
		p.tokenError(p.curToken, "unexpected %s as constant value (expected literal or FREE_STORAGE_POINTER())",
			tokenDescription(p.curToken))
		return nil
	}
}

func (p *Parser) parseFunction(tok token.Token) ast.Definition {
	if !p.expectPeek("function definition", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("function definition", token.LPAREN) {
		return nil
	}
	inputs := p.parseTypeList()
	if p.failed() {
		return nil
	}
	visibility := ""
	if p.peekTokenIs(token.IDENT) {
		switch p.peekToken.Literal {
		case "view", "pure", "payable", "nonpayable":
			p.nextToken()
			visibility = p.curToken.Literal
		default:
			p.tokenError(p.peekToken, "unexpected identifier %q in function definition (expected view, pure, payable, or nonpayable)",
				p.peekToken.Literal)
			return nil
		}
	}
	var outputs []string
	if p.peekTokenIs(token.RETURNS) {
		p.nextToken()
		if !p.expectPeek("function definition", token.LPAREN) {
			return nil
		}
		outputs = p.parseTypeList()
		if p.failed() {
			return nil
		}
	}
	return ast.NewFunction(tok, name, inputs, outputs, visibility)
}

// parseTypeList consumes "(type, type, ...)" starting on the LPAREN and
// finishing on the RPAREN. Array suffixes are folded into the type name.
func (p *Parser) parseTypeList() []string {
	var types []string
	for {
		if p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			return types
		}
		if !p.expectPeek("type list", token.IDENT) {
			return nil
		}
		typ := p.curToken.Literal
		for p.peekTokenIs(token.LBRACKET) {
			p.nextToken()
			size := ""
			if p.peekTokenIs(token.INT) {
				p.nextToken()
				size = p.curToken.Literal
			}
			if !p.expectPeek("type list", token.RBRACKET) {
				return nil
			}
			typ += "[" + size + "]"
		}
		types = append(types, typ)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek("type list", token.RPAREN) {
			return nil
		}
		return types
	}
}

func (p *Parser) parseJumpTable(tok token.Token, packed bool) ast.Definition {
	kind := "jumptable"
	if packed {
		kind = "packed jumptable"
	}
	if !p.expectPeek(kind, token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek(kind, token.LBRACE) {
		return nil
	}
	var labels []string
	for {
		if p.peekTokenIs(token.RBRACE) {
			p.nextToken()
			break
		}
		if !p.expectPeek(kind, token.IDENT) {
			return nil
		}
		labels = append(labels, p.curToken.Literal)
	}
	if len(labels) == 0 {
		p.tokenError(tok, "%s %s has no entries", kind, name)
		return nil
	}
	return ast.NewJumpTable(tok, name, labels, packed)
}

func (p *Parser) parseCodeTable(tok token.Token) ast.Definition {
	if !p.expectPeek("code table", token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expectPeek("code table", token.LBRACE) {
		return nil
	}
	if !p.expectPeek("code table", token.HEX) {
		return nil
	}
	digits := strings.TrimPrefix(p.curToken.Literal, "0x")
	if len(digits)%2 != 0 {
		p.tokenError(p.curToken, "code table %s has an odd number of hex digits", name)
		return nil
	}
	data, err := hex.DecodeString(digits)
	if err != nil {
		p.tokenError(p.curToken, "code table %s has invalid hex: %v", name, err)
		return nil
	}
	if !p.expectPeek("code table", token.RBRACE) {
		return nil
	}
	return ast.NewCodeTable(tok, name, data)
}

// registerName records a top-level name and reports a duplicate within this
// file. Cross-file duplicates are detected later, by the resolver.
func (p *Parser) registerName(def ast.Definition) {
	var namespace string
	switch def.(type) {
	case *ast.Include:
		return
	case *ast.Macro:
		namespace = "macro"
	case *ast.Constant:
		namespace = "constant"
	case *ast.Function:
		namespace = "function"
	case *ast.JumpTable, *ast.CodeTable:
		namespace = "table"
	}
	names := p.seen[namespace]
	if names == nil {
		names = map[string]bool{}
		p.seen[namespace] = names
	}
	if names[def.Name()] {
		p.tokenError(def.Token(), "duplicate %s definition %q", namespace, def.Name())
		return
	}
	names[def.Name()] = true
}

// parseHexValue parses a 0x-prefixed literal into a 256-bit value. A literal
// wider than 32 written bytes is rejected even when the value itself would
// fit, since the widest push instruction carries 32 bytes.
func parseHexValue(literal string) (*uint256.Int, error) {
	digits := strings.TrimPrefix(literal, "0x")
	if len(digits) > 64 {
		return nil, fmt.Errorf("literal is %d hex digits, max is 64", len(digits))
	}
	// uint256.FromHex rejects leading zeros, which Huff literals routinely
	// carry (0x00), so trim them first.
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return uint256.FromHex("0x" + trimmed)
}
