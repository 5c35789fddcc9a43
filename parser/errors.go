package parser

import (
	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/token"
)

// advanceToken moves to the next token from the lexer without error
// checking. Used internally by synchronize() during error recovery.
func (p *Parser) advanceToken() {
	p.curToken = p.peekToken
	p.peekToken, _ = p.l.Next()
}

// nextToken moves to the next token from the lexer, updating curToken and
// peekToken. Lexer errors are recorded and treated as parse failures.
func (p *Parser) nextToken() {
	var err error
	p.curToken = p.peekToken
	p.peekToken, err = p.l.Next()
	if err != nil {
		if ce, ok := err.(*errors.CompileError); ok {
			p.addError(ce)
			return
		}
		p.addError(errors.New(errors.LexError, p.location(p.peekToken), "%s", err.Error()))
	}
}

// curTokenIs returns true if the current token has the given type.
func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

// peekTokenIs returns true if the next token has the given type.
func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// expectPeek validates that the next token is of the given type, and
// advances if it is. If it's a different type, an error is stored.
func (p *Parser) expectPeek(context string, t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(context, t, p.peekToken)
	return false
}

// peekError records an error for an unexpected token.
func (p *Parser) peekError(context string, expected token.Type, got token.Token) {
	p.addError(errors.New(errors.ParseError, p.location(got),
		"unexpected %s while parsing %s (expected %s)",
		tokenDescription(got), context, tokenTypeDescription(expected)))
}

// tokenError records an error positioned at the given token.
func (p *Parser) tokenError(t token.Token, format string, args ...interface{}) {
	p.addError(errors.New(errors.ParseError, p.location(t), format, args...))
}

func (p *Parser) addError(err *errors.CompileError) {
	p.errs.Add(err)
}

// failed reports whether an error was recorded during the current top-level
// definition.
func (p *Parser) failed() bool {
	return p.errs.Count() > p.defErrorCount
}

// location converts a token position into an error source location.
func (p *Parser) location(t token.Token) errors.SourceLocation {
	return errors.SourceLocation{
		Filename: p.l.Filename(),
		Line:     t.StartPosition.LineNumber(),
		Column:   t.StartPosition.ColumnNumber(),
		Source:   p.l.GetLineText(t),
	}
}

func tokenTypeDescription(t token.Type) string {
	switch t {
	case token.EOF:
		return "end of file"
	case token.IDENT:
		return "identifier"
	case token.HEX:
		return "hex literal"
	case token.INT:
		return "integer"
	case token.STRING:
		return "string"
	default:
		return string(t)
	}
}

func tokenDescription(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of file"
	case token.HEX, token.INT, token.IDENT:
		return "'" + t.Literal + "'"
	default:
		if t.Literal == "" {
			return string(t.Type)
		}
		return "'" + t.Literal + "'"
	}
}
