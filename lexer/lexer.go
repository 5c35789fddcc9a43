// Package lexer converts Huff source text into a stream of tokens.
//
// The lexer is lazy: tokens are produced one at a time via Next. It performs
// no semantic validation beyond token shape, and it does not recover from
// errors; the first malformed token aborts lexing for the file.
package lexer

import (
	"strings"

	"github.com/hufflang/huffc/errors"
	"github.com/hufflang/huffc/token"
)

// Lexer holds the state for tokenizing one input string. Create one with New
// and call Next until a token.EOF is returned.
type Lexer struct {
	// input is the source text being lexed
	input []rune

	// position is the index of the current rune
	position int

	// readPosition is the index of the next rune to read
	readPosition int

	// ch is the current rune under examination (0 at EOF)
	ch rune

	// line is the 0-indexed current line
	line int

	// lineStart is the index at which the current line begins
	lineStart int

	// filename used for error locations
	filename string
}

// New creates a Lexer for the given input text.
func New(input string) *Lexer {
	l := &Lexer{input: []rune(input)}
	l.readChar()
	return l
}

// SetFilename sets the file name used in token positions and errors.
func (l *Lexer) SetFilename(filename string) {
	l.filename = filename
}

// Filename returns the file name associated with this input.
func (l *Lexer) Filename() string {
	return l.filename
}

// GetLineText returns the text of the line on which the token starts.
func (l *Lexer) GetLineText(tok token.Token) string {
	start := tok.StartPosition.LineStart
	if start < 0 || start >= len(l.input) {
		return ""
	}
	end := start
	for end < len(l.input) && l.input[end] != '\n' {
		end++
	}
	return string(l.input[start:end])
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPosition
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) curPosition() token.Position {
	return token.Position{
		Value:     l.ch,
		Char:      l.position,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    l.position - l.lineStart,
		File:      l.filename,
	}
}

func (l *Lexer) newToken(typ token.Type, literal string, start token.Position) token.Token {
	return token.Token{
		Type:          typ,
		Literal:       literal,
		StartPosition: start,
		EndPosition:   l.curPosition(),
	}
}

func (l *Lexer) errorf(start token.Position, format string, args ...interface{}) error {
	return errors.New(errors.LexError, errors.SourceLocation{
		Filename: l.filename,
		Line:     start.LineNumber(),
		Column:   start.ColumnNumber(),
		Source:   l.lineTextAt(start),
	}, format, args...)
}

func (l *Lexer) lineTextAt(pos token.Position) string {
	start := pos.LineStart
	if start < 0 || start > len(l.input) {
		return ""
	}
	end := start
	for end < len(l.input) && l.input[end] != '\n' {
		end++
	}
	return string(l.input[start:end])
}

// Next returns the next token from the input. After the input is exhausted,
// it returns token.EOF tokens indefinitely.
func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{Type: token.ILLEGAL, StartPosition: l.curPosition()}, err
	}
	start := l.curPosition()

	switch l.ch {
	case 0:
		tok := l.newToken(token.EOF, "", start)
		return tok, nil
	case '=':
		l.readChar()
		return l.newToken(token.ASSIGN, "=", start), nil
	case ',':
		l.readChar()
		return l.newToken(token.COMMA, ",", start), nil
	case ':':
		l.readChar()
		return l.newToken(token.COLON, ":", start), nil
	case '(':
		l.readChar()
		return l.newToken(token.LPAREN, "(", start), nil
	case ')':
		l.readChar()
		return l.newToken(token.RPAREN, ")", start), nil
	case '{':
		l.readChar()
		return l.newToken(token.LBRACE, "{", start), nil
	case '}':
		l.readChar()
		return l.newToken(token.RBRACE, "}", start), nil
	case '[':
		l.readChar()
		return l.newToken(token.LBRACKET, "[", start), nil
	case ']':
		l.readChar()
		return l.newToken(token.RBRACKET, "]", start), nil
	case '<':
		l.readChar()
		return l.newToken(token.LT, "<", start), nil
	case '>':
		l.readChar()
		return l.newToken(token.GT, ">", start), nil
	case '"':
		return l.readString(start)
	case '#':
		return l.readDirective(start)
	}

	if isDigit(l.ch) {
		return l.readNumber(start)
	}
	if isIdentStart(l.ch) {
		literal := l.readIdentifier()
		tok := l.newToken(token.LookupIdentifier(literal), literal, start)
		return tok, nil
	}

	ch := l.ch
	l.readChar()
	tok := l.newToken(token.ILLEGAL, string(ch), start)
	return tok, l.errorf(start, "invalid character %q", ch)
}

// skipWhitespaceAndComments discards whitespace, line comments, and block
// comments. An unterminated block comment is a lex error.
func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			start := l.curPosition()
			l.readChar() // consume '/'
			l.readChar() // consume '*'
			for {
				if l.ch == 0 {
					return l.errorf(start, "unterminated block comment")
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.position])
}

// readNumber lexes a decimal integer or a 0x-prefixed hex literal.
func (l *Lexer) readNumber(start token.Position) (token.Token, error) {
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar() // consume '0'
		l.readChar() // consume 'x'
		digitStart := l.position
		for isHexDigit(l.ch) {
			l.readChar()
		}
		digits := string(l.input[digitStart:l.position])
		if digits == "" {
			return token.Token{Type: token.ILLEGAL, StartPosition: start},
				l.errorf(start, "malformed hex literal: missing digits after 0x")
		}
		if isIdentPart(l.ch) {
			return token.Token{Type: token.ILLEGAL, StartPosition: start},
				l.errorf(start, "malformed hex literal: invalid digit %q", l.ch)
		}
		return l.newToken(token.HEX, "0x"+digits, start), nil
	}
	numStart := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if isIdentPart(l.ch) {
		return token.Token{Type: token.ILLEGAL, StartPosition: start},
			l.errorf(start, "malformed numeric literal: invalid digit %q", l.ch)
	}
	return l.newToken(token.INT, string(l.input[numStart:l.position]), start), nil
}

// readString lexes a double-quoted string with escape handling.
func (l *Lexer) readString(start token.Position) (token.Token, error) {
	var sb strings.Builder
	l.readChar() // consume opening quote
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return token.Token{Type: token.ILLEGAL, StartPosition: start},
				l.errorf(start, "unterminated string literal")
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				return token.Token{Type: token.ILLEGAL, StartPosition: start},
					l.errorf(start, "invalid escape sequence \\%c", l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	return l.newToken(token.STRING, sb.String(), start), nil
}

// readDirective lexes "#define" and "#include".
func (l *Lexer) readDirective(start token.Position) (token.Token, error) {
	l.readChar() // consume '#'
	word := l.readIdentifier()
	switch word {
	case "define":
		return l.newToken(token.DEFINE, "#define", start), nil
	case "include":
		return l.newToken(token.INCLUDE, "#include", start), nil
	}
	return token.Token{Type: token.ILLEGAL, StartPosition: start},
		l.errorf(start, "unknown directive #%s", word)
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
