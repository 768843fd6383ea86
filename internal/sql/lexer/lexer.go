// Package lexer turns SQL text into tokens.
//
// The lexer is lazy: Next produces one token per call, so a parser can stop
// at the first error without scanning the rest of the input. Reset rewinds to
// the start of the same text.
package lexer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tuannm99/tinyrdb/internal/sqlerr"
)

type Lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.pos, l.line, l.col = 0, 1, 1
}

// Tokenize scans the whole input. The last token is always EOF.
func Tokenize(src string) ([]Token, error) {
	var out []Token
	for tok, err := range New(src).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// All yields every token from the start of the input up to and including
// EOF, stopping early on the first error. Each call restarts the scan.
func (l *Lexer) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l.Reset()
		for {
			tok, err := l.Next()
			if !yield(tok, err) || err != nil || tok.Kind == EOF {
				return
			}
		}
	}
}

// Next returns the next token. After the input is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}

	start := l.here()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Pos: start}, nil
	}

	r, _ := l.peekRune(0)
	switch {
	case r == '\'' || r == '"':
		return l.readString(start)
	case isDigit(r):
		return l.readNumber(start), nil
	case unicode.IsLetter(r) || r == '_':
		return l.readWord(start), nil
	}

	return l.readSymbol(start)
}

func (l *Lexer) here() Pos {
	return Pos{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) peekRune(ahead int) (rune, int) {
	p := l.pos
	var r rune
	size := 0
	for i := 0; i <= ahead; i++ {
		if p >= len(l.src) {
			return 0, 0
		}
		r, size = utf8.DecodeRuneInString(l.src[p:])
		if i < ahead {
			p += size
		}
	}
	return r, size
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r, _ := l.peekRune(0)
		next, _ := l.peekRune(1)
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '-' && next == '-':
			for l.pos < len(l.src) {
				if l.advance() == '\n' {
					break
				}
			}
		case r == '/' && next == '*':
			start := l.here()
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				c := l.advance()
				if c == '*' {
					if n, _ := l.peekRune(0); n == '/' {
						l.advance()
						closed = true
						break
					}
				}
			}
			if !closed {
				return sqlerr.Lexf(start.Line, start.Column, "unterminated comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) readString(start Pos) (Token, error) {
	quote := l.advance()
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.advance()
		switch r {
		case quote:
			// a doubled quote is an escaped quote
			if n, _ := l.peekRune(0); n == quote {
				l.advance()
				sb.WriteRune(quote)
				continue
			}
			return Token{Kind: String, Lexeme: sb.String(), Pos: start}, nil
		case '\\':
			if l.pos >= len(l.src) {
				continue
			}
			switch e := l.advance(); e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			default:
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return Token{}, sqlerr.Lexf(start.Line, start.Column, "unterminated string literal")
}

func (l *Lexer) readNumber(start Pos) Token {
	kind := Integer
	for l.pos < len(l.src) {
		r, _ := l.peekRune(0)
		if isDigit(r) {
			l.advance()
			continue
		}
		if r == '.' && kind == Integer {
			if n, _ := l.peekRune(1); isDigit(n) {
				kind = Float
				l.advance()
				continue
			}
		}
		if r == 'e' || r == 'E' {
			n, _ := l.peekRune(1)
			nn, _ := l.peekRune(2)
			if isDigit(n) || ((n == '+' || n == '-') && isDigit(nn)) {
				kind = Float
				l.advance()
				if !isDigit(n) {
					l.advance()
				}
				for l.pos < len(l.src) {
					if d, _ := l.peekRune(0); !isDigit(d) {
						break
					}
					l.advance()
				}
			}
		}
		break
	}
	return Token{Kind: kind, Lexeme: l.src[start.Offset:l.pos], Pos: start}
}

func (l *Lexer) readWord(start Pos) Token {
	for l.pos < len(l.src) {
		r, _ := l.peekRune(0)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	word := l.src[start.Offset:l.pos]
	if up := strings.ToUpper(word); IsKeyword(up) {
		if up == "AUTOINCREMENT" {
			up = "AUTO_INCREMENT"
		}
		return Token{Kind: Keyword, Lexeme: up, Raw: word, Pos: start}
	}
	return Token{Kind: Ident, Lexeme: word, Raw: word, Pos: start}
}

func (l *Lexer) readSymbol(start Pos) (Token, error) {
	r := l.advance()
	next, _ := l.peekRune(0)

	two := func(lexeme string) (Token, error) {
		l.advance()
		return Token{Kind: Operator, Lexeme: lexeme, Pos: start}, nil
	}
	one := func(kind Kind) (Token, error) {
		return Token{Kind: kind, Lexeme: string(r), Pos: start}, nil
	}

	switch r {
	case '=':
		if next == '=' {
			// "==" is accepted as "="
			l.advance()
			return Token{Kind: Operator, Lexeme: "=", Pos: start}, nil
		}
		return one(Operator)
	case '!':
		if next == '=' {
			return two("!=")
		}
	case '<':
		switch next {
		case '=':
			return two("<=")
		case '>':
			return two("<>")
		}
		return one(Operator)
	case '>':
		if next == '=' {
			return two(">=")
		}
		return one(Operator)
	case '+', '-', '*', '/', '%':
		return one(Operator)
	case '(', ')', ',', ';', '.':
		return one(Punct)
	}
	return Token{}, sqlerr.Lexf(start.Line, start.Column, "unexpected character %q", r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
