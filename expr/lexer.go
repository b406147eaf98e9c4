package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/latticerun/engine/errs"
)

// lexer turns an expression source string into a token stream. It is a
// hand-rolled recursive-descent-friendly scanner: the DSL's grammar is
// small and bespoke (not SQL), so no parser-generator or SQL tokenizer
// from the pack fits; see DESIGN.md.
type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) advance() (rune, bool) {
	r, ok := l.peekRune()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, true
}

func (l *lexer) tokens() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}

func (l *lexer) skipSpace() {
	for {
		r, ok := l.peekRune()
		if !ok || !(r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			return
		}
		l.advance()
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (l *lexer) next() (Token, error) {
	l.skipSpace()
	line, col := l.line, l.col
	r, ok := l.peekRune()
	if !ok {
		return Token{Kind: TokEOF, Line: line, Col: col}, nil
	}

	switch {
	case isIdentStart(r):
		start := l.pos
		for {
			r, ok := l.peekRune()
			if !ok || !isIdentPart(r) {
				break
			}
			l.advance()
		}
		text := string(l.src[start:l.pos])
		if kind, isKw := keywords[strings.ToLower(text)]; isKw {
			return Token{Kind: kind, Text: text, Line: line, Col: col}, nil
		}
		return Token{Kind: TokIdent, Text: text, Line: line, Col: col}, nil

	case isDigit(r):
		start := l.pos
		for {
			r, ok := l.peekRune()
			if !ok || !(isDigit(r) || r == '.') {
				break
			}
			l.advance()
		}
		text := string(l.src[start:l.pos])
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, errs.AtPosition(errs.ExpressionSyntaxError.New(fmt.Sprintf("invalid number %q", text)), line, col)
		}
		return Token{Kind: TokNumber, Text: text, Num: n, Line: line, Col: col}, nil

	case r == '"':
		l.advance()
		var sb strings.Builder
		for {
			r, ok := l.advance()
			if !ok {
				return Token{}, errs.AtPosition(errs.ExpressionSyntaxError.New("unterminated string literal"), line, col)
			}
			if r == '"' {
				break
			}
			if r == '\\' {
				esc, ok := l.advance()
				if !ok {
					return Token{}, errs.AtPosition(errs.ExpressionSyntaxError.New("unterminated string literal"), line, col)
				}
				sb.WriteRune(esc)
				continue
			}
			sb.WriteRune(r)
		}
		return Token{Kind: TokString, Text: sb.String(), Line: line, Col: col}, nil

	case r == '.':
		l.advance()
		return Token{Kind: TokDot, Line: line, Col: col}, nil
	case r == '(':
		l.advance()
		return Token{Kind: TokLParen, Line: line, Col: col}, nil
	case r == ')':
		l.advance()
		return Token{Kind: TokRParen, Line: line, Col: col}, nil
	case r == ',':
		l.advance()
		return Token{Kind: TokComma, Line: line, Col: col}, nil
	case r == '+':
		l.advance()
		return Token{Kind: TokPlus, Line: line, Col: col}, nil
	case r == '-':
		l.advance()
		return Token{Kind: TokMinus, Line: line, Col: col}, nil
	case r == '*':
		l.advance()
		return Token{Kind: TokStar, Line: line, Col: col}, nil
	case r == '/':
		l.advance()
		return Token{Kind: TokSlash, Line: line, Col: col}, nil
	case r == '=':
		l.advance()
		return Token{Kind: TokEq, Line: line, Col: col}, nil
	case r == '<':
		l.advance()
		if r2, ok := l.peekRune(); ok && r2 == '>' {
			l.advance()
			return Token{Kind: TokNeq, Line: line, Col: col}, nil
		}
		if r2, ok := l.peekRune(); ok && r2 == '=' {
			l.advance()
			return Token{Kind: TokLte, Line: line, Col: col}, nil
		}
		return Token{Kind: TokLt, Line: line, Col: col}, nil
	case r == '>':
		l.advance()
		if r2, ok := l.peekRune(); ok && r2 == '=' {
			l.advance()
			return Token{Kind: TokGte, Line: line, Col: col}, nil
		}
		return Token{Kind: TokGt, Line: line, Col: col}, nil
	default:
		return Token{}, errs.AtPosition(errs.ExpressionSyntaxError.New(fmt.Sprintf("unexpected character %q", string(r))), line, col)
	}
}
