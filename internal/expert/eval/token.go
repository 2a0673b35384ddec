package eval

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokPow
	tokAnd
	tokOr
	tokNot
	tokIn
	tokTrue
	tokFalse
	tokNone
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keywords covers both the Python-style spellings rule authors learned
// from the web form and the lowercase variants.
var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"in":    tokIn,
	"True":  tokTrue,
	"true":  tokTrue,
	"False": tokFalse,
	"false": tokFalse,
	"None":  tokNone,
	"none":  tokNone,
	"null":  tokNone,
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) errf(pos int, format string, args ...any) error {
	return &GrammarError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) tokens() ([]token, error) {
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case unicode.IsLetter(c) || c == '_':
		for l.pos < len(l.src) && (unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
		word := string(l.src[start:l.pos])
		if kind, ok := keywords[word]; ok {
			return token{kind: kind, text: word, pos: start}, nil
		}
		return token{kind: tokIdent, text: word, pos: start}, nil

	case unicode.IsDigit(c):
		return l.number(start)

	case c == '"' || c == '\'':
		return l.str(start, c)
	}

	l.pos++
	switch c {
	case '(':
		return token{kind: tokLParen, pos: start}, nil
	case ')':
		return token{kind: tokRParen, pos: start}, nil
	case '[':
		return token{kind: tokLBracket, pos: start}, nil
	case ']':
		return token{kind: tokRBracket, pos: start}, nil
	case ',':
		return token{kind: tokComma, pos: start}, nil
	case '+':
		return token{kind: tokPlus, pos: start}, nil
	case '-':
		return token{kind: tokMinus, pos: start}, nil
	case '*':
		if l.peek() == '*' {
			l.pos++
			return token{kind: tokPow, pos: start}, nil
		}
		return token{kind: tokStar, pos: start}, nil
	case '/':
		return token{kind: tokSlash, pos: start}, nil
	case '%':
		return token{kind: tokPercent, pos: start}, nil
	case '<':
		if l.peek() == '=' {
			l.pos++
			return token{kind: tokLE, pos: start}, nil
		}
		return token{kind: tokLT, pos: start}, nil
	case '>':
		if l.peek() == '=' {
			l.pos++
			return token{kind: tokGE, pos: start}, nil
		}
		return token{kind: tokGT, pos: start}, nil
	case '=':
		if l.peek() == '=' {
			l.pos++
			return token{kind: tokEQ, pos: start}, nil
		}
		return token{}, l.errf(start, "assignment is not allowed, use ==")
	case '!':
		if l.peek() == '=' {
			l.pos++
			return token{kind: tokNE, pos: start}, nil
		}
		return token{}, l.errf(start, "unexpected character %q", string(c))
	}

	// Anything else (dots, colons, braces, @, backticks) is outside the
	// grammar: reject by default.
	return token{}, l.errf(start, "unexpected character %q", string(c))
}

func (l *lexer) peek() rune {
	if l.pos < len(l.src) {
		return l.src[l.pos]
	}
	return 0
}

func (l *lexer) number(start int) (token, error) {
	isFloat := false
	for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		if l.src[l.pos] == '.' {
			if isFloat {
				return token{}, l.errf(l.pos, "malformed number")
			}
			// A dot not followed by a digit is attribute access, which
			// the grammar forbids.
			if l.pos+1 >= len(l.src) || !unicode.IsDigit(l.src[l.pos+1]) {
				return token{}, l.errf(l.pos, "attribute access is not allowed")
			}
			isFloat = true
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])
	if isFloat {
		return token{kind: tokFloat, text: text, pos: start}, nil
	}
	return token{kind: tokInt, text: text, pos: start}, nil
}

func (l *lexer) str(start int, quote rune) (token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			default:
				sb.WriteRune(esc)
			}
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
	return token{}, l.errf(start, "unterminated string literal")
}
