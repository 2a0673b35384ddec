package eval

import (
	"fmt"
	"strconv"
)

// Parse turns expression text into an AST, rejecting anything outside
// the restricted grammar with a *GrammarError.
func Parse(src string) (Node, error) {
	toks, err := newLexer(src).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, p.errf("unexpected %q after expression", p.cur().text)
	}
	return node, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.cur().kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) error {
	if !p.accept(kind) {
		return p.errf("expected %s", what)
	}
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return &GrammarError{Pos: p.cur().pos, Message: fmt.Sprintf(format, args...)}
}

// or := and ("or" and)*
func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpOr, L: left, R: right}
	}
	return left, nil
}

// and := not ("and" not)*
func (p *parser) and() (Node, error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		right, err := p.not()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, L: left, R: right}
	}
	return left, nil
}

// not := "not" not | comparison
func (p *parser) not() (Node, error) {
	if p.accept(tokNot) {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpNot, X: x}, nil
	}
	return p.comparison()
}

// comparison := additive (cmpop additive)*, chained
func (p *parser) comparison() (Node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	var ops []CmpOp
	var rest []Node
	for {
		op, ok := p.cmpOp()
		if !ok {
			break
		}
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		rest = append(rest, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return Compare{First: left, Ops: ops, Rest: rest}, nil
}

func (p *parser) cmpOp() (CmpOp, bool) {
	switch p.cur().kind {
	case tokLT:
		p.advance()
		return CmpLT, true
	case tokLE:
		p.advance()
		return CmpLE, true
	case tokGT:
		p.advance()
		return CmpGT, true
	case tokGE:
		p.advance()
		return CmpGE, true
	case tokEQ:
		p.advance()
		return CmpEQ, true
	case tokNE:
		p.advance()
		return CmpNE, true
	case tokIn:
		p.advance()
		return CmpIn, true
	case tokNot:
		// "not in" is the only place "not" appears mid-chain.
		if p.toks[p.pos+1].kind == tokIn {
			p.advance()
			p.advance()
			return CmpNotIn, true
		}
	}
	return 0, false
}

// additive := term (("+"|"-") term)*
func (p *parser) additive() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		var op BinOp
		switch p.cur().kind {
		case tokPlus:
			op = OpAdd
		case tokMinus:
			op = OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, L: left, R: right}
	}
}

// term := unary (("*"|"/"|"%") unary)*
func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinOp
		switch p.cur().kind {
		case tokStar:
			op = OpMul
		case tokSlash:
			op = OpDiv
		case tokPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, L: left, R: right}
	}
}

// unary := ("-"|"+") unary | power
func (p *parser) unary() (Node, error) {
	switch p.cur().kind {
	case tokMinus:
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpNeg, X: x}, nil
	case tokPlus:
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpPos, X: x}, nil
	}
	return p.power()
}

// power := primary ("**" unary)?, right-associative
func (p *parser) power() (Node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.accept(tokPow) {
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Binary{Op: OpPow, L: base, R: exp}, nil
	}
	return base, nil
}

func (p *parser) primary() (Node, error) {
	switch tok := p.cur(); tok.kind {
	case tokInt:
		p.advance()
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, &GrammarError{Pos: tok.pos, Message: "malformed integer"}
		}
		return Literal{Val: Int(n)}, nil

	case tokFloat:
		p.advance()
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, &GrammarError{Pos: tok.pos, Message: "malformed number"}
		}
		return Literal{Val: Float(f)}, nil

	case tokString:
		p.advance()
		return Literal{Val: String(tok.text)}, nil

	case tokTrue:
		p.advance()
		return Literal{Val: Bool(true)}, nil

	case tokFalse:
		p.advance()
		return Literal{Val: Bool(false)}, nil

	case tokNone:
		p.advance()
		return Literal{Val: Null()}, nil

	case tokIdent:
		p.advance()
		if p.cur().kind == tokLParen {
			return p.call(tok.text)
		}
		return Ident{Name: tok.text}, nil

	case tokLParen:
		p.advance()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokLBracket:
		return p.list()
	}

	return nil, p.errf("unexpected token")
}

func (p *parser) call(name string) (Node, error) {
	p.advance() // (
	var args []Node
	if p.cur().kind != tokRParen {
		for {
			arg, err := p.or()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if err := p.expect(tokRParen, ") to close call"); err != nil {
		return nil, err
	}
	return Call{Name: name, Args: args}, nil
}

func (p *parser) list() (Node, error) {
	p.advance() // [
	var elems []Node
	if p.cur().kind != tokRBracket {
		for {
			e, err := p.or()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if err := p.expect(tokRBracket, "] to close list"); err != nil {
		return nil, err
	}
	return ListLit{Elems: elems}, nil
}
