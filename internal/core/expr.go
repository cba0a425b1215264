package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EvalAmountExpr evaluates an arithmetic amount entry such as "50+20" or
// "3*(40+5)". The grammar is deliberately narrow: decimal literals, the
// four basic operators and parentheses. Anything else is rejected with
// an error rather than silently evaluating to zero. The result is
// truncated to whole units and must be positive.
func EvalAmountExpr(s string) (Money, error) {
	p := &exprParser{input: strings.TrimSpace(s)}
	if p.input == "" {
		return Money{}, ErrInvalidAmount
	}
	v, err := p.parseExpr()
	if err != nil {
		return Money{}, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return Money{}, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	units := v.IntPart()
	if units <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Units: units}, nil
}

// exprParser is a recursive-descent parser over
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "(" expr ")"
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (decimal.Decimal, error) {
	v, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			v = v.Add(rhs)
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return decimal.Zero, err
			}
			v = v.Sub(rhs)
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (decimal.Decimal, error) {
	v, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			v = v.Mul(rhs)
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return decimal.Zero, err
			}
			if rhs.IsZero() {
				return decimal.Zero, fmt.Errorf("division by zero")
			}
			v = v.Div(rhs)
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (decimal.Decimal, error) {
	p.skipSpaces()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return decimal.Zero, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return decimal.Zero, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (decimal.Decimal, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.pos >= len(p.input) {
			return decimal.Zero, fmt.Errorf("unexpected end of expression")
		}
		return decimal.Zero, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	d, err := decimal.NewFromString(p.input[start:p.pos])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return d, nil
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}
