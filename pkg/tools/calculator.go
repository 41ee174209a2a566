package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/condotto-ai/condotto/pkg/schema"
)

// Calculator returns a tool that evaluates arithmetic expressions. The
// evaluator is a small recursive-descent parser; anything outside numbers,
// + - * / ^, parentheses, sqrt, pow, and pi is rejected.
func Calculator() Tool {
	return Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression. Supports + - * / ^, parentheses, sqrt(x), pow(x, y), and the constant pi.",
		Schema: schema.Object(map[string]*schema.Schema{
			"expression": schema.String("Arithmetic expression to evaluate, e.g. \"15 * 8 + 32\""),
		}, "expression"),
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
			if strings.TrimSpace(args.Expression) == "" {
				return nil, fmt.Errorf("expression is required")
			}
			result, err := evalExpression(args.Expression)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"expression": args.Expression,
				"result":     result,
			}, nil
		},
	}
}

type exprParser struct {
	input string
	pos   int
}

func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return v, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		// Right associative.
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case unicode.IsLetter(rune(c)):
		return p.parseIdentifier()
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseIdentifier() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])
	switch name {
	case "pi":
		return math.Pi, nil
	case "sqrt":
		args, err := p.parseCall(name, 1)
		if err != nil {
			return 0, err
		}
		if args[0] < 0 {
			return 0, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(args[0]), nil
	case "pow":
		args, err := p.parseCall(name, 2)
		if err != nil {
			return 0, err
		}
		return math.Pow(args[0], args[1]), nil
	default:
		return 0, fmt.Errorf("unknown identifier %q", name)
	}
}

// parseCall consumes a parenthesized, comma-separated list of exactly n
// expressions.
func (p *exprParser) parseCall(name string, n int) ([]float64, error) {
	if p.peek() != '(' {
		return nil, fmt.Errorf("%s requires parentheses", name)
	}
	p.pos++
	args := make([]float64, 0, n)
	for {
		v, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if p.peek() != ')' {
		return nil, fmt.Errorf("missing closing parenthesis")
	}
	p.pos++
	if len(args) != n {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", name, n, len(args))
	}
	return args, nil
}
