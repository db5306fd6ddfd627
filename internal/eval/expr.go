// Package eval implements typed expression evaluation, boolean condition
// evaluation and the builtin value-returning functions of the macro
// language.
//
// Expressions are evaluated by a small purpose-built grammar rather than a
// general scripting facility: numeric and string literals, variable
// references, + - * /, the six comparisons, and AND/OR/NOT. Evaluation
// failures never propagate; they log a warning and yield integer zero.
package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arnatoatadaink/macro-player/internal/lexer"
	"github.com/arnatoatadaink/macro-player/internal/logging"
	"github.com/arnatoatadaink/macro-player/internal/vars"
)

// Eval evaluates a token list as a typed expression against the store.
//
// Zero tokens yield integer 0. A single token is a variable lookup or a
// literal coercion (int, float, bool, string — in that order), never an
// operator expression, so a lone "1+2" token stays the string "1+2".
// Multiple tokens are joined and parsed as a full expression; any failure
// logs one warning and returns integer 0.
func Eval(tokens []string, store *vars.Store, log logging.Func) vars.Value {
	log = logging.Safe(log)
	switch len(tokens) {
	case 0:
		return vars.IntVal(0)
	case 1:
		tok := tokens[0]
		if lexer.IsVariable(tok) {
			return store.Get(tok, vars.IntVal(0))
		}
		return vars.Coerce(tok)
	}

	expr := strings.Join(tokens, " ")
	v, err := evalString(expr, store)
	if err != nil {
		log(logging.Warning, fmt.Sprintf("expression error %q: %v", expr, err))
		return vars.IntVal(0)
	}
	return v
}

func evalString(expr string, store *vars.Store) (vars.Value, error) {
	toks, err := lexExpr(expr)
	if err != nil {
		return vars.Value{}, err
	}
	p := &exprParser{toks: toks, store: store}
	v, err := p.parse(precOr)
	if err != nil {
		return vars.Value{}, err
	}
	if p.peek().kind != tkEOF {
		return vars.Value{}, fmt.Errorf("unexpected %q", p.peek().text)
	}
	return v, nil
}

// --- expression tokens ---

type tkKind int

const (
	tkEOF tkKind = iota
	tkNumber
	tkString
	tkBool
	tkVar
	tkOp
	tkLParen
	tkRParen
)

type etok struct {
	kind tkKind
	text string
	val  vars.Value
}

func lexExpr(s string) ([]etok, error) {
	var toks []etok
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9':
			j := i
			seenDot := false
			for j < len(s) && (isDigit(s[j]) || (s[j] == '.' && !seenDot)) {
				if s[j] == '.' {
					seenDot = true
				}
				j++
			}
			lit := s[i:j]
			if seenDot {
				f, err := strconv.ParseFloat(lit, 64)
				if err != nil {
					return nil, fmt.Errorf("bad number %q", lit)
				}
				toks = append(toks, etok{kind: tkNumber, text: lit, val: vars.FloatVal(f)})
			} else {
				n, err := strconv.ParseInt(lit, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("bad number %q", lit)
				}
				toks = append(toks, etok{kind: tkNumber, text: lit, val: vars.IntVal(n)})
			}
			i = j
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			if j >= len(s) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, etok{kind: tkString, val: vars.StrVal(s[i+1 : j])})
			i = j + 1
		case c == '$':
			j := i + 1
			for j < len(s) && isWordChar(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("bad variable reference")
			}
			toks = append(toks, etok{kind: tkVar, text: s[i:j]})
			i = j
		case isWordStart(c):
			j := i
			for j < len(s) && isWordChar(s[j]) {
				j++
			}
			word := s[i:j]
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, etok{kind: tkOp, text: "and"})
			case "OR":
				toks = append(toks, etok{kind: tkOp, text: "or"})
			case "NOT":
				toks = append(toks, etok{kind: tkOp, text: "not"})
			case "TRUE":
				toks = append(toks, etok{kind: tkBool, val: vars.BoolVal(true)})
			case "FALSE":
				toks = append(toks, etok{kind: tkBool, val: vars.BoolVal(false)})
			default:
				// Bare words are string literals.
				toks = append(toks, etok{kind: tkString, val: vars.StrVal(word)})
			}
			i = j
		case c == '(':
			toks = append(toks, etok{kind: tkLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, etok{kind: tkRParen, text: ")"})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, etok{kind: tkOp, text: s[i : i+2]})
				i += 2
				break
			}
			if c == '<' || c == '>' {
				toks = append(toks, etok{kind: tkOp, text: string(c)})
				i++
				break
			}
			return nil, fmt.Errorf("unexpected %q", string(c))
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, etok{kind: tkOp, text: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected %q", string(c))
		}
	}
	toks = append(toks, etok{kind: tkEOF})
	return toks, nil
}

func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isWordStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isWordChar(c byte) bool  { return isWordStart(c) || isDigit(c) }

// --- precedence-climbing evaluator ---

const (
	precOr   = 1
	precAnd  = 2
	precNot  = 3 // unary; binds looser than comparison
	precCmp  = 3
	precAdd  = 4
	precMul  = 5
	precUnit = 6 // operand of unary minus
)

func binPrec(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "==", "!=", "<", "<=", ">", ">=":
		return precCmp
	case "+", "-":
		return precAdd
	case "*", "/":
		return precMul
	}
	return 0
}

type exprParser struct {
	toks  []etok
	pos   int
	store *vars.Store
}

func (p *exprParser) peek() etok { return p.toks[p.pos] }

func (p *exprParser) next() etok {
	t := p.toks[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) parse(minPrec int) (vars.Value, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return vars.Value{}, err
	}
	for {
		t := p.peek()
		if t.kind != tkOp {
			break
		}
		prec := binPrec(t.text)
		if prec == 0 || prec < minPrec {
			break
		}
		p.next()
		rhs, err := p.parse(prec + 1)
		if err != nil {
			return vars.Value{}, err
		}
		lhs, err = applyBinary(t.text, lhs, rhs)
		if err != nil {
			return vars.Value{}, err
		}
	}
	return lhs, nil
}

func (p *exprParser) parseUnary() (vars.Value, error) {
	t := p.peek()
	switch {
	case t.kind == tkOp && t.text == "not":
		p.next()
		v, err := p.parse(precNot)
		if err != nil {
			return vars.Value{}, err
		}
		return vars.BoolVal(!v.Truthy()), nil
	case t.kind == tkOp && t.text == "-":
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return vars.Value{}, err
		}
		switch v.Kind {
		case vars.KindInt:
			return vars.IntVal(-v.I), nil
		case vars.KindFloat:
			return vars.FloatVal(-v.F), nil
		default:
			return vars.Value{}, fmt.Errorf("cannot negate %s", v.Kind)
		}
	case t.kind == tkLParen:
		p.next()
		v, err := p.parse(precOr)
		if err != nil {
			return vars.Value{}, err
		}
		if p.peek().kind != tkRParen {
			return vars.Value{}, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case t.kind == tkNumber || t.kind == tkString || t.kind == tkBool:
		p.next()
		return t.val, nil
	case t.kind == tkVar:
		p.next()
		return p.store.Get(t.text, vars.IntVal(0)), nil
	default:
		return vars.Value{}, fmt.Errorf("unexpected %q", t.text)
	}
}

// intLike reports whether arithmetic on the value stays in the integer
// domain (booleans count as 0/1, the way the source language treats them).
func intLike(v vars.Value) bool {
	return v.Kind == vars.KindInt || v.Kind == vars.KindBool
}

func intOf(v vars.Value) int64 {
	n, _ := v.AsInt()
	return n
}

func applyBinary(op string, a, b vars.Value) (vars.Value, error) {
	switch op {
	case "or":
		return vars.BoolVal(a.Truthy() || b.Truthy()), nil
	case "and":
		return vars.BoolVal(a.Truthy() && b.Truthy()), nil
	case "==", "!=":
		return applyEquality(op, a, b), nil
	case "<", "<=", ">", ">=":
		return applyOrdering(op, a, b)
	case "+":
		if a.Kind == vars.KindString && b.Kind == vars.KindString {
			return vars.StrVal(a.S + b.S), nil
		}
		fallthrough
	case "-", "*", "/":
		return applyArithmetic(op, a, b)
	}
	return vars.Value{}, fmt.Errorf("unknown operator %q", op)
}

func applyEquality(op string, a, b vars.Value) vars.Value {
	eq := false
	af, aNum := a.Number()
	bf, bNum := b.Number()
	switch {
	case aNum && bNum:
		eq = af == bf
	case a.Kind == vars.KindString && b.Kind == vars.KindString:
		eq = a.S == b.S
	}
	if op == "!=" {
		eq = !eq
	}
	return vars.BoolVal(eq)
}

func applyOrdering(op string, a, b vars.Value) (vars.Value, error) {
	af, aNum := a.Number()
	bf, bNum := b.Number()
	var less, equal bool
	switch {
	case aNum && bNum:
		less, equal = af < bf, af == bf
	case a.Kind == vars.KindString && b.Kind == vars.KindString:
		less, equal = a.S < b.S, a.S == b.S
	default:
		return vars.Value{}, fmt.Errorf("cannot order %s and %s", a.Kind, b.Kind)
	}
	switch op {
	case "<":
		return vars.BoolVal(less), nil
	case "<=":
		return vars.BoolVal(less || equal), nil
	case ">":
		return vars.BoolVal(!less && !equal), nil
	default: // ">="
		return vars.BoolVal(!less), nil
	}
}

func applyArithmetic(op string, a, b vars.Value) (vars.Value, error) {
	af, aNum := a.Number()
	bf, bNum := b.Number()
	if !aNum || !bNum {
		return vars.Value{}, fmt.Errorf("cannot apply %q to %s and %s", op, a.Kind, b.Kind)
	}
	if op == "/" {
		if bf == 0 {
			return vars.Value{}, fmt.Errorf("division by zero")
		}
		return vars.FloatVal(af / bf), nil
	}
	if intLike(a) && intLike(b) {
		ai, bi := intOf(a), intOf(b)
		switch op {
		case "+":
			return vars.IntVal(ai + bi), nil
		case "-":
			return vars.IntVal(ai - bi), nil
		default: // "*"
			return vars.IntVal(ai * bi), nil
		}
	}
	switch op {
	case "+":
		return vars.FloatVal(af + bf), nil
	case "-":
		return vars.FloatVal(af - bf), nil
	default: // "*"
		return vars.FloatVal(af * bf), nil
	}
}
