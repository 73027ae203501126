package orchestrator

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// The calculator never runs arbitrary code. The clause is reduced to a
// whitelisted arithmetic expression (digits, + - * / ( ) .) after known
// variable names are substituted with their numeric values, then evaluated
// by a small recursive-descent parser.

var calcStripRe = regexp.MustCompile(`[^0-9+\-*/().\s]`)

// EvaluateExpression derives an arithmetic expression from the clause and
// evaluates it against the collected variables. It returns the rendered
// result, or the insufficient-data message when the clause carries nothing
// computable.
func EvaluateExpression(text string, env map[string]float64) (float64, string, bool) {
	expr := strings.ReplaceAll(text, "퍼센트", "/100")
	expr = substituteVariables(expr, env)
	expr = calcStripRe.ReplaceAllString(expr, " ")

	val, err := evalArithmetic(expr)
	if err != nil {
		return 0, msgInsufficientData, false
	}
	return val, strconv.FormatFloat(val, 'f', -1, 64), true
}

// substituteVariables replaces known variable names with their values.
// Longer names go first so "T1_cps" is not clobbered by a bare "cps"
// replacement. Bare short keys resolve to the most recent task exposing
// that metric, which is the last entry when keys sort by task id.
func substituteVariables(expr string, env map[string]float64) string {
	if len(env) == 0 {
		return expr
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		val := strconv.FormatFloat(env[name], 'f', -1, 64)
		expr = strings.ReplaceAll(expr, name, val)
	}

	// Bare metric keys refer to the latest task that produced them.
	latest := map[string]float64{}
	ids := make([]string, 0, len(env))
	for name := range env {
		ids = append(ids, name)
	}
	sort.Strings(ids)
	for _, name := range ids {
		if i := strings.LastIndex(name, "_"); i > 0 {
			latest[name[i+1:]] = env[name]
		}
	}
	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		expr = strings.ReplaceAll(expr, k, strconv.FormatFloat(latest[k], 'f', -1, 64))
	}

	return expr
}

type exprParser struct {
	input []rune
	pos   int
}

// evalArithmetic evaluates the whitelisted expression. Empty input, syntax
// errors, and division by zero all return errors, never panics.
func evalArithmetic(expr string) (float64, error) {
	p := &exprParser{input: []rune(expr)}
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, errors.New("empty expression")
	}
	val, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, errors.Errorf("unexpected token at %d", p.pos)
	}
	return val, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n') {
		p.pos++
	}
}

func (p *exprParser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		}
	}
}

// parseFactor handles numbers, unary minus, and parentheses.
func (p *exprParser) parseFactor() (float64, error) {
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		val, err := p.parseFactor()
		return -val, err
	case c == '(':
		p.pos++
		val, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return val, nil
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return 0, errors.Errorf("expected number at %d", start)
	}
	return strconv.ParseFloat(string(p.input[start:p.pos]), 64)
}
