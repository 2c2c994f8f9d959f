// Package condition parses infix boolean expressions such as
//
//	(count >= 10 and name != "guest") or not done
//
// into the expression object Power Automate conditionals evaluate.
// Bare identifiers refer to flow variables.
package condition

import (
	"strconv"
	"strings"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Condition is a parsed boolean expression.
type Condition struct {
	source string
	root   node
}

// Parse tokenizes and parses an infix expression.
func Parse(expr string) (*Condition, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, invalid(expr, err.Error())
	}
	if len(tokens) == 0 {
		return nil, invalid(expr, "empty expression")
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return nil, invalid(expr, err.Error())
	}
	root, err := buildTree(rpn)
	if err != nil {
		return nil, invalid(expr, err.Error())
	}
	return &Condition{source: expr, root: root}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) *Condition {
	c, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the source expression.
func (c *Condition) String() string {
	return c.source
}

// Export returns the JSON-ready expression object.
func (c *Condition) Export() any {
	return c.root.export()
}

func invalid(expr, msg string) error {
	return core.ErrInvalidExpression.WithSubject(strconv.Quote(expr)).WithMessage(msg)
}

type node interface {
	export() any
}

type literal struct {
	tok token
}

func (l literal) export() any {
	switch l.tok.kind {
	case tokTrue:
		return true
	case tokFalse:
		return false
	case tokString:
		return l.tok.text
	}
	text := l.tok.text
	if strings.Contains(text, ".") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	} else if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	return "@variables('" + text + "')"
}

// Expression operators keyed by their infix spelling.
var operatorNames = map[string]string{
	"==":  "equals",
	">=":  "greaterOrEquals",
	"<=":  "lessOrEquals",
	">":   "greater",
	"<":   "less",
	"and": "and",
	"or":  "or",
	"not": "not",
}

type unary struct {
	op  string
	arg node
}

func (u unary) export() any {
	return map[string]any{operatorNames[u.op]: u.arg.export()}
}

type binary struct {
	op          string
	left, right node
}

func (b binary) export() any {
	args := []any{b.left.export(), b.right.export()}
	if b.op == "!=" {
		return map[string]any{"not": map[string]any{"equals": args}}
	}
	return map[string]any{operatorNames[b.op]: args}
}
