package condition

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota // Identifier or number
	tokString
	tokTrue
	tokFalse
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// precedence of every operator; comparisons bind tightest.
var precedence = map[string]int{
	"==":  4,
	"!=":  4,
	">":   4,
	"<":   4,
	">=":  4,
	"<=":  4,
	"not": 3,
	"and": 2,
	"or":  1,
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'
}

func tokenize(s string) ([]token, error) {
	var tokens []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '"':
			end := -1
			for j := i + 1; j < len(rs); j++ {
				if rs[j] == '"' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, errors.New("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: string(rs[i+1 : end])})
			i = end + 1
		case strings.ContainsRune("=!<>", r):
			if i+1 < len(rs) {
				if two := string(rs[i : i+2]); precedence[two] == 4 {
					tokens = append(tokens, token{kind: tokOp, text: two})
					i += 2
					continue
				}
			}
			if r != '<' && r != '>' {
				return nil, fmt.Errorf("unknown character: %c", r)
			}
			tokens = append(tokens, token{kind: tokOp, text: string(r)})
			i++
		case isWordRune(r):
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			tokens = append(tokens, word(string(rs[i:j])))
			i = j
		default:
			return nil, fmt.Errorf("unknown character: %c", r)
		}
	}
	return tokens, nil
}

func word(w string) token {
	switch w {
	case "and", "or", "not":
		return token{kind: tokOp, text: w}
	case "true":
		return token{kind: tokTrue, text: w}
	case "false":
		return token{kind: tokFalse, text: w}
	}
	return token{kind: tokWord, text: w}
}

// toRPN reorders infix tokens into reverse polish notation.
func toRPN(tokens []token) ([]token, error) {
	var out, stack []token
	for _, tok := range tokens {
		switch tok.kind {
		case tokOp:
			p := precedence[tok.text]
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokOp {
					break
				}
				tp := precedence[top.text]
				// not is a prefix operator and must not pop a pending not
				if tp < p || (tp == p && tok.text == "not") {
					break
				}
				out = append(out, top)
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, tok)
		case tokLParen:
			stack = append(stack, tok)
		case tokRParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokLParen {
					matched = true
					break
				}
				out = append(out, top)
			}
			if !matched {
				return nil, errors.New("unbalanced parentheses")
			}
		default:
			out = append(out, tok)
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == tokLParen {
			return nil, errors.New("unbalanced parentheses")
		}
		out = append(out, top)
	}
	return out, nil
}

func buildTree(rpn []token) (node, error) {
	var stack []node
	pop := func() node {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return n
	}
	for _, tok := range rpn {
		if tok.kind != tokOp {
			stack = append(stack, literal{tok: tok})
			continue
		}
		if tok.text == "not" {
			if len(stack) < 1 {
				return nil, errors.New("missing operand for not")
			}
			stack = append(stack, unary{op: tok.text, arg: pop()})
			continue
		}
		if len(stack) < 2 {
			return nil, fmt.Errorf("missing operand for %s", tok.text)
		}
		right := pop()
		left := pop()
		stack = append(stack, binary{op: tok.text, left: left, right: right})
	}
	if len(stack) != 1 {
		return nil, errors.New("expression does not reduce to a single value")
	}
	return stack[0], nil
}
