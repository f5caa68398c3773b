package enums

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// C-style integer suffixes: 10u, 0xFFUL, 1LL.
var integerSuffix = regexp.MustCompile(`\b(0[xX][0-9a-fA-F]+|0[bB][01]+|[0-9]+)[uUlL]+\b`)

// parseValueExpr parses a raw value expression. symbolic reports whether the
// expression references other members.
func parseValueExpr(text string) (expr ast.Expr, symbolic bool, err error) {
	text = integerSuffix.ReplaceAllString(strings.TrimSpace(text), "$1")
	expr, err = parser.ParseExpr(text)
	if err != nil {
		return nil, false, err
	}
	ast.Inspect(expr, func(n ast.Node) bool {
		if _, ok := n.(*ast.Ident); ok {
			symbolic = true
		}
		return !symbolic
	})
	return expr, symbolic, nil
}

// evaluator folds value expressions with arbitrary precision. Identifiers
// resolve to members declared earlier.
type evaluator struct {
	bits    int
	signed  bool
	defined map[string]constant.Value
}

func (e *evaluator) eval(expr ast.Expr) (constant.Value, error) {
	switch x := expr.(type) {
	case *ast.BasicLit:
		if x.Kind != token.INT {
			return nil, fmt.Errorf("%s is not an integer literal", x.Value)
		}
		v := constant.MakeFromLiteral(x.Value, x.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, fmt.Errorf("malformed literal %s", x.Value)
		}
		return v, nil
	case *ast.Ident:
		v, ok := e.defined[x.Name]
		if !ok {
			return nil, fmt.Errorf("undefined member %s", x.Name)
		}
		return v, nil
	case *ast.ParenExpr:
		return e.eval(x.X)
	case *ast.UnaryExpr:
		v, err := e.eval(x.X)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case token.SUB, token.ADD:
			return constant.UnaryOp(x.Op, v, 0), nil
		case token.TILDE, token.XOR:
			// Unsigned complements stay within the underlying width.
			prec := uint(0)
			if !e.signed && constant.Sign(v) >= 0 {
				prec = uint(e.bits)
			}
			return constant.UnaryOp(token.XOR, v, prec), nil
		}
		return nil, fmt.Errorf("unsupported operator %s", x.Op)
	case *ast.BinaryExpr:
		l, err := e.eval(x.X)
		if err != nil {
			return nil, err
		}
		r, err := e.eval(x.Y)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case token.OR, token.AND, token.XOR, token.ADD, token.SUB:
			return constant.BinaryOp(l, x.Op, r), nil
		case token.SHL, token.SHR:
			s, ok := constant.Uint64Val(r)
			if !ok || s > 64 {
				return nil, fmt.Errorf("invalid shift count %s", r)
			}
			return constant.Shift(l, x.Op, uint(s)), nil
		}
		return nil, fmt.Errorf("unsupported operator %s", x.Op)
	}
	return nil, fmt.Errorf("unsupported expression %T", expr)
}
