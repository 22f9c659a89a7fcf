package sema

import (
	"cairn/internal/ast"
	"cairn/internal/types"
)

// checkExprNoEmit computes an expression's static type without emitting
// any LIR, matching C's sizeof-does-not-evaluate-its-operand rule (used
// by the constant evaluator for sizeof(expr), ).
func (a *Analyzer) checkExprNoEmit(e ast.Expr) (*types.Type, *types.Type, error) {
	t, err := a.typeOf(e)
	return t, t, err
}

func (a *Analyzer) typeOf(e ast.Expr) (*types.Type, error) {
	switch n := e.(type) {
	case *ast.NumberLit:
		if n.IsFloat {
			return types.TDouble, nil
		}
		return types.TInt, nil
	case *ast.CharLit:
		return types.TChar, nil
	case *ast.StringLit:
		return &types.Type{Kind: types.Ptr, Inner: types.TChar}, nil
	case *ast.Ident:
		if s := a.Syms.Lookup(n.Name); s != nil {
			return s.Type, nil
		}
		return nil, a.Diag.Errorf(n.Pos(), "undeclared identifier %q", n.Name)
	case *ast.UnaryExpr:
		inner, err := a.typeOf(n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "*":
			if inner.Kind != types.Ptr {
				return nil, a.Diag.Errorf(n.Pos(), "cannot dereference non-pointer type")
			}
			return inner.Inner, nil
		case "&":
			return &types.Type{Kind: types.Ptr, Inner: inner}, nil
		default:
			return types.Promote(inner), nil
		}
	case *ast.BinaryExpr:
		lt, err := a.typeOf(n.L)
		if err != nil {
			return nil, err
		}
		rt, err := a.typeOf(n.R)
		if err != nil {
			return nil, err
		}
		if n.Op == "+" || n.Op == "-" {
			if lt.Kind == types.Ptr {
				return lt, nil
			}
			if rt.Kind == types.Ptr {
				return rt, nil
			}
		}
		if isCmpOp(n.Op) || isLogicalOp(n.Op) {
			return types.TInt, nil
		}
		return types.UsualArithmeticConversion(lt, rt), nil
	case *ast.IndexExpr:
		at, err := a.typeOf(n.Array)
		if err != nil {
			return nil, err
		}
		if at.Kind == types.Ptr {
			return at.Inner, nil
		}
		if at.Kind == types.Array {
			return at.Elem, nil
		}
		return nil, a.Diag.Errorf(n.Pos(), "indexed value is not an array or pointer")
	case *ast.MemberExpr:
		ot, err := a.typeOf(n.Object)
		if err != nil {
			return nil, err
		}
		st := ot
		if n.Arrow {
			if ot.Kind != types.Ptr {
				return nil, a.Diag.Errorf(n.Pos(), "-> on non-pointer")
			}
			st = ot.Inner
		}
		for _, m := range st.Members {
			if m.Name == n.Name {
				return m.Type, nil
			}
		}
		return nil, a.Diag.Errorf(n.Pos(), "no member named %q", n.Name)
	case *ast.CallExpr:
		if id, ok := n.Callee.(*ast.Ident); ok {
			if s := a.Syms.Lookup(id.Name); s != nil && s.Type.Kind == types.Func {
				return s.Type.Ret, nil
			}
		}
		return types.TInt, nil
	case *ast.CastExpr:
		return a.resolveTypeName(n.To), nil
	case *ast.ConditionalExpr:
		return a.typeOf(n.Then)
	case *ast.AssignExpr:
		return a.typeOf(n.Target)
	}
	return types.TInt, nil
}

func isCmpOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func isLogicalOp(op string) bool { return op == "&&" || op == "||" }
