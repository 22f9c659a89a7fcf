package sema

import (
	"strconv"

	"cairn/internal/ast"
	"cairn/internal/sym"
	"cairn/internal/types"
)

// evalConstInt is the recursive, side-effect-free constant evaluator
// requires for global initializers, case labels,
// static-assert expressions, enum values, array sizes, bit-field widths,
// and sizeof/alignof of type operands. It returns ok=false for any
// non-constant subexpression (the caller reports the location).
func (a *Analyzer) evalConstInt(e ast.Expr) (int64, *types.Type, bool) {
	switch n := e.(type) {
	case *ast.NumberLit:
		if n.IsFloat {
			return 0, nil, false
		}
		v, err := strconv.ParseInt(n.Text, 0, 64)
		if err != nil {
			if u, uerr := strconv.ParseUint(n.Text, 0, 64); uerr == nil {
				return int64(u), types.TUInt, true
			}
			return 0, nil, false
		}
		return v, types.TInt, true
	case *ast.CharLit:
		return int64(n.Value), types.TChar, true
	case *ast.Ident:
		if s := a.Syms.Lookup(n.Name); s != nil && s.Kind == sym.EnumConstant {
			return s.EnumValue, types.TInt, true
		}
		return 0, nil, false
	case *ast.UnaryExpr:
		v, t, ok := a.evalConstInt(n.Operand)
		if !ok {
			return 0, nil, false
		}
		switch n.Op {
		case "-":
			return wrapSigned(-v, t, a.Opts.WordSize()), t, true
		case "+":
			return v, t, true
		case "!":
			if v == 0 {
				return 1, types.TInt, true
			}
			return 0, types.TInt, true
		case "~":
			return wrapSigned(^v, t, a.Opts.WordSize()), t, true
		}
		return 0, nil, false
	case *ast.BinaryExpr:
		l, lt, ok1 := a.evalConstInt(n.L)
		r, rt, ok2 := a.evalConstInt(n.R)
		if !ok1 || !ok2 {
			return 0, nil, false
		}
		rest := types.UsualArithmeticConversion(lt, rt)
		return a.foldBinaryConst(n.Op, l, r, rest)
	case *ast.ConditionalExpr:
		c, _, ok := a.evalConstInt(n.Cond)
		if !ok {
			return 0, nil, false
		}
		if c != 0 {
			return a.evalConstInt(n.Then)
		}
		return a.evalConstInt(n.Else)
	case *ast.CastExpr:
		v, _, ok := a.evalConstInt(n.Operand)
		if !ok {
			return 0, nil, false
		}
		t := a.resolveTypeName(n.To)
		return wrapSigned(v, t, a.Opts.WordSize()), t, true
	case *ast.SizeofExpr:
		if n.OfType != nil {
			t := a.resolveTypeName(n.OfType)
			return int64(types.SizeOf(t, a.Opts.WordSize())), types.TULong, true
		}
		_, t, err := a.checkExprNoEmit(n.OfValue)
		if err != nil {
			return 0, nil, false
		}
		return int64(types.SizeOf(t, a.Opts.WordSize())), types.TULong, true
	case *ast.AlignofExpr:
		t := a.resolveTypeName(n.Of)
		return int64(types.AlignOf(t, a.Opts.WordSize())), types.TULong, true
	}
	return 0, nil, false
}

// foldBinaryConst implements the integer-arithmetic/comparison/logical
// subset of the constant evaluator, matching Open Question
// resolution: signed overflow wraps at the operand width.
func (a *Analyzer) foldBinaryConst(op string, l, r int64, t *types.Type) (int64, *types.Type, bool) {
	w := a.Opts.WordSize()
	switch op {
	case "+":
		return wrapSigned(l+r, t, w), t, true
	case "-":
		return wrapSigned(l-r, t, w), t, true
	case "*":
		return wrapSigned(l*r, t, w), t, true
	case "/":
		if r == 0 {
			return 0, t, true // pass 5: "Division by zero folds to zero."
		}
		return wrapSigned(l/r, t, w), t, true
	case "%":
		if r == 0 {
			return 0, t, true
		}
		return wrapSigned(l%r, t, w), t, true
	case "&":
		return l & r, t, true
	case "|":
		return l | r, t, true
	case "^":
		return l ^ r, t, true
	case "<<":
		return wrapSigned(l<<uint(r%int64(w*8)), t, w), t, true
	case ">>":
		return l >> uint(r%int64(w*8)), t, true
	case "==":
		return boolInt(l == r), types.TInt, true
	case "!=":
		return boolInt(l != r), types.TInt, true
	case "<":
		return boolInt(l < r), types.TInt, true
	case "<=":
		return boolInt(l <= r), types.TInt, true
	case ">":
		return boolInt(l > r), types.TInt, true
	case ">=":
		return boolInt(l >= r), types.TInt, true
	case "&&":
		return boolInt(l != 0 && r != 0), types.TInt, true
	case "||":
		return boolInt(l != 0 || r != 0), types.TInt, true
	}
	return 0, nil, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// wrapSigned applies two's-complement wraparound at the type's width for
// signed integer types; unsigned/non-integer types pass through unchanged
// (the host int64 already behaves like the wider unsigned arithmetic for
// our purposes since we only fold to 64 bits internally).
func wrapSigned(v int64, t *types.Type, wordSize int) int64 {
	if t == nil || !t.IsInteger() || t.IsUnsigned() {
		return v
	}
	bits := types.SizeOf(t, wordSize) * 8
	if bits >= 64 {
		return v
	}
	mask := int64(1)<<uint(bits) - 1
	v &= mask
	signBit := int64(1) << uint(bits-1)
	if v&signBit != 0 {
		v -= int64(1) << uint(bits)
	}
	return v
}
