// Package select implements Instruction Selection (spec.md §4.5, component C7): the
// bottom-up rewrite from a P4-level expression tree into a candidate ALU FieldAction.
// Selection is a pure function of the expression shape, implemented as a
// deterministic pattern-match dispatch rather than a search.
package sel

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Select converts one P4-level assignment `write = expr` into a FieldAction, choosing
// the opcode per spec §4.5's table. It returns the reads in the order the chosen
// opcode expects them (pkg/verify's commutativity pass may still reorder them later
// for source-slot assignment; this is about WHICH opcode, not slot order).
func Select(name string, write ir.Expr, expr ir.Expr) (ir.FieldAction, error) {
	switch e := expr.(type) {
	case *ir.BinOp:
		return selectBinOp(name, write, e)
	case *ir.UnOp:
		return selectUnOp(name, write, e)
	case *ir.Ternary:
		return selectTernary(name, write, e)
	default:
		// Anything else (a bare field/constant/action-arg reference) is a plain move.
		return ir.FieldAction{Name: name, Op: ir.OpSet, Write: asParam(write), Reads: []ir.ActionParam{asParam(expr)}}, nil
	}
}

func asParam(e ir.Expr) ir.ActionParam {
	kind := ir.ParamPHV
	switch e.(type) {
	case *ir.ActionArg, *ir.ActionDataConstant, *ir.HashDist, *ir.RandomNumber:
		kind = ir.ParamActionData
	case *ir.Constant:
		kind = ir.ParamConstant
	}
	return ir.ActionParam{Kind: kind, Expr: e}
}

// unwrapNot reports whether e is a bitwise-NOT of some inner expression, per spec
// §4.5's "with NOTs folded" rows.
func unwrapNot(e ir.Expr) (inner ir.Expr, negated bool) {
	if u, ok := e.(*ir.UnOp); ok && u.Kind == ir.UnNot {
		return u.Operand, true
	}
	return e, false
}

func selectBinOp(name string, write ir.Expr, b *ir.BinOp) (ir.FieldAction, error) {
	switch b.Kind {
	case ir.BinAnd:
		l, ln := unwrapNot(b.LHS)
		r, rn := unwrapNot(b.RHS)
		op := ir.OpAnd
		switch {
		case ln && rn:
			// ~a & ~b == ~(a | b) by De Morgan: this is the NOR shape, not NAND.
			op = ir.OpNor
		case ln:
			op = ir.OpAndCB // ~a & b
		case rn:
			op = ir.OpAndCA // a & ~b
		}
		return fieldAction(name, op, write, l, r), nil

	case ir.BinOr:
		l, ln := unwrapNot(b.LHS)
		r, rn := unwrapNot(b.RHS)
		op := ir.OpOr
		switch {
		case ln && rn:
			// ~a | ~b == ~(a & b) by De Morgan: this is the one shape that is genuinely a
			// NAND, unlike the symmetric AND-row case above.
			op = ir.OpNand
		case ln:
			op = ir.OpOrCB
		case rn:
			op = ir.OpOrCA
		}
		return fieldAction(name, op, write, l, r), nil

	case ir.BinXor:
		l, ln := unwrapNot(b.LHS)
		r, rn := unwrapNot(b.RHS)
		op := ir.OpXor
		if ln != rn { // exactly one side negated: ~a^b == a^~b == ~(a^b) == xnor
			op = ir.OpXnor
		}
		return fieldAction(name, op, write, l, r), nil

	case ir.BinAdd:
		if b.Saturating {
			op := ir.OpSaddU
			if b.Signed {
				op = ir.OpSaddS
			}
			return fieldAction(name, op, write, b.LHS, b.RHS), nil
		}
		return fieldAction(name, ir.OpAdd, write, b.LHS, b.RHS), nil

	case ir.BinSatAdd:
		op := ir.OpSaddU
		if b.Signed {
			op = ir.OpSaddS
		}
		return fieldAction(name, op, write, b.LHS, b.RHS), nil

	case ir.BinSub:
		return selectSub(name, write, b)

	case ir.BinShl:
		return fieldAction(name, ir.OpShl, write, b.LHS, b.RHS), nil

	case ir.BinShr:
		op := ir.OpShrU
		if b.Signed {
			op = ir.OpShrS
		}
		return fieldAction(name, op, write, b.LHS, b.RHS), nil

	default:
		return ir.FieldAction{}, fmt.Errorf("select: unhandled BinOpKind %d", b.Kind)
	}
}

// selectSub implements spec §4.5's `a - b -> sub, or add of negated constant when
// constant` and the saturating-subtract rewrite rules from the paragraph beneath the
// table: ssubs with a constant src2 becomes sadds of the negated constant unless the
// constant is the most-negative representable value (negating it would overflow).
func selectSub(name string, write ir.Expr, b *ir.BinOp) (ir.FieldAction, error) {
	if b.Saturating {
		if c, ok := b.RHS.(*ir.Constant); ok && b.Signed {
			minVal := -(int64(1) << uint(b.BitWidth-1))
			if c.Value != minVal {
				neg := &ir.Constant{Value: -c.Value, BitWidth: c.BitWidth, Signed: true}
				return fieldAction(name, ir.OpSaddS, write, b.LHS, neg), nil
			}
		}
		if !b.Signed {
			// Unsigned saturating subtract cannot take a constant src2 on this hardware;
			// the caller (pkg/adjust) must materialise the constant into action-data via a
			// synthesised metadata table (spec §4.5 last paragraph, scenario S5). Selection
			// still emits the literal ssubu so the adjustment pipeline has something to act on.
			return fieldAction(name, ir.OpSsubU, write, b.LHS, b.RHS), nil
		}
		return fieldAction(name, ir.OpSsubS, write, b.LHS, b.RHS), nil
	}
	if c, ok := b.RHS.(*ir.Constant); ok {
		neg := &ir.Constant{Value: -c.Value, BitWidth: c.BitWidth, Signed: true}
		return fieldAction(name, ir.OpAdd, write, b.LHS, neg), nil
	}
	return fieldAction(name, ir.OpSub, write, b.LHS, b.RHS), nil
}

func selectUnOp(name string, write ir.Expr, u *ir.UnOp) (ir.FieldAction, error) {
	switch u.Kind {
	case ir.UnNot:
		return fieldAction(name, ir.OpNot, write, u.Operand), nil
	case ir.UnNeg:
		// -a == sub 0, a (spec §4.5).
		zero := &ir.Constant{Value: 0, BitWidth: u.BitWidth, Signed: true}
		return fieldAction(name, ir.OpSub, write, zero, u.Operand), nil
	default:
		return ir.FieldAction{}, fmt.Errorf("select: unhandled UnOpKind %d", u.Kind)
	}
}

// selectTernary implements spec §4.5's conditional-set row: `cond ? t : f` becomes
// minu/s or maxu/s when the branches exactly match the compared operands in the shape
// a min/max reduces to, otherwise a synthesised conditionally-set.
func selectTernary(name string, write ir.Expr, t *ir.Ternary) (ir.FieldAction, error) {
	if op, lhs, rhs, ok := minMaxShape(t); ok {
		return fieldAction(name, op, write, lhs, rhs), nil
	}
	// Fall back to a synthesised conditionally-set: the condition becomes an implicit
	// extra read so the verifier can still account for every source operand.
	return ir.FieldAction{
		Name:  name,
		Op:    ir.OpConditionallySet,
		Write: asParam(write),
		Reads: []ir.ActionParam{asParam(t.CmpLHS), asParam(t.CmpRHS), asParam(t.IfTrue), asParam(t.IfFalse)},
	}, nil
}

// minMaxShape recognises `a < b ? a : b` (and the symmetric/mirrored/signed variants)
// as min, and the dual shape as max.
func minMaxShape(t *ir.Ternary) (op ir.Opcode, lhs, rhs ir.Expr, ok bool) {
	sameExpr := func(a, b ir.Expr) bool {
		af, aok := a.(*ir.FieldRef)
		bf, bok := b.(*ir.FieldRef)
		return aok && bok && af.Field == bf.Field
	}
	cmpLo, cmpHi := t.CmpLHS, t.CmpRHS
	switch t.Cmp {
	case ir.CmpLt, ir.CmpLe:
		if sameExpr(t.IfTrue, cmpLo) && sameExpr(t.IfFalse, cmpHi) {
			if t.Signed {
				return ir.OpMinS, cmpLo, cmpHi, true
			}
			return ir.OpMinU, cmpLo, cmpHi, true
		}
		if sameExpr(t.IfTrue, cmpHi) && sameExpr(t.IfFalse, cmpLo) {
			if t.Signed {
				return ir.OpMaxS, cmpLo, cmpHi, true
			}
			return ir.OpMaxU, cmpLo, cmpHi, true
		}
	case ir.CmpGt, ir.CmpGe:
		if sameExpr(t.IfTrue, cmpLo) && sameExpr(t.IfFalse, cmpHi) {
			if t.Signed {
				return ir.OpMaxS, cmpLo, cmpHi, true
			}
			return ir.OpMaxU, cmpLo, cmpHi, true
		}
		if sameExpr(t.IfTrue, cmpHi) && sameExpr(t.IfFalse, cmpLo) {
			if t.Signed {
				return ir.OpMinS, cmpLo, cmpHi, true
			}
			return ir.OpMinU, cmpLo, cmpHi, true
		}
	}
	return 0, nil, nil, false
}

// SelectModifyField implements spec §4.5's `modify_field(dst, src, mask)` row: a
// whole-width mask is a plain set, anything narrower needs bitmasked-set.
func SelectModifyField(name string, write, src ir.Expr, maskFullWidth bool) ir.FieldAction {
	op := ir.OpBitmaskedSet
	if maskFullWidth {
		op = ir.OpSet
	}
	return fieldAction(name, op, write, src)
}

// SelectFunnelShift implements spec §4.5's funnel-shift pattern row: `(hi ++ lo) >> k`
// reads the high and low halves of a wide source value and selects funnel-shift. The
// caller (pkg/adjust's Split pass, for a shift split across two containers) is
// responsible for identifying the two halves; this constructs the resulting
// FieldAction once they are known.
func SelectFunnelShift(name string, write, hi, lo ir.Expr, shiftAmount int) (ir.FieldAction, error) {
	if hi.Width() != lo.Width() {
		return ir.FieldAction{}, fmt.Errorf("select: funnel-shift halves have unequal width (%d vs %d)", hi.Width(), lo.Width())
	}
	if shiftAmount < 0 || shiftAmount >= hi.Width() {
		return ir.FieldAction{}, fmt.Errorf("select: funnel-shift amount %d out of range [0,%d)", shiftAmount, hi.Width())
	}
	shift := &ir.Constant{Value: int64(shiftAmount), BitWidth: hi.Width()}
	return fieldAction(name, ir.OpFunnelShift, write, hi, lo, shift), nil
}

func fieldAction(name string, op ir.Opcode, write ir.Expr, reads ...ir.Expr) ir.FieldAction {
	fa := ir.FieldAction{Name: name, Op: op, Write: asParam(write)}
	for _, r := range reads {
		fa.Reads = append(fa.Reads, asParam(r))
	}
	return fa
}
