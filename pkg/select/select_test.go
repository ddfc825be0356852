package sel

import (
	"testing"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

func f(name string, width int) *ir.FieldRef { return &ir.FieldRef{Field: ir.FieldID(name), BitWidth: width} }

func TestAndWithNotFolding(t *testing.T) {
	a, b := f("a", 8), f("b", 8)

	fa, err := Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinAnd, LHS: a, RHS: b, BitWidth: 8})
	if err != nil || fa.Op != ir.OpAnd {
		t.Fatalf("plain and: got op=%v err=%v", fa.Op, err)
	}

	fa, err = Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinAnd, LHS: a, RHS: &ir.UnOp{Kind: ir.UnNot, Operand: b, BitWidth: 8}, BitWidth: 8})
	if err != nil || fa.Op != ir.OpAndCA {
		t.Fatalf("a & ~b: got op=%v err=%v", fa.Op, err)
	}

	fa, err = Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinAnd, LHS: &ir.UnOp{Kind: ir.UnNot, Operand: a, BitWidth: 8}, RHS: b, BitWidth: 8})
	if err != nil || fa.Op != ir.OpAndCB {
		t.Fatalf("~a & b: got op=%v err=%v", fa.Op, err)
	}
}

func TestAndDoubleNegationIsNor(t *testing.T) {
	a, b := f("a", 8), f("b", 8)
	fa, err := Select("act", f("dst", 8), &ir.BinOp{
		Kind:     ir.BinAnd,
		LHS:      &ir.UnOp{Kind: ir.UnNot, Operand: a, BitWidth: 8},
		RHS:      &ir.UnOp{Kind: ir.UnNot, Operand: b, BitWidth: 8},
		BitWidth: 8,
	})
	if err != nil || fa.Op != ir.OpNor {
		t.Fatalf("~a & ~b should fold to nor by De Morgan, got op=%v err=%v", fa.Op, err)
	}
}

func TestOrDoubleNegationIsNand(t *testing.T) {
	a, b := f("a", 8), f("b", 8)
	fa, err := Select("act", f("dst", 8), &ir.BinOp{
		Kind: ir.BinOr,
		LHS:  &ir.UnOp{Kind: ir.UnNot, Operand: a, BitWidth: 8},
		RHS:  &ir.UnOp{Kind: ir.UnNot, Operand: b, BitWidth: 8},
		BitWidth: 8,
	})
	if err != nil || fa.Op != ir.OpNand {
		t.Fatalf("~a | ~b should fold to nand by De Morgan, got op=%v err=%v", fa.Op, err)
	}
}

func TestXorSingleNegationIsXnor(t *testing.T) {
	a, b := f("a", 8), f("b", 8)
	fa, err := Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinXor, LHS: &ir.UnOp{Kind: ir.UnNot, Operand: a, BitWidth: 8}, RHS: b, BitWidth: 8})
	if err != nil || fa.Op != ir.OpXnor {
		t.Fatalf("got op=%v err=%v", fa.Op, err)
	}
}

func TestSubtractWithConstantBecomesAddNegated(t *testing.T) {
	a := f("a", 8)
	c := &ir.Constant{Value: 5, BitWidth: 8, Signed: true}
	fa, err := Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinSub, LHS: a, RHS: c, BitWidth: 8})
	if err != nil {
		t.Fatal(err)
	}
	if fa.Op != ir.OpAdd {
		t.Fatalf("expected add of negated constant, got %v", fa.Op)
	}
	neg, ok := fa.Reads[1].Expr.(*ir.Constant)
	if !ok || neg.Value != -5 {
		t.Fatalf("expected negated constant -5, got %+v", fa.Reads[1].Expr)
	}
}

func TestSaturatingSignedSubtractAvoidsOverflowAtMinValue(t *testing.T) {
	a := f("a", 8)
	minVal := &ir.Constant{Value: -128, BitWidth: 8, Signed: true}
	fa, err := Select("act", f("dst", 8), &ir.BinOp{Kind: ir.BinSub, Saturating: true, Signed: true, LHS: a, RHS: minVal, BitWidth: 8})
	if err != nil {
		t.Fatal(err)
	}
	if fa.Op != ir.OpSsubS {
		t.Fatalf("expected ssubs preserved (negating -128 would overflow), got %v", fa.Op)
	}
}

func TestNegationIsSubFromZero(t *testing.T) {
	a := f("a", 8)
	fa, err := Select("act", f("dst", 8), &ir.UnOp{Kind: ir.UnNeg, Operand: a, BitWidth: 8})
	if err != nil || fa.Op != ir.OpSub {
		t.Fatalf("got op=%v err=%v", fa.Op, err)
	}
	zero, ok := fa.Reads[0].Expr.(*ir.Constant)
	if !ok || zero.Value != 0 {
		t.Fatalf("expected 0 as first operand, got %+v", fa.Reads[0].Expr)
	}
}

func TestTernaryMinShape(t *testing.T) {
	a, b := f("a", 8), f("b", 8)
	fa, err := Select("act", f("dst", 8), &ir.Ternary{Cmp: ir.CmpLt, CmpLHS: a, CmpRHS: b, IfTrue: a, IfFalse: b, BitWidth: 8})
	if err != nil || fa.Op != ir.OpMinU {
		t.Fatalf("got op=%v err=%v", fa.Op, err)
	}
}

func TestTernaryFallsBackToConditionallySet(t *testing.T) {
	a, b, c, d := f("a", 8), f("b", 8), f("c", 8), f("d", 8)
	fa, err := Select("act", f("dst", 8), &ir.Ternary{Cmp: ir.CmpEq, CmpLHS: a, CmpRHS: b, IfTrue: c, IfFalse: d, BitWidth: 8})
	if err != nil || fa.Op != ir.OpConditionallySet {
		t.Fatalf("got op=%v err=%v", fa.Op, err)
	}
	if len(fa.Reads) != 4 {
		t.Fatalf("expected 4 reads (cmp lhs/rhs + both branches), got %d", len(fa.Reads))
	}
}

func TestModifyFieldFullWidthIsSet(t *testing.T) {
	fa := SelectModifyField("act", f("dst", 8), f("src", 8), true)
	if fa.Op != ir.OpSet {
		t.Fatalf("got %v", fa.Op)
	}
}

func TestModifyFieldPartialIsBitmaskedSet(t *testing.T) {
	fa := SelectModifyField("act", f("dst", 8), f("src", 8), false)
	if fa.Op != ir.OpBitmaskedSet {
		t.Fatalf("got %v", fa.Op)
	}
}

func TestFunnelShiftRejectsUnequalWidths(t *testing.T) {
	_, err := SelectFunnelShift("act", f("dst", 32), f("hi", 32), f("lo", 16), 10)
	if err == nil {
		t.Fatal("expected error for mismatched funnel-shift halves")
	}
}

func TestFunnelShiftAccepted(t *testing.T) {
	fa, err := SelectFunnelShift("act", f("dst", 32), f("hi", 32), f("lo", 32), 10)
	if err != nil {
		t.Fatal(err)
	}
	if fa.Op != ir.OpFunnelShift || len(fa.Reads) != 3 {
		t.Fatalf("got op=%v reads=%d", fa.Op, len(fa.Reads))
	}
}
