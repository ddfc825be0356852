package operand

import (
	"testing"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

func TestClassifyPHV(t *testing.T) {
	f := &ir.FieldRef{Field: "f1", BitWidth: 8}
	p, err := Classify(f)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != ir.ParamPHV {
		t.Fatalf("expected PHV, got %v", p.Kind)
	}
	if p.Range.Width() != 8 {
		t.Fatalf("expected width 8, got %d", p.Range.Width())
	}
}

func TestClassifyActionData(t *testing.T) {
	a := &ir.ActionArg{Name: "x", BitWidth: 16}
	p, err := Classify(a)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != ir.ParamActionData {
		t.Fatalf("expected ACTION_DATA, got %v", p.Kind)
	}
}

func TestClassifyConstant(t *testing.T) {
	c := &ir.Constant{Value: 0xbabe, BitWidth: 16}
	p, err := Classify(c)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != ir.ParamConstant || p.ConstValue != 0xbabe {
		t.Fatalf("got %+v", p)
	}
}

func TestClassifySlicePropagatesRange(t *testing.T) {
	f := &ir.FieldRef{Field: "f1", BitWidth: 32}
	s := &ir.Slice{Base: f, Lo: 8, Hi: 15}
	p, err := Classify(s)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != ir.ParamPHV {
		t.Fatalf("slice of a PHV field should still classify PHV, got %v", p.Kind)
	}
	if p.Range.Lo != 8 || p.Range.Hi != 15 {
		t.Fatalf("expected range [8,15], got %+v", p.Range)
	}
}

func TestClassifySpecialty(t *testing.T) {
	h := &ir.HashDist{BitWidth: 16}
	p, err := Classify(h)
	if err != nil {
		t.Fatal(err)
	}
	if p.Speciality != ir.SpecialityHashDist {
		t.Fatalf("expected HASH_DIST speciality, got %v", p.Speciality)
	}

	sc := &ir.StatefulCounter{ExternName: "ctr", BitWidth: 32}
	p2, err := Classify(sc)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Speciality != ir.SpecialityStfulCounter || p2.Kind != ir.ParamPHV {
		t.Fatalf("got %+v", p2)
	}
}

func TestClassifyInstructionNoDest(t *testing.T) {
	fa, err := ClassifyInstruction("invalidate", ir.OpInvalidate, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fa.Write.Expr != nil {
		t.Fatalf("invalidate should have no write operand")
	}
}

func TestClassifyInstructionRequiresWrite(t *testing.T) {
	_, err := ClassifyInstruction("set", ir.OpSet, nil, []ir.Expr{&ir.Constant{Value: 1, BitWidth: 8}})
	if err == nil {
		t.Fatal("expected error for missing write operand on opcode with a destination")
	}
}

func TestClassifyInstructionWriteThenReads(t *testing.T) {
	w := &ir.FieldRef{Field: "dst", BitWidth: 8}
	r1 := &ir.FieldRef{Field: "src1", BitWidth: 8}
	r2 := &ir.Constant{Value: 3, BitWidth: 8}
	fa, err := ClassifyInstruction("add", ir.OpAdd, w, []ir.Expr{r1, r2})
	if err != nil {
		t.Fatal(err)
	}
	if fa.Write.Kind != ir.ParamPHV {
		t.Fatalf("write classified wrong: %+v", fa.Write)
	}
	if len(fa.Reads) != 2 || fa.Reads[0].Kind != ir.ParamPHV || fa.Reads[1].Kind != ir.ParamConstant {
		t.Fatalf("reads classified wrong: %+v", fa.Reads)
	}
}
