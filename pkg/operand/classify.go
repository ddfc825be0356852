// Package operand implements the Operand Classifier of spec §4.2: walk every operand
// of a field-level instruction and produce an ir.ActionParam tagging its physical
// source kind and any specialty.
package operand

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/bitvec"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Classify walks expr and produces the ActionParam spec §4.2 describes. It does not
// take the operand's position into account: ClassifyInstruction treats the first
// operand as the write and every subsequent operand as a read (same rule as pkg/wctx,
// applied to field-level instruction operand position rather than the full IR walk).
func Classify(expr ir.Expr) (ir.ActionParam, error) {
	return classifyRange(expr, bitvec.BitRange{Lo: 0, Hi: expr.Width() - 1})
}

// classifyRange recurses through Slice/Member wrappers (spec §4.2 "Wrapping
// expressions ... propagate through; the slice bounds are recorded in the
// ActionParam.range"), accumulating the bit range the operand actually covers.
func classifyRange(expr ir.Expr, rng bitvec.BitRange) (ir.ActionParam, error) {
	switch e := expr.(type) {
	case *ir.Slice:
		// The slice's own bounds become the range within its base that this operand
		// covers; any range the caller already carried is a window onto THIS slice,
		// not onto Base, so it does not recurse further.
		inner, err := classifyRange(e.Base, bitvec.BitRange{Lo: e.Lo, Hi: e.Hi})
		if err != nil {
			return ir.ActionParam{}, err
		}
		inner.Expr = expr
		inner.Range = bitvec.BitRange{Lo: e.Lo, Hi: e.Hi}
		return inner, nil

	case *ir.Member:
		inner, err := classifyRange(e.Base, rng)
		if err != nil {
			return ir.ActionParam{}, err
		}
		inner.Expr = expr
		return inner, nil

	case *ir.FieldRef:
		return ir.ActionParam{Kind: ir.ParamPHV, Expr: expr, Range: rng}, nil

	case *ir.ActionArg:
		return ir.ActionParam{Kind: ir.ParamActionData, Expr: expr, Range: rng}, nil

	case *ir.ActionDataConstant:
		return ir.ActionParam{Kind: ir.ParamActionData, Expr: expr, Range: rng}, nil

	case *ir.Constant:
		return ir.ActionParam{Kind: ir.ParamConstant, Expr: expr, Range: rng, ConstValue: e.Value}, nil

	case *ir.AttachedOutput:
		kind := ir.ParamPHV
		return ir.ActionParam{Kind: kind, Speciality: e.Speciality, Expr: expr, Range: rng}, nil

	case *ir.HashDist:
		// Hash-distribution values are delivered on the action-data/hash bus (spec §4.2
		// "the operand kind is still PHV or ACTION_DATA depending on where the value
		// physically arrives" — hash-dist arrives alongside action data).
		return ir.ActionParam{Kind: ir.ParamActionData, Speciality: ir.SpecialityHashDist, Expr: expr, Range: rng}, nil

	case *ir.RandomNumber:
		return ir.ActionParam{Kind: ir.ParamActionData, Speciality: ir.SpecialityRandom, Expr: expr, Range: rng}, nil

	case *ir.StatefulCounter:
		return ir.ActionParam{Kind: ir.ParamPHV, Speciality: ir.SpecialityStfulCounter, Expr: expr, Range: rng}, nil

	default:
		return ir.ActionParam{}, fmt.Errorf("operand: unclassifiable expression kind %d", expr.ExprKind())
	}
}

// ClassifyInstruction classifies every operand of a raw (write, reads) instruction
// shape into a full ir.FieldAction, per spec §3's "The write operand is the first;
// every subsequent operand is a read."
func ClassifyInstruction(name string, op ir.Opcode, write ir.Expr, reads []ir.Expr) (ir.FieldAction, error) {
	fa := ir.FieldAction{Name: name, Op: op}

	if op.HasNoDest() {
		// spec §4.2: "Opcodes with no destination (invalidate) are tagged no_sources."
		if write != nil {
			return ir.FieldAction{}, fmt.Errorf("operand: opcode %s has no destination but a write was supplied", name)
		}
	} else {
		if write == nil {
			return ir.FieldAction{}, fmt.Errorf("operand: opcode %s requires a write operand", name)
		}
		w, err := Classify(write)
		if err != nil {
			return ir.FieldAction{}, err
		}
		fa.Write = w
	}

	for i, r := range reads {
		p, err := classifyRange(r, bitvec.BitRange{Lo: 0, Hi: r.Width() - 1})
		if err != nil {
			return ir.FieldAction{}, fmt.Errorf("operand: read %d: %w", i, err)
		}
		fa.Reads = append(fa.Reads, p)
	}
	return fa, nil
}
