package main

import (
	"encoding/json"
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/ir"
)

// exprDTO is the on-disk JSON shape of an ir.Expr. The MAU backend starts after a P4
// frontend has already lowered the program to field-level instructions (spec §1's
// stated input boundary), so only the operand shapes that boundary actually hands
// over are representable here: field references, slices/members of them, constants
// and action-data parameters. The richer nodes pkg/select and pkg/attached synthesize
// internally (BinOp, Ternary, HashDist, AttachedOutput, ...) have no JSON form — they
// never arrive from outside the compiler.
type exprDTO struct {
	Kind string `json:"kind"`

	// field
	Field string `json:"field,omitempty"`
	Width int    `json:"width,omitempty"`

	// slice / member
	Base *exprDTO `json:"base,omitempty"`
	Lo   int      `json:"lo,omitempty"`
	Hi   int      `json:"hi,omitempty"`

	// constant
	Value  int64 `json:"value,omitempty"`
	Signed bool  `json:"signed,omitempty"`

	// action_arg
	Name string `json:"name,omitempty"`
}

func (e *exprDTO) toExpr() (ir.Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case "field":
		return &ir.FieldRef{Field: ir.FieldID(e.Field), BitWidth: e.Width}, nil
	case "slice":
		base, err := e.Base.toExpr()
		if err != nil {
			return nil, err
		}
		return &ir.Slice{Base: base, Lo: e.Lo, Hi: e.Hi}, nil
	case "member":
		base, err := e.Base.toExpr()
		if err != nil {
			return nil, err
		}
		return &ir.Member{Base: base, BitWidth: e.Width}, nil
	case "constant":
		return &ir.Constant{Value: e.Value, BitWidth: e.Width, Signed: e.Signed}, nil
	case "action_arg":
		return &ir.ActionArg{Name: e.Name, BitWidth: e.Width}, nil
	default:
		return nil, fmt.Errorf("expr: unknown kind %q", e.Kind)
	}
}

// unmarshalExprs decodes a JSON array of exprDTO into ir.Exprs, the shape reads/calls
// arguments arrive in.
func unmarshalExprs(raw json.RawMessage) ([]ir.Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var dtos []*exprDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, err
	}
	out := make([]ir.Expr, 0, len(dtos))
	for i, d := range dtos {
		e, err := d.toExpr()
		if err != nil {
			return nil, fmt.Errorf("expr %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
