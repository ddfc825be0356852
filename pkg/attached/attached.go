// Package attached implements Stateful/Attached Setup (spec.md §4.7, component C8):
// resolving the extern calls inside an action (register/meter/counter/selector) to
// their hardware meter-type slot, propagating per-flow-enable bits to the table, and
// enforcing the consistency rules that span every table sharing one indirect extern.
//
// A Resolver object threads accumulated cross-table state (which extern is addressed
// by which expression shape, in which table) across every action it processes.
package attached

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// indexSignature is the canonical form of whatever expression addresses a shared
// indirect extern, used to detect inconsistent addressing across tables (spec §4.7
// "every table that addresses the extern uses an identical expression").
type indexSignature struct {
	kind  string // "hash", "const", "arg", "direct"
	value string
}

func signatureOf(e ir.Expr) indexSignature {
	switch v := e.(type) {
	case *ir.HashDist:
		return indexSignature{kind: "hash", value: v.CanonicalForm}
	case *ir.Constant:
		return indexSignature{kind: "const", value: fmt.Sprintf("%d", v.Value)}
	case *ir.ActionArg:
		return indexSignature{kind: "arg", value: v.Name}
	case nil:
		return indexSignature{kind: "direct"}
	default:
		return indexSignature{kind: "other", value: fmt.Sprintf("%T", v)}
	}
}

// externRecord tracks everything seen so far about one shared indirect extern, across
// every table processed by this Resolver.
type externRecord struct {
	firstTable string
	signature  indexSignature
	indirect   bool
	sawDirect  bool
	sawIndex   bool
}

// Resolver accumulates cross-table state while walking every table's actions once
// each, per spec §4.7's shared-extern consistency rule (spec §9 "Global state" says
// this kind of process-wide bookkeeping must live in an explicit, passed-around
// object rather than a package global).
type Resolver struct {
	ctx     *device.Context
	externs map[string]*externRecord
}

// NewResolver returns a Resolver bound to ctx's error sink.
func NewResolver(ctx *device.Context) *Resolver {
	return &Resolver{ctx: ctx, externs: make(map[string]*externRecord)}
}

// ResolveAction processes every extern call in one action: inst-code/meter-type
// assignment, per-flow-enable propagation, TempVar+HashFunc collapsing, meter
// pre-color synthesis, and Lpf/Wred PHV-input capture. It also feeds the shared-extern
// consistency check, which may call ctx.Fatalf if tableName conflicts with an earlier
// table's addressing of the same extern.
func (r *Resolver) ResolveAction(tableName string, action *ir.Action) {
	CollapseTempHash(action)

	if len(action.Calls) > 4 {
		r.ctx.Fatalf(tableName, "action %s uses %d attached calls, only 4 inst_code slots exist", action.Name, len(action.Calls))
	}

	for i := range action.Calls {
		call := &action.Calls[i]
		meterType := ir.MeterType(i % 4)

		ba := ir.BackendAttached{ExternName: call.ExternName, MeterType: meterType}

		switch call.Kind {
		case ir.ExternMeterExecute:
			if call.PreColor != nil {
				if _, ok := call.PreColor.(*ir.FieldRef); !ok {
					r.ctx.Fatalf(tableName, "meter %s: pre-color must be sourced from a PHV field", call.ExternName)
				}
				call.PreColor = &ir.HashDist{CanonicalForm: "precolor:" + call.ExternName, BitWidth: 2}
				ba.ColorAware = true
			}
		case ir.ExternLpfExecute, ir.ExternWredExecute:
			if f, ok := call.Input.(*ir.FieldRef); ok {
				ba.PhvInput = f
			} else if call.Input != nil {
				r.ctx.Fatalf(tableName, "%s: Lpf/Wred input must be a PHV field reference", call.ExternName)
			}
		}

		action.Attached = append(action.Attached, ba)

		if call.ExternName != "" {
			r.checkSharedExtern(tableName, call)
		}
	}
}

// checkSharedExtern implements spec §4.7's last two bullets: every table addressing a
// shared indirect extern must use an equivalent index expression, and a table may not
// mix direct-hash addressing with index addressing for the same extern.
func (r *Resolver) checkSharedExtern(tableName string, call *ir.ExternCall) {
	rec, ok := r.externs[call.ExternName]
	if !ok {
		r.externs[call.ExternName] = &externRecord{
			firstTable: tableName,
			signature:  signatureOf(call.Index),
			indirect:   call.Indirect,
			sawDirect:  !call.Indirect,
			sawIndex:   call.Indirect,
		}
		return
	}

	if call.Indirect {
		rec.sawIndex = true
	} else {
		rec.sawDirect = true
	}
	if rec.sawDirect && rec.sawIndex {
		r.ctx.Fatalf(tableName, "extern %s (first seen in %s) is addressed by direct hash in one action and by index in another; cannot mix", call.ExternName, rec.firstTable)
		return
	}

	sig := signatureOf(call.Index)
	if sig != rec.signature {
		r.ctx.Fatalf(tableName, "extern %s: index expression %v conflicts with %v used in %s", call.ExternName, sig, rec.signature, rec.firstTable)
	}
}

// CollapseTempHash implements spec §4.7's "Collapses a TempVar = HashFunc(...) +
// execute(TempVar) pair into a direct execute(HashDist(...))": it finds a FieldAction
// that is a plain set of some field from a HashDist, where that same field is
// immediately used (by name) as an extern call's index, and inlines the hash
// expression directly into the call, deleting the now-dead temp assignment.
func CollapseTempHash(action *ir.Action) {
	tempHash := make(map[ir.FieldID]*ir.HashDist)
	for _, fa := range action.FieldActions {
		if fa.Op != ir.OpSet || len(fa.Reads) != 1 {
			continue
		}
		dst, ok := fa.Write.Expr.(*ir.FieldRef)
		if !ok {
			continue
		}
		if h, ok := fa.Reads[0].Expr.(*ir.HashDist); ok {
			tempHash[dst.Field] = h
		}
	}
	if len(tempHash) == 0 {
		return
	}

	used := make(map[ir.FieldID]bool)
	for i := range action.Calls {
		if f, ok := action.Calls[i].Index.(*ir.FieldRef); ok {
			if h, ok := tempHash[f.Field]; ok {
				action.Calls[i].Index = h
				used[f.Field] = true
			}
		}
	}
	if len(used) == 0 {
		return
	}

	kept := action.FieldActions[:0]
	for _, fa := range action.FieldActions {
		if dst, ok := fa.Write.Expr.(*ir.FieldRef); ok && used[dst.Field] {
			continue
		}
		kept = append(kept, fa)
	}
	action.FieldActions = kept
}
