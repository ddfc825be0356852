// Package adjust implements the Instruction Adjustment pipeline of spec.md §4.6
// (component C6): ten ordered passes that rewrite an action's field-level
// instructions into a form the Container-Action Verifier (pkg/verify) can accept,
// re-running between passes until the action reaches a fixpoint.
//
// Each Pass applies one transform, rewriting the action's instruction list in place
// and reporting whether it changed anything; the transform choice is deterministic,
// driven by what Action Analysis flagged, rather than searched for. EliminateNoop reuses the same "recognize a dead
// shape and drop it" reasoning for every pass that prunes redundant instructions.
package adjust

import (
	"fmt"

	"github.com/tofinomau/mau-backend/pkg/device"
	"github.com/tofinomau/mau-backend/pkg/ir"
)

// Pass is one ordered step of the pipeline.
type Pass interface {
	Name() string
	Run(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (changed bool, err error)
}

// PassFunc adapts a plain function to the Pass interface.
type PassFunc struct {
	PassName string
	Fn       func(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error)
}

func (p PassFunc) Name() string { return p.PassName }
func (p PassFunc) Run(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (bool, error) {
	return p.Fn(ctx, alloc, action)
}

// maxIterations bounds the fixpoint loop. Spec §8 R3 expects convergence well inside
// this on any valid PHV allocation; hitting the cap means the passes are oscillating,
// an internal-invariant error rather than a user-facing one.
const maxIterations = 8

// Pipeline runs the ten passes of spec §4.6 in order, repeating the whole sequence
// until none of them report a change.
type Pipeline struct {
	Passes []Pass
}

// NewPipeline returns the ten passes of spec §4.6 in their required order.
func NewPipeline() *Pipeline {
	return &Pipeline{Passes: []Pass{
		PassFunc{"EliminateNoop", EliminateNoop},
		PassFunc{"AdjustShift", AdjustShift},
		PassFunc{"RewriteReductionOr", RewriteReductionOr},
		PassFunc{"Split", Split},
		PassFunc{"ConstantsToActionData", ConstantsToActionData},
		PassFunc{"ExpressionsToHash", ExpressionsToHash},
		PassFunc{"Merge", Merge},
		PassFunc{"AdjustStateful", AdjustStateful},
		PassFunc{"GuaranteeHashDistSize", GuaranteeHashDistSize},
		PassFunc{"Cleanup", Cleanup},
	}}
}

// RunToFixpoint repeatedly runs every pass, in order, over action until a full round
// makes no change. CollectPhvInfo re-derivation (spec §4.6 "Between passes...") is the
// caller's responsibility via alloc, which always reflects the live IR since
// AllocSlice lookups are computed on demand rather than cached by this package.
func (p *Pipeline) RunToFixpoint(ctx *device.Context, alloc device.PHVAllocation, action *ir.Action) (iterations int, err error) {
	for iterations = 0; iterations < maxIterations; iterations++ {
		roundChanged := false
		for _, pass := range p.Passes {
			changed, err := pass.Run(ctx, alloc, action)
			if err != nil {
				return iterations, fmt.Errorf("adjust: pass %s: %w", pass.Name(), err)
			}
			roundChanged = roundChanged || changed
		}
		if !roundChanged {
			return iterations + 1, nil
		}
	}
	return iterations, fmt.Errorf("adjust: pipeline did not converge after %d iterations on action %s", maxIterations, action.Name)
}

func sameField(e ir.Expr, field ir.FieldID) bool {
	f, ok := e.(*ir.FieldRef)
	return ok && f.Field == field
}

func writeField(fa ir.FieldAction) (ir.FieldID, bool) {
	f, ok := fa.Write.Expr.(*ir.FieldRef)
	if !ok {
		return "", false
	}
	return f.Field, true
}

func destContainer(alloc device.PHVAllocation, field ir.FieldID) (ir.Container, bool) {
	slices := alloc.Slices(field)
	if len(slices) == 0 {
		return ir.Container{}, false
	}
	return slices[0].Container, true
}
