package assembly

import (
	"fmt"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// Pattern is the immutable description of one weak form contribution: which
// operators apply to which argument slots, the action combining them, the
// assembly entity type and region scope, the scalar factor, and the extra
// quadrature order. Slot order is: trial slots, fixed slots, test slot last.
// A pattern is built once per PDE operator and reused across nonlinear
// iterations and time steps; per-call mutable state lives in the Assembler.
type Pattern struct {
	Name   string
	Ops    []functionop.Operator
	NTrial int // leading slots that are unknowns
	NFixed int // slots after the trial slots holding known fields

	// Action combines the non-test slot values pointwise (linear and
	// bilinear forms). Nonlin replaces it for Newton forms.
	Action *actions.Action
	Nonlin actions.JacobianOperator

	Entity    meshdata.EntityType
	Regions   utils.Index // nil selects every region
	Factor    float64
	QuadBonus int

	// Transposed additionally scatters the symmetric partner block with
	// TransposedFactor (used for constraint blocks like Stokes B/B^T).
	Transposed       bool
	TransposedFactor float64
}

// NewBilinearForm describes ∫ action(opTrial u) . (opTest v).
func NewBilinearForm(name string, opTrial, opTest functionop.Operator, action *actions.Action) (p *Pattern) {
	p = &Pattern{
		Name:   name,
		Ops:    []functionop.Operator{opTrial, opTest},
		NTrial: 1,
		Action: action,
		Entity: meshdata.Cells,
		Factor: 1,
	}
	return
}

// NewLinearForm describes ∫ data . (opTest v). The action takes no input
// slots; fixed slots may feed known fields into it.
func NewLinearForm(name string, opTest functionop.Operator, action *actions.Action) (p *Pattern) {
	p = &Pattern{
		Name:   name,
		Ops:    []functionop.Operator{opTest},
		Action: action,
		Entity: meshdata.Cells,
		Factor: 1,
	}
	return
}

// NewNonlinearForm describes ∫ κ(ops u) . (opTest v) with κ differentiated
// against the trial slots for Newton assembly.
func NewNonlinearForm(name string, opsTrial []functionop.Operator, opTest functionop.Operator, kernel actions.JacobianOperator) (p *Pattern) {
	p = &Pattern{
		Name:   name,
		Ops:    append(append([]functionop.Operator{}, opsTrial...), opTest),
		NTrial: len(opsTrial),
		Nonlin: kernel,
		Entity: meshdata.Cells,
		Factor: 1,
	}
	return
}

// WithFixed appends fixed argument slots (known fields fed to the action or
// kernel after the trial values).
func (p *Pattern) WithFixed(ops ...functionop.Operator) *Pattern {
	test := p.Ops[len(p.Ops)-1]
	p.Ops = append(append(p.Ops[:len(p.Ops)-1:len(p.Ops)-1], ops...), test)
	p.NFixed += len(ops)
	return p
}

func (p *Pattern) OnEntity(et meshdata.EntityType) *Pattern {
	p.Entity = et
	return p
}

func (p *Pattern) OnRegions(regions ...int) *Pattern {
	p.Regions = utils.Index(regions)
	return p
}

func (p *Pattern) Scaled(factor float64) *Pattern {
	p.Factor = factor
	return p
}

func (p *Pattern) WithQuadBonus(bonus int) *Pattern {
	p.QuadBonus = bonus
	return p
}

func (p *Pattern) AlsoTransposed(factor float64) *Pattern {
	p.Transposed = true
	p.TransposedFactor = factor
	return p
}

func (p *Pattern) validate() error {
	if len(p.Ops) != p.NTrial+p.NFixed+1 {
		return fmt.Errorf("pattern %s: %d operator slots for %d trial + %d fixed + test",
			p.Name, len(p.Ops), p.NTrial, p.NFixed)
	}
	if p.Action != nil && p.Nonlin != nil {
		return fmt.Errorf("pattern %s carries both an action and a nonlinear kernel", p.Name)
	}
	if p.Nonlin != nil && p.NTrial < 1 {
		return fmt.Errorf("pattern %s: nonlinear forms need at least one trial slot", p.Name)
	}
	return nil
}

// testOp is the last slot.
func (p *Pattern) testOp() functionop.Operator { return p.Ops[len(p.Ops)-1] }

func (p *Pattern) inRegions(region int) bool {
	return p.Regions == nil || p.Regions.Contains(region)
}
