package assembly

import (
	"fmt"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

type AssemblerState uint8

const (
	StateUninitialized AssemblerState = iota
	StatePrepared
	StateAssembled
)

func (s AssemblerState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StatePrepared:
		return "Prepared"
	case StateAssembled:
		return "Assembled"
	}
	return fmt.Sprintf("AssemblerState(%d)", uint8(s))
}

// Assembler executes one Pattern against concrete spaces. Slot i of the
// pattern pairs with Spaces[i] and Names[i]; Names locate the matrix and
// vector blocks for the trial and test slots and the field blocks fixed
// slots read from. Prepare builds the evaluators once; the assemble calls
// reuse them across nonlinear iterations and time steps.
type Assembler struct {
	Pattern *Pattern
	Spaces  []*fespace.Space
	Names   []string

	state AssemblerState
	evals []*FEEvaluator
	qord  int
	deps  actions.Deps
	time  float64

	// per quadrature point scratch
	in, out, val []float64
	slotOff      []int // offset of each non-test slot in the in buffer
	Jloc         utils.Matrix
	ctx          actions.EvalContext
}

func NewAssembler(p *Pattern, spaces []*fespace.Space, names []string) (a *Assembler, err error) {
	if err = p.validate(); err != nil {
		return
	}
	if len(spaces) != len(p.Ops) || len(names) != len(p.Ops) {
		err = fmt.Errorf("pattern %s: %d operator slots, %d spaces, %d names",
			p.Name, len(p.Ops), len(spaces), len(names))
		return
	}
	mesh := spaces[0].Mesh
	for _, sp := range spaces[1:] {
		if sp.Mesh != mesh {
			err = fmt.Errorf("pattern %s: all slots must share one mesh", p.Name)
			return
		}
	}
	a = &Assembler{Pattern: p, Spaces: spaces, Names: names}
	return
}

// SetTime fixes the context time for subsequent assemble calls.
func (a *Assembler) SetTime(t float64) { a.time = t }

func (a *Assembler) State() AssemblerState { return a.state }

// QuadOrder is the integration order: the sum over slots of element order
// plus operator shift, plus the pattern's bonus, floored at one.
func (a *Assembler) QuadOrder() (ord int) {
	for i, op := range a.Pattern.Ops {
		ord += a.Spaces[i].El.Order() + op.QuadOrderShift()
	}
	ord += a.Pattern.QuadBonus
	if ord < 1 {
		ord = 1
	}
	return
}

// Prepare builds the evaluators and scratch buffers. With skipPrep true an
// already prepared assembler returns immediately, so solver loops can call
// it unconditionally.
func (a *Assembler) Prepare(skipPrep bool) (err error) {
	if skipPrep && a.state != StateUninitialized {
		return nil
	}
	p := a.Pattern
	a.qord = a.QuadOrder()
	a.evals = make([]*FEEvaluator, len(p.Ops))
	for i, op := range p.Ops {
		if a.evals[i], err = NewFEEvaluator(a.Spaces[i], op, p.Entity, a.qord); err != nil {
			return fmt.Errorf("pattern %s slot %d: %w", p.Name, i, err)
		}
	}
	nIn := 0
	a.slotOff = make([]int, len(p.Ops)-1)
	for i := 0; i < len(p.Ops)-1; i++ {
		a.slotOff[i] = nIn
		nIn += a.evals[i].NOut()
	}
	nOut := a.evals[len(p.Ops)-1].NOut()
	switch {
	case p.Action != nil:
		if p.NTrial > 0 {
			// one trial slot feeds the action column by column
			if p.NTrial != 1 {
				return fmt.Errorf("pattern %s: actions take at most one trial slot, got %d", p.Name, p.NTrial)
			}
		}
		if p.Action.In != nIn {
			return fmt.Errorf("pattern %s: action %s takes %d components, slots provide %d",
				p.Name, p.Action.Name, p.Action.In, nIn)
		}
		if p.Action.Out != nOut {
			return fmt.Errorf("pattern %s: action %s produces %d components, test operator has %d",
				p.Name, p.Action.Name, p.Action.Out, nOut)
		}
		a.deps = p.Action.Deps
	case p.Nonlin != nil:
		kOut, kIn := p.Nonlin.Sizes()
		if kIn != nIn || kOut != nOut {
			return fmt.Errorf("pattern %s: kernel is %dx%d, slots provide %d in and %d out",
				p.Name, kOut, kIn, nIn, nOut)
		}
		a.deps = p.Nonlin.Dependencies()
		a.Jloc = utils.NewMatrix(nOut, nIn)
	default:
		if nIn != nOut {
			return fmt.Errorf("pattern %s: no action and mismatched slot components %d vs %d",
				p.Name, nIn, nOut)
		}
	}
	a.in = make([]float64, nIn)
	a.out = make([]float64, nOut)
	a.val = make([]float64, nOut)
	a.state = StatePrepared
	return nil
}

// Invalidate drops the prepared evaluators, forcing the next Prepare to
// rebuild them. Call after the mesh or the spaces change.
func (a *Assembler) Invalidate() {
	a.state = StateUninitialized
	a.evals = nil
}

func (a *Assembler) ready() error {
	if a.state == StateUninitialized {
		return a.Prepare(false)
	}
	return nil
}

// forEachEntity runs fn over the entities of the pattern's entity type that
// lie in its region set, with every evaluator updated to the entity first.
func (a *Assembler) forEachEntity(fn func(item int) error) error {
	var (
		m = a.Spaces[0].Mesh
		p = a.Pattern
		n = m.EntityCount(p.Entity)
	)
	for item := 0; item < n; item++ {
		region := m.EntityRegion(p.Entity, item)
		if !p.inRegions(region) {
			continue
		}
		for _, ev := range a.evals {
			if err := ev.UpdateBasis(item); err != nil {
				return err
			}
		}
		a.ctx.Item = item
		a.ctx.Region = region
		if err := fn(item); err != nil {
			return err
		}
	}
	a.state = StateAssembled
	return nil
}

// fillContext updates the quadrature point fields of the context, skipping
// what the action does not depend on.
func (a *Assembler) fillContext(item, qp int) {
	a.ctx.T = a.time
	ev := a.evals[0]
	if a.deps&actions.DepXref != 0 || a.deps&actions.DepX != 0 {
		a.ctx.Xref = ev.Quad.Points.Row(qp)
	}
	if a.deps&actions.DepX != 0 {
		m := a.Spaces[0].Mesh
		switch a.Pattern.Entity {
		case meshdata.Cells:
			a.ctx.X = m.RefToPhys(item, a.ctx.Xref)
		case meshdata.BFaces:
			a.ctx.X = m.FacePhys(m.BFace(item), a.ctx.Xref[0])
		case meshdata.Faces:
			a.ctx.X = m.FacePhys(item, a.ctx.Xref[0])
		}
	}
}

// gatherSlot writes the field value of non-test slot s at quadrature point
// qp into in, reading coefficients from the named block of u.
func (a *Assembler) gatherSlot(s, qp int, u *FEVector) {
	var (
		ev   = a.evals[s]
		ov   = ev.OpValues(qp)
		dofs = ev.Dofs()
		coef = u.BlockByName(a.Names[s])
		off  = a.slotOff[s]
	)
	for c := 0; c < ev.NOut(); c++ {
		var sum float64
		for j, d := range dofs {
			sum += ov.At(c, j) * coef[d]
		}
		a.in[off+c] = sum
	}
}

// applyAction runs the pattern's action, or copies input through when the
// pattern has none.
func (a *Assembler) applyAction() {
	if a.Pattern.Action != nil {
		a.Pattern.Action.Apply(a.out, a.in, &a.ctx)
		return
	}
	copy(a.out, a.in)
}

// AssembleMatrix adds the pattern's bilinear contribution to M. The fixed
// slots, if any, read their fields from u; u may be nil when the pattern has
// none. The trial slot is slot 0 and the test slot is last.
func (a *Assembler) AssembleMatrix(M *FEMatrix, u *FEVector) error {
	if err := a.ready(); err != nil {
		return err
	}
	p := a.Pattern
	if p.NTrial != 1 || p.Nonlin != nil {
		return fmt.Errorf("pattern %s is not a bilinear form", p.Name)
	}
	var (
		trial  = a.evals[0]
		test   = a.evals[len(a.evals)-1]
		rowOff = M.BlockOffset(a.Names[len(a.Names)-1])
		colOff = M.BlockOffset(a.Names[0])
		w      = trial.Quad.Weights
	)
	return a.forEachEntity(func(item int) error {
		var (
			scale = trial.EntityMeasure(item)
			rows  = test.Dofs()
			cols  = trial.Dofs()
			tOut  = a.in[:trial.NOut()]
		)
		for qp := 0; qp < trial.Quad.NPoints(); qp++ {
			a.fillContext(item, qp)
			for s := 1; s < len(a.evals)-1; s++ {
				a.gatherSlot(s, qp, u)
			}
			var (
				wq = scale * w.AtVec(qp)
				tv = trial.OpValues(qp)
				sv = test.OpValues(qp)
			)
			for j := range cols {
				for c := range tOut {
					tOut[c] = tv.At(c, j)
				}
				a.applyAction()
				for i, di := range rows {
					var sum float64
					for c, oc := range a.out {
						sum += oc * sv.At(c, i)
					}
					if sum == 0 {
						continue
					}
					M.Add(rowOff+di, colOff+cols[j], p.Factor*wq*sum)
					if p.Transposed {
						M.Add(colOff+cols[j], rowOff+di, p.TransposedFactor*wq*sum)
					}
				}
			}
		}
		return nil
	})
}

// AssembleVector adds the pattern's linear contribution to the named block
// of rhs. Fixed slots read their fields from u.
func (a *Assembler) AssembleVector(rhs, u *FEVector) error {
	if err := a.ready(); err != nil {
		return err
	}
	p := a.Pattern
	if p.NTrial != 0 || p.Nonlin != nil {
		return fmt.Errorf("pattern %s is not a linear form", p.Name)
	}
	var (
		test = a.evals[len(a.evals)-1]
		out  = rhs.BlockByName(a.Names[len(a.Names)-1])
		w    = test.Quad.Weights
	)
	return a.forEachEntity(func(item int) error {
		var (
			scale = test.EntityMeasure(item)
			rows  = test.Dofs()
		)
		for qp := 0; qp < test.Quad.NPoints(); qp++ {
			a.fillContext(item, qp)
			for s := 0; s < len(a.evals)-1; s++ {
				a.gatherSlot(s, qp, u)
			}
			a.applyAction()
			var (
				wq = p.Factor * scale * w.AtVec(qp)
				sv = test.OpValues(qp)
			)
			for i, di := range rows {
				var sum float64
				for c, oc := range a.out {
					sum += oc * sv.At(c, i)
				}
				out[di] += wq * sum
			}
		}
		return nil
	})
}

// AssembleNonlinear adds the Newton linearization of the pattern around u:
// the matrix gets the Jacobian-weighted bilinear terms for every trial slot
// and rhs gets w * test . (J u - F(u)), so that solving the assembled system
// directly yields the next iterate.
func (a *Assembler) AssembleNonlinear(M *FEMatrix, rhs, u *FEVector) error {
	if err := a.ready(); err != nil {
		return err
	}
	p := a.Pattern
	if p.Nonlin == nil {
		return fmt.Errorf("pattern %s has no nonlinear kernel", p.Name)
	}
	var (
		test   = a.evals[len(a.evals)-1]
		rowOff = M.BlockOffset(a.Names[len(a.Names)-1])
		out    = rhs.BlockByName(a.Names[len(a.Names)-1])
		w      = test.Quad.Weights
		// in components covered by the trial slots
		nTrialIn = a.slotOff[p.NTrial-1] + a.evals[p.NTrial-1].NOut()
	)
	return a.forEachEntity(func(item int) error {
		var (
			scale = test.EntityMeasure(item)
			rows  = test.Dofs()
		)
		for qp := 0; qp < test.Quad.NPoints(); qp++ {
			a.fillContext(item, qp)
			for s := 0; s < len(a.evals)-1; s++ {
				a.gatherSlot(s, qp, u)
			}
			p.Nonlin.EvalJacobian(a.val, a.Jloc, a.in, &a.ctx)
			var (
				wq = p.Factor * scale * w.AtVec(qp)
				sv = test.OpValues(qp)
			)
			// rhs_i += wq * test_ci * (sum_d J_cd in_d - F_c)
			for i, di := range rows {
				var sum float64
				for c := range a.val {
					r := -a.val[c]
					for d := 0; d < nTrialIn; d++ {
						r += a.Jloc.At(c, d) * a.in[d]
					}
					sum += r * sv.At(c, i)
				}
				out[di] += wq * sum
			}
			// matrix blocks per trial slot
			for t := 0; t < p.NTrial; t++ {
				var (
					tr     = a.evals[t]
					tv     = tr.OpValues(qp)
					cols   = tr.Dofs()
					colOff = M.BlockOffset(a.Names[t])
					off    = a.slotOff[t]
				)
				for i, di := range rows {
					for j, dj := range cols {
						var sum float64
						for c := 0; c < len(a.val); c++ {
							var jv float64
							for d := 0; d < tr.NOut(); d++ {
								jv += a.Jloc.At(c, off+d) * tv.At(d, j)
							}
							sum += sv.At(c, i) * jv
						}
						if sum != 0 {
							M.Add(rowOff+di, colOff+dj, wq*sum)
						}
					}
				}
			}
		}
		return nil
	})
}
