// Package pde composes assembled weak form terms, essential boundary
// conditions and global constraints into solvable systems, and drives them
// with fixed point iteration and time stepping.
package pde

import (
	"fmt"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/assembly"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/meshdata"
)

// Trigger controls how often a term is reassembled while solving. Terms
// whose data never changes are assembled once; terms depending on the time
// or the current iterate are redone per step or per iteration.
type Trigger uint8

const (
	AssembleInitial Trigger = iota
	AssembleEachTimeStep
	AssembleAlways

	numTriggers = 3
)

func (tr Trigger) String() string {
	switch tr {
	case AssembleInitial:
		return "Initial"
	case AssembleEachTimeStep:
		return "EachTimeStep"
	case AssembleAlways:
		return "Always"
	}
	return fmt.Sprintf("Trigger(%d)", uint8(tr))
}

type Unknown struct {
	Name  string
	Space *fespace.Space
}

type term struct {
	asm     *assembly.Assembler
	trigger Trigger
	matrix  bool // bilinear or nonlinear, contributes to the system matrix
}

// PDE is the static description of one problem: unknowns with their spaces,
// weak form terms, essential boundary conditions and global constraints.
// Runtime state lives in System.
type PDE struct {
	Unknowns []Unknown

	mesh        *meshdata.Mesh
	terms       []*term
	massTerms   []*term // time derivative mass forms, scaled by the stepper
	boundary    []*EssentialBC
	constraints []GlobalConstraint
	essential   EssentialConstraint
}

func NewPDE(unknowns ...Unknown) (p *PDE, err error) {
	if len(unknowns) == 0 {
		err = fmt.Errorf("a PDE needs at least one unknown")
		return
	}
	p = &PDE{
		Unknowns:  unknowns,
		mesh:      unknowns[0].Space.Mesh,
		essential: PenaltyConstraint{},
	}
	seen := map[string]bool{}
	for _, u := range unknowns {
		if seen[u.Name] {
			return nil, fmt.Errorf("duplicate unknown %q", u.Name)
		}
		seen[u.Name] = true
		if u.Space.Mesh != p.mesh {
			return nil, fmt.Errorf("unknown %q lives on a different mesh", u.Name)
		}
	}
	return
}

func (p *PDE) Space(name string) *fespace.Space {
	for _, u := range p.Unknowns {
		if u.Name == name {
			return u.Space
		}
	}
	panic(fmt.Errorf("no unknown named %q", name))
}

// SetEssentialConstraint replaces the default penalty mechanism for
// essential boundary conditions.
func (p *PDE) SetEssentialConstraint(c EssentialConstraint) { p.essential = c }

func (p *PDE) resolve(names []string) (spaces []*fespace.Space) {
	spaces = make([]*fespace.Space, len(names))
	for i, n := range names {
		spaces[i] = p.Space(n)
	}
	return
}

// AddOperator registers a matrix term. Slot names bind the pattern's
// operator slots to unknowns; the trial slots and test slot address matrix
// blocks, fixed slots read the current state. Nonlinear patterns are always
// reassembled per iteration.
func (p *PDE) AddOperator(pat *assembly.Pattern, trigger Trigger, names ...string) error {
	a, err := assembly.NewAssembler(pat, p.resolve(names), names)
	if err != nil {
		return err
	}
	if pat.Nonlin != nil || pat.NFixed > 0 {
		trigger = AssembleAlways
	}
	p.terms = append(p.terms, &term{asm: a, trigger: trigger, matrix: true})
	return nil
}

// AddSource registers a right hand side term.
func (p *PDE) AddSource(pat *assembly.Pattern, trigger Trigger, names ...string) error {
	a, err := assembly.NewAssembler(pat, p.resolve(names), names)
	if err != nil {
		return err
	}
	if pat.NFixed > 0 && trigger == AssembleInitial {
		trigger = AssembleAlways
	}
	p.terms = append(p.terms, &term{asm: a, trigger: trigger})
	return nil
}

// AddTimeDerivative registers coeff * d/dt of the named unknown. The mass
// form is kept separate so time steppers can scale it by the step size;
// stationary solves ignore it.
func (p *PDE) AddTimeDerivative(name string, coeff float64) error {
	sp := p.Space(name)
	pat := assembly.NewBilinearForm("TimeDerivative",
		functionop.Ident(), functionop.Ident(),
		actions.MultiplyAction(sp.Components(), coeff))
	a, err := assembly.NewAssembler(pat, []*fespace.Space{sp, sp}, []string{name, name})
	if err != nil {
		return err
	}
	p.massTerms = append(p.massTerms, &term{asm: a, trigger: AssembleInitial, matrix: true})
	return nil
}

// AddEssentialBC registers an essential boundary condition on the named
// unknown over the given boundary regions.
func (p *PDE) AddEssentialBC(bc *EssentialBC) error {
	p.Space(bc.Unknown) // existence check
	p.boundary = append(p.boundary, bc)
	return nil
}

func (p *PDE) AddConstraint(c GlobalConstraint) { p.constraints = append(p.constraints, c) }

// System is the runtime assembly state of one PDE: the current iterate, the
// per trigger matrix and vector layers, and the combined penalty applied
// system handed to the linear solver. Layers let terms that do not change
// between iterations or steps keep their assembled contributions.
type System struct {
	P *PDE
	U *assembly.FEVector

	layers    [numTriggers]*layer
	massLayer *layer
	massScale float64

	combined *assembly.FEMatrix
	rhs      *assembly.FEVector
	bcDofs   map[int]float64

	// extraRHS injects stepper contributions, the mass history and explicit
	// parts, before the constraints are applied
	extraRHS func(*assembly.FEVector) error
	// rawCombine skips boundary and global constraints, for evaluating the
	// unconstrained operator
	rawCombine bool
}

type layer struct {
	M     *assembly.FEMatrix
	B     *assembly.FEVector
	valid bool
}

func (p *PDE) NewSystem() (s *System) {
	var (
		names  = make([]string, len(p.Unknowns))
		spaces = make([]*fespace.Space, len(p.Unknowns))
	)
	for i, u := range p.Unknowns {
		names[i] = u.Name
		spaces[i] = u.Space
	}
	s = &System{P: p, U: assembly.NewFEVector(names, spaces)}
	for i := range s.layers {
		s.layers[i] = newLayer(names, spaces)
	}
	s.massLayer = newLayer(names, spaces)
	s.combined = assembly.NewFEMatrix(s.U)
	s.rhs = s.U.Copy()
	s.bcDofs = map[int]float64{}
	return
}

func newLayer(names []string, spaces []*fespace.Space) *layer {
	v := assembly.NewFEVector(names, spaces)
	return &layer{M: assembly.NewFEMatrix(v), B: v}
}

// SetMassScale fixes the factor applied to the time derivative terms when
// combining layers. Zero drops them, which is the stationary case.
func (s *System) SetMassScale(scale float64) { s.massScale = scale }

// InvalidateStep marks the per time step layer stale. Steppers call this
// when advancing the time.
func (s *System) InvalidateStep() { s.layers[AssembleEachTimeStep].valid = false }

func (s *System) assembleLayer(l *layer, terms []*term, want Trigger, t float64) error {
	l.M.Zero()
	l.B.Zero()
	for _, tm := range terms {
		if tm.trigger != want {
			continue
		}
		tm.asm.SetTime(t)
		if err := tm.asm.Prepare(true); err != nil {
			return err
		}
		var err error
		switch {
		case tm.asm.Pattern.Nonlin != nil:
			err = tm.asm.AssembleNonlinear(l.M, l.B, s.U)
		case tm.matrix:
			err = tm.asm.AssembleMatrix(l.M, s.U)
		default:
			err = tm.asm.AssembleVector(l.B, s.U)
		}
		if err != nil {
			return err
		}
	}
	l.valid = true
	return nil
}

// Refresh reassembles the stale layers around the current iterate at time t
// and combines them with the boundary and global constraints into the
// solvable system. The Always layer is redone unconditionally.
func (s *System) Refresh(t float64) error {
	for tr := AssembleInitial; tr <= AssembleAlways; tr++ {
		l := s.layers[tr]
		if l.valid && tr != AssembleAlways {
			continue
		}
		if err := s.assembleLayer(l, s.P.terms, tr, t); err != nil {
			return err
		}
	}
	if s.massScale != 0 && !s.massLayer.valid {
		if err := s.assembleLayer(s.massLayer, s.P.massTerms, AssembleInitial, t); err != nil {
			return err
		}
	}
	return s.combine(t)
}

func (s *System) combine(t float64) error {
	s.combined.Zero()
	s.rhs.Zero()
	for _, l := range s.layers {
		addMatrix(s.combined, l.M, 1)
		addVector(s.rhs, l.B, 1)
	}
	if s.massScale != 0 {
		addMatrix(s.combined, s.massLayer.M, s.massScale)
	}
	if s.rawCombine {
		return nil
	}
	if s.extraRHS != nil {
		if err := s.extraRHS(s.rhs); err != nil {
			return err
		}
	}
	if err := s.applyBoundary(t); err != nil {
		return err
	}
	for _, c := range s.P.constraints {
		if err := c.Apply(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) applyBoundary(t float64) error {
	clear(s.bcDofs)
	for _, bc := range s.P.boundary {
		vals, err := bc.dofValues(s.P.Space(bc.Unknown), t)
		if err != nil {
			return err
		}
		off := s.combined.BlockOffset(bc.Unknown)
		for d, v := range vals {
			s.bcDofs[off+d] = v
		}
	}
	s.P.essential.Apply(s.combined, s.rhs, s.bcDofs)
	return nil
}

// MassAction computes scale * M_time * v for the explicit part of theta
// schemes. The mass layer must be assembled first.
func (s *System) MassAction(v, out *assembly.FEVector, scale float64) error {
	if !s.massLayer.valid {
		if err := s.assembleLayer(s.massLayer, s.P.massTerms, AssembleInitial, 0); err != nil {
			return err
		}
	}
	csr := s.massLayer.M.Flush()
	csr.DoNonZero(func(i, j int, val float64) {
		out.Data[i] += scale * val * v.Data[j]
	})
	return nil
}

func addMatrix(dst, src *assembly.FEMatrix, scale float64) {
	src.Flush().DoNonZero(func(i, j int, v float64) {
		dst.Add(i, j, scale*v)
	})
}

func addVector(dst, src *assembly.FEVector, scale float64) {
	for i, v := range src.Data {
		dst.Data[i] += scale * v
	}
}
