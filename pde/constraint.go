package pde

import (
	"fmt"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/assembly"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/linsolve"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// DefaultPenalty dominates any physically meaningful matrix entry while
// staying far from overflow, so penalized rows enforce their dof value to
// solver precision.
const DefaultPenalty = 1.e60

// softPenalty is the default for constraints whose penalty blocks are rank
// deficient. Elimination cancels those blocks against each other, leaving
// roundoff of size penalty times machine epsilon in the matrix, so the
// penalty must leave headroom above the physical entries without amplifying
// that roundoff: penalty*eps stays below ~1e-8.
const softPenalty = 1.e8

// EssentialConstraint fixes individual dofs to prescribed values while
// assembling. The map keys are global dof indices of the combined system.
type EssentialConstraint interface {
	Apply(M *assembly.FEMatrix, rhs *assembly.FEVector, dofs map[int]float64)
}

// PenaltyConstraint enforces dof values by adding a huge diagonal entry and
// matching right hand side, leaving the matrix structure untouched.
type PenaltyConstraint struct {
	Penalty float64 // zero selects DefaultPenalty
}

func (c PenaltyConstraint) Apply(M *assembly.FEMatrix, rhs *assembly.FEVector, dofs map[int]float64) {
	p := c.Penalty
	if p == 0 {
		p = DefaultPenalty
	}
	for d, v := range dofs {
		M.Add(d, d, p)
		rhs.Data[d] += p * v
	}
}

// BCMethod selects how boundary dof values are computed from the data.
type BCMethod uint8

const (
	// BCInterpolate evaluates the data at the dof points.
	BCInterpolate BCMethod = iota
	// BCBestApprox projects the data onto the boundary trace in L2. Meant
	// for nodal elements, whose off face basis functions vanish on the face.
	BCBestApprox
)

// EssentialBC prescribes the named unknown on a set of boundary regions.
// A nil region list selects the whole boundary.
type EssentialBC struct {
	Unknown string
	Regions utils.Index
	Value   *actions.DataFunction
	Method  BCMethod
}

func (bc *EssentialBC) dofValues(sp *fespace.Space, t float64) (map[int]float64, error) {
	if bc.Value.NComp != sp.Components() {
		return nil, fmt.Errorf("boundary data for %q has %d components, space has %d",
			bc.Unknown, bc.Value.NComp, sp.Components())
	}
	regions := bc.Regions
	if regions == nil {
		regions = utils.Index(sp.Mesh.Regions(meshdata.BFaces))
	}
	if bc.Method == BCBestApprox {
		return boundaryProjection(sp, regions, bc.Value, t)
	}
	var ctx actions.EvalContext
	ctx.T = t
	f := func(x [2]float64, out []float64) {
		ctx.X = x
		bc.Value.Evaluate(out, &ctx)
	}
	return sp.InterpolateBoundary(f, regions), nil
}

// boundaryProjection solves the boundary mass system restricted to the dofs
// living on the selected faces.
func boundaryProjection(sp *fespace.Space, regions utils.Index, value *actions.DataFunction, t float64) (map[int]float64, error) {
	var (
		m     = sp.Mesh
		index = map[int]int{}
		dofs  []int
	)
	for i := 0; i < m.NBFaces(); i++ {
		if !regions.Contains(m.BFaceRegion(i)) {
			continue
		}
		for _, d := range sp.FaceDofs(m.BFace(i)) {
			if _, ok := index[d]; !ok {
				index[d] = len(dofs)
				dofs = append(dofs, d)
			}
		}
	}
	if len(dofs) == 0 {
		return map[int]float64{}, nil
	}
	ev, err := assembly.NewFEEvaluator(sp, functionop.TraceOp(), meshdata.BFaces, 2*sp.El.Order()+2)
	if err != nil {
		return nil, err
	}
	var (
		n   = len(dofs)
		Mb  = utils.NewDOK(n, n)
		b   = make([]float64, n)
		g   = make([]float64, value.NComp)
		ctx = actions.EvalContext{T: t}
	)
	for i := 0; i < m.NBFaces(); i++ {
		if !regions.Contains(m.BFaceRegion(i)) {
			continue
		}
		if err = ev.UpdateBasis(i); err != nil {
			return nil, err
		}
		var (
			f     = m.BFace(i)
			scale = ev.EntityMeasure(i)
			cd    = ev.Dofs()
		)
		ctx.Item = i
		for qp := 0; qp < ev.Quad.NPoints(); qp++ {
			s := ev.Quad.Points.At(qp, 0)
			ctx.X = m.FacePhys(f, s)
			value.Evaluate(g, &ctx)
			var (
				wq = scale * ev.Quad.Weights.AtVec(qp)
				ov = ev.OpValues(qp)
			)
			for a, da := range cd {
				ra, ok := index[da]
				if !ok {
					continue
				}
				var load float64
				for c := range g {
					load += g[c] * ov.At(c, a)
				}
				b[ra] += wq * load
				for bb, db := range cd {
					rb, ok := index[db]
					if !ok {
						continue
					}
					var mm float64
					for c := range g {
						mm += ov.At(c, a) * ov.At(c, bb)
					}
					if mm != 0 {
						Mb.Add(ra, rb, wq*mm)
					}
				}
			}
		}
	}
	x, err := linsolve.DenseLU{}.Solve(Mb.Flush(), b)
	if err != nil {
		return nil, err
	}
	vals := make(map[int]float64, n)
	for i, d := range dofs {
		vals[d] = x[i]
	}
	return vals, nil
}

// GlobalConstraint couples dofs across the whole system after the weak form
// terms are combined.
type GlobalConstraint interface {
	Apply(s *System) error
}

// FixedIntegralMean pins the mean of the named unknown, removing the
// constant nullspace of pure Neumann and incompressible problems. Enforced
// by penalizing the deviation of the weighted dof sum.
type FixedIntegralMean struct {
	Unknown string
	Mean    float64
	Penalty float64 // zero selects softPenalty

	weights []float64 // per dof integrals, cached after first use
	volume  float64
}

func (c *FixedIntegralMean) Apply(s *System) error {
	sp := s.P.Space(c.Unknown)
	if c.weights == nil {
		if err := c.computeWeights(sp); err != nil {
			return err
		}
	}
	var (
		p   = c.Penalty
		off = s.combined.BlockOffset(c.Unknown)
	)
	if p == 0 {
		p = softPenalty
	}
	// scale the penalty so the quadratic term stays near the magnitude of
	// a single penalized dof
	p /= c.volume * c.volume
	target := c.Mean * c.volume
	for i, wi := range c.weights {
		if wi == 0 {
			continue
		}
		s.rhs.Data[off+i] += p * target * wi
		for j, wj := range c.weights {
			if wj != 0 {
				s.combined.Add(off+i, off+j, p*wi*wj)
			}
		}
	}
	return nil
}

func (c *FixedIntegralMean) computeWeights(sp *fespace.Space) error {
	ev, err := assembly.NewFEEvaluator(sp, functionop.Ident(), meshdata.Cells, sp.El.Order()+1)
	if err != nil {
		return err
	}
	c.weights = make([]float64, sp.NDofs())
	for cell := 0; cell < sp.Mesh.NCells(); cell++ {
		if err = ev.UpdateBasis(cell); err != nil {
			return err
		}
		scale := ev.EntityMeasure(cell)
		c.volume += sp.Mesh.CellVolume(cell)
		for qp := 0; qp < ev.Quad.NPoints(); qp++ {
			wq := scale * ev.Quad.Weights.AtVec(qp)
			ov := ev.OpValues(qp)
			for j, d := range ev.Dofs() {
				c.weights[d] += wq * ov.At(0, j)
			}
		}
	}
	return nil
}

// CombineDofs ties dof A of the unknown to Scale times dof B, for periodic
// couplings and hanging constraints.
type CombineDofs struct {
	Unknown string
	A, B    int
	Scale   float64
	Penalty float64 // zero selects softPenalty
}

func (c CombineDofs) Apply(s *System) error {
	var (
		p   = c.Penalty
		off = s.combined.BlockOffset(c.Unknown)
		a   = off + c.A
		b   = off + c.B
	)
	if p == 0 {
		p = softPenalty
	}
	s.combined.Add(a, a, p)
	s.combined.Add(a, b, -p*c.Scale)
	s.combined.Add(b, a, -p*c.Scale)
	s.combined.Add(b, b, p*c.Scale*c.Scale)
	return nil
}
