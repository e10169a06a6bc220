package assembly

import (
	"fmt"

	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/utils"
)

// FEEvaluator produces the operator-applied basis values of one space on one
// assembly entity at the quadrature points. Reference basis evaluations are
// cached per distinct reference configuration; UpdateBasis applies the
// per-entity dof coefficients and the geometric pushforward. Triangles are
// affine, so the pushforward is computed once per entity.
//
// After UpdateBasis, OpValues(qp) holds one row per output component and one
// column per local dof; the orientation coefficients are already folded in,
// so columns pair directly with the global dofs returned by Dofs().
type FEEvaluator struct {
	Space  *fespace.Space
	Op     functionop.Operator
	Entity meshdata.EntityType
	Quad   *quadrature.Rule

	nout  int
	ndof  int // local dofs of one cell
	ncols int // ndof, or 2*ndof for two sided operators

	// reference evaluations, cells: one entry per quadrature point
	refVals  []utils.Matrix
	refGrads []utils.Matrix
	// reference evaluations on faces, keyed by local face and orientation
	faceRef map[[2]int]*refEval

	// reconstruction state
	reconFill   func(utils.Matrix, int)
	reconCoeffs utils.Matrix
	reconTarget fespace.Element
	reconSigns  []float64
	targetVals  []utils.Matrix
	targetGrads []utils.Matrix

	// current entity state
	dofs     []int
	coeffs   [2][]float64
	opValues []utils.Matrix
	item     int
}

type refEval struct {
	vals  []utils.Matrix
	grads []utils.Matrix
}

// NewFEEvaluator validates the operator/element/entity combination and
// builds the cached reference data. Configuration errors surface here, not
// during assembly.
func NewFEEvaluator(sp *fespace.Space, op functionop.Operator, entity meshdata.EntityType, quadOrder int) (ev *FEEvaluator, err error) {
	if err = op.ValidFor(sp.El); err != nil {
		return
	}
	if op.TwoSided() && entity != meshdata.Faces {
		err = fmt.Errorf("operator %v assembles on interior faces, not %v", op.Kind, entity)
		return
	}
	ev = &FEEvaluator{
		Space:  sp,
		Op:     op,
		Entity: entity,
		Quad:   quadrature.ForGeometry(entity.Geometry(), quadOrder),
		nout:   op.OutputComponents(sp.El),
		ndof:   sp.El.NDofs(),
	}
	ev.ncols = ev.ndof
	if op.TwoSided() {
		ev.ncols = 2 * ev.ndof
	}
	switch op.Kind {
	case functionop.ReconstructIdentity, functionop.ReconstructDivergence:
		if entity != meshdata.Cells {
			err = fmt.Errorf("operator %v is only registered for cell assembly, got %v", op.Kind, entity)
			return nil, err
		}
		ev.reconTarget = op.Target
		ev.reconFill, err = fespace.ReconstructionCoefficients(sp.Mesh, sp.El, op.Target)
		if err != nil {
			return nil, err
		}
		ev.reconCoeffs = utils.NewMatrix(op.Target.NDofs(), ev.ndof)
		ev.reconSigns = make([]float64, op.Target.NDofs())
	}
	ev.buildReference()
	ev.coeffs[0] = make([]float64, ev.ndof)
	ev.coeffs[1] = make([]float64, ev.ndof)
	ev.opValues = make([]utils.Matrix, ev.Quad.NPoints())
	for k := range ev.opValues {
		ev.opValues[k] = utils.NewMatrix(ev.nout, ev.ncols)
	}
	ev.item = -1
	return
}

func (ev *FEEvaluator) buildReference() {
	if ev.Entity == meshdata.Cells {
		np := ev.Quad.NPoints()
		ev.refVals = make([]utils.Matrix, np)
		ev.refGrads = make([]utils.Matrix, np)
		for k := 0; k < np; k++ {
			xref := ev.Quad.Points.Row(k)
			ev.refVals[k], ev.refGrads[k] = ev.evalElement(ev.Space.El, xref)
		}
		if ev.reconTarget != nil {
			ev.targetVals = make([]utils.Matrix, np)
			ev.targetGrads = make([]utils.Matrix, np)
			for k := 0; k < np; k++ {
				xref := ev.Quad.Points.Row(k)
				ev.targetVals[k], ev.targetGrads[k] = ev.evalElement(ev.reconTarget, xref)
			}
		}
		return
	}
	ev.faceRef = make(map[[2]int]*refEval)
}

func (ev *FEEvaluator) evalElement(el fespace.Element, xref []float64) (vals, grads utils.Matrix) {
	vals = utils.NewMatrix(el.NDofs(), el.Components())
	grads = utils.NewMatrix(el.NDofs(), el.Components()*2)
	el.EvalBasis(xref, vals, grads)
	return
}

// faceReference returns the cached reference evaluation of the cell basis
// at the face quadrature points, for a given local face and orientation.
func (ev *FEEvaluator) faceReference(f, c int) (re *refEval) {
	var (
		m     = ev.Space.Mesh
		fl    = m.FaceLocalIndex(f)
		cells = m.FaceCells(f)
		side  = 0
	)
	if cells[1] == c {
		side = 1
	}
	lf := fl[side]
	// orientation: does the cell traverse the face in global node order
	p := m.Cells[c][[3][2]int{{0, 1}, {1, 2}, {2, 0}}[lf][0]]
	flip := 0
	if p != m.FaceNodes(f)[0] {
		flip = 1
	}
	key := [2]int{lf, flip}
	if re = ev.faceRef[key]; re != nil {
		return
	}
	re = &refEval{}
	for k := 0; k < ev.Quad.NPoints(); k++ {
		s := ev.Quad.Points.At(k, 0)
		xr := m.FaceRefCoords(f, c, s)
		vals, grads := ev.evalElement(ev.Space.El, []float64{xr[0], xr[1]})
		re.vals = append(re.vals, vals)
		re.grads = append(re.grads, grads)
	}
	ev.faceRef[key] = re
	return
}

// Dofs returns the global dofs pairing with the columns of OpValues.
func (ev *FEEvaluator) Dofs() []int { return ev.dofs }

// NCols is the number of operator value columns (local dofs, both sides for
// jump/average operators).
func (ev *FEEvaluator) NCols() int { return ev.ncols }

// NOut is the number of output components the operator produces.
func (ev *FEEvaluator) NOut() int { return ev.nout }

// OpValues returns the operator applied basis values at quadrature point qp
// for the entity last passed to UpdateBasis.
func (ev *FEEvaluator) OpValues(qp int) utils.Matrix { return ev.opValues[qp] }

// UpdateBasis recomputes the operator values for one entity of the
// evaluator's entity type.
func (ev *FEEvaluator) UpdateBasis(item int) error {
	if item == ev.item {
		return nil
	}
	ev.item = item
	switch ev.Entity {
	case meshdata.Cells:
		return ev.updateCell(item)
	case meshdata.BFaces:
		return ev.updateFace(ev.Space.Mesh.BFace(item))
	case meshdata.Faces:
		return ev.updateFace(item)
	}
	return fmt.Errorf("unknown entity type %v", ev.Entity)
}

func (ev *FEEvaluator) updateCell(c int) error {
	var (
		m      = ev.Space.Mesh
		J, det = m.CellJacobian(c)
	)
	ev.dofs = ev.Space.CellDofs(c)
	ev.Space.CellDofCoeffs(c, ev.coeffs[0])
	if ev.reconFill != nil {
		ev.reconFill(ev.reconCoeffs, c)
	}
	for k := range ev.opValues {
		if err := ev.reduce(ev.opValues[k], 0, c, ev.refVals[k], ev.refGrads[k], k, J, det, ev.coeffs[0]); err != nil {
			return err
		}
	}
	return nil
}

func (ev *FEEvaluator) updateFace(f int) error {
	var (
		m     = ev.Space.Mesh
		cells = m.FaceCells(f)
	)
	ev.dofs = ev.dofs[:0]
	nsides := 1
	if ev.Op.TwoSided() && cells[1] != -1 {
		nsides = 2
	}
	for k := range ev.opValues {
		ev.opValues[k].Zero()
	}
	for side := 0; side < nsides; side++ {
		c := cells[side]
		J, det := m.CellJacobian(c)
		ev.Space.CellDofCoeffs(c, ev.coeffs[side])
		ev.dofs = append(ev.dofs, ev.Space.CellDofs(c)...)
		re := ev.faceReference(f, c)
		for k := range ev.opValues {
			if err := ev.reduce(ev.opValues[k], side, c, re.vals[k], re.grads[k], k, J, det, ev.coeffs[side]); err != nil {
				return err
			}
		}
	}
	return nil
}

// reduce applies the operator's reduction to the reference basis data of
// one entity side, writing columns [side*ndof, side*ndof+ndof) of out.
func (ev *FEEvaluator) reduce(out utils.Matrix, side, cell int, vals, grads utils.Matrix, qp int, J [4]float64, det float64, coeffs []float64) error {
	var (
		el    = ev.Space.El
		ncomp = el.Components()
		col0  = side * ev.ndof
		// side factors for two sided operators
		factor = 1.0
	)
	switch ev.Op.Kind {
	case functionop.Jump:
		if side == 1 {
			factor = -1
		}
	case functionop.Average:
		cells := ev.Space.Mesh.FaceCells(ev.faceOf())
		if cells[1] != -1 {
			factor = 0.5
		}
	}
	switch ev.Op.Kind {
	case functionop.Identity, functionop.Trace, functionop.Jump, functionop.Average:
		for j := 0; j < ev.ndof; j++ {
			w := factor * coeffs[j]
			if el.Mapping() == fespace.MapPiola {
				// contravariant Piola
				vr, vs := vals.At(j, 0), vals.At(j, 1)
				out.Set(0, col0+j, w*(J[0]*vr+J[1]*vs)/det)
				out.Set(1, col0+j, w*(J[2]*vr+J[3]*vs)/det)
			} else {
				for c := 0; c < ncomp; c++ {
					out.Set(c, col0+j, w*vals.At(j, c))
				}
			}
		}
	case functionop.Gradient:
		for j := 0; j < ev.ndof; j++ {
			w := factor * coeffs[j]
			for c := 0; c < ncomp; c++ {
				dr, ds := grads.At(j, c*2), grads.At(j, c*2+1)
				out.Set(c*2, col0+j, w*(J[3]*dr-J[2]*ds)/det)
				out.Set(c*2+1, col0+j, w*(-J[1]*dr+J[0]*ds)/det)
			}
		}
	case functionop.Divergence:
		for j := 0; j < ev.ndof; j++ {
			w := factor * coeffs[j]
			var div float64
			if el.Mapping() == fespace.MapPiola {
				div = (grads.At(j, 0) + grads.At(j, 3)) / det
			} else {
				d0r, d0s := grads.At(j, 0), grads.At(j, 1)
				d1r, d1s := grads.At(j, 2), grads.At(j, 3)
				div = (J[3]*d0r-J[2]*d0s)/det + (-J[1]*d1r+J[0]*d1s)/det
			}
			out.Set(0, col0+j, w*div)
		}
	case functionop.Curl2D:
		for j := 0; j < ev.ndof; j++ {
			w := factor * coeffs[j]
			d0r, d0s := grads.At(j, 0), grads.At(j, 1)
			d1r, d1s := grads.At(j, 2), grads.At(j, 3)
			dvydx := (J[3]*d1r - J[2]*d1s) / det
			dvxdy := (-J[1]*d0r + J[0]*d0s) / det
			out.Set(0, col0+j, w*(dvydx-dvxdy))
		}
	case functionop.ReconstructIdentity, functionop.ReconstructDivergence:
		var (
			tEl    = ev.reconTarget
			tVals  = ev.targetVals[qp]
			tGrads = ev.targetGrads[qp]
			tn     = tEl.NDofs()
			signs  = ev.reconSigns
		)
		tEl.CellDofCoeffs(ev.Space.Mesh, cell, signs)
		for j := 0; j < ev.ndof; j++ {
			w := factor * coeffs[j]
			if ev.Op.Kind == functionop.ReconstructIdentity {
				var vx, vy float64
				for tj := 0; tj < tn; tj++ {
					cf := ev.reconCoeffs.At(tj, j) * signs[tj]
					vr, vs := tVals.At(tj, 0), tVals.At(tj, 1)
					vx += cf * (J[0]*vr + J[1]*vs) / det
					vy += cf * (J[2]*vr + J[3]*vs) / det
				}
				out.Set(0, col0+j, w*vx)
				out.Set(1, col0+j, w*vy)
			} else {
				var div float64
				for tj := 0; tj < tn; tj++ {
					cf := ev.reconCoeffs.At(tj, j) * signs[tj]
					div += cf * (tGrads.At(tj, 0) + tGrads.At(tj, 3)) / det
				}
				out.Set(0, col0+j, w*div)
			}
		}
	default:
		return fmt.Errorf("operator %v has no registered reduction", ev.Op.Kind)
	}
	return nil
}

func (ev *FEEvaluator) faceOf() int {
	if ev.Entity == meshdata.BFaces {
		return ev.Space.Mesh.BFace(ev.item)
	}
	return ev.item
}

// EntityMeasure is the integration weight scale of the current entity type.
func (ev *FEEvaluator) EntityMeasure(item int) float64 {
	m := ev.Space.Mesh
	switch ev.Entity {
	case meshdata.Cells:
		_, det := m.CellJacobian(item)
		if det < 0 {
			return -det
		}
		return det
	case meshdata.BFaces:
		return m.FaceVolume(m.BFace(item))
	case meshdata.Faces:
		return m.FaceVolume(item)
	}
	panic(fmt.Errorf("unknown entity type %v", ev.Entity))
}
