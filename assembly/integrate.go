package assembly

import (
	"math"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/meshdata"
)

// Integral computes the componentwise integral of op applied to the field
// with the given coefficients over all cells.
func Integral(sp *fespace.Space, op functionop.Operator, coeffs []float64, quadOrder int) (result []float64, err error) {
	ev, err := NewFEEvaluator(sp, op, meshdata.Cells, quadOrder)
	if err != nil {
		return
	}
	result = make([]float64, ev.NOut())
	for c := 0; c < sp.Mesh.NCells(); c++ {
		if err = ev.UpdateBasis(c); err != nil {
			return
		}
		var (
			scale = ev.EntityMeasure(c)
			dofs  = ev.Dofs()
		)
		for qp := 0; qp < ev.Quad.NPoints(); qp++ {
			wq := scale * ev.Quad.Weights.AtVec(qp)
			ov := ev.OpValues(qp)
			for comp := range result {
				var v float64
				for j, d := range dofs {
					v += ov.At(comp, j) * coeffs[d]
				}
				result[comp] += wq * v
			}
		}
	}
	return
}

// L2Error computes the L2 distance between op applied to the discrete field
// and the data function exact, at time t. The quadrature order should
// overshoot the field's own, since the integrand is not polynomial.
func L2Error(sp *fespace.Space, op functionop.Operator, coeffs []float64, exact *actions.DataFunction, quadOrder int, t float64) (e float64, err error) {
	ev, err := NewFEEvaluator(sp, op, meshdata.Cells, quadOrder)
	if err != nil {
		return
	}
	var (
		ctx = actions.EvalContext{T: t}
		ex  = make([]float64, ev.NOut())
	)
	for c := 0; c < sp.Mesh.NCells(); c++ {
		if err = ev.UpdateBasis(c); err != nil {
			return
		}
		var (
			scale = ev.EntityMeasure(c)
			dofs  = ev.Dofs()
		)
		ctx.Item = c
		for qp := 0; qp < ev.Quad.NPoints(); qp++ {
			ctx.Xref = ev.Quad.Points.Row(qp)
			ctx.X = sp.Mesh.RefToPhys(c, ctx.Xref)
			exact.Evaluate(ex, &ctx)
			var (
				wq = scale * ev.Quad.Weights.AtVec(qp)
				ov = ev.OpValues(qp)
			)
			for comp := range ex {
				v := -ex[comp]
				for j, d := range dofs {
					v += ov.At(comp, j) * coeffs[d]
				}
				e += wq * v * v
			}
		}
	}
	e = math.Sqrt(e)
	return
}

// L2Norm is L2Error against zero.
func L2Norm(sp *fespace.Space, op functionop.Operator, coeffs []float64, quadOrder int) (float64, error) {
	zero := actions.NewConstant(make([]float64, op.OutputComponents(sp.El))...)
	return L2Error(sp, op, coeffs, zero, quadOrder, 0)
}
