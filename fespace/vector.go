package fespace

import (
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// Vector promotes a scalar element to a two component field. Local and
// global dofs are component blocked: all component 0 dofs first, then all
// component 1 dofs.
type Vector struct {
	Base Element
}

func (v Vector) Name() string        { return v.Base.Name() + "V" }
func (v Vector) Components() int     { return 2 }
func (v Vector) Order() int          { return v.Base.Order() }
func (v Vector) DofBlocks() int     { return 2 }
func (v Vector) Pattern() DofPattern { return v.Base.Pattern() }
func (v Vector) Mapping() MappingType { return v.Base.Mapping() }
func (v Vector) NDofs() int          { return 2 * v.Base.NDofs() }

func (v Vector) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	var (
		n     = v.Base.NDofs()
		bvals utils.Matrix
		bgrad utils.Matrix
	)
	if !values.IsEmpty() {
		bvals = utils.NewMatrix(n, 1)
	}
	if !gradients.IsEmpty() {
		bgrad = utils.NewMatrix(n, 2)
	}
	v.Base.EvalBasis(xref, bvals, bgrad)
	if !values.IsEmpty() {
		values.Zero()
		for i := 0; i < n; i++ {
			values.Set(i, 0, bvals.At(i, 0))
			values.Set(n+i, 1, bvals.At(i, 0))
		}
	}
	if !gradients.IsEmpty() {
		gradients.Zero()
		for i := 0; i < n; i++ {
			gradients.Set(i, 0, bgrad.At(i, 0))
			gradients.Set(i, 1, bgrad.At(i, 1))
			gradients.Set(n+i, 2, bgrad.At(i, 0))
			gradients.Set(n+i, 3, bgrad.At(i, 1))
		}
	}
}

func (v Vector) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) {
	n := v.Base.NDofs()
	v.Base.CellDofCoeffs(m, c, out[:n])
	copy(out[n:], out[:n])
}
