package fespace

import (
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// RT0 is the lowest order Raviart-Thomas H(div) element: one dof per face,
// the flux through the face with respect to its global normal. Reference
// basis functions are normalized to unit flux through their own reference
// face; physical values come from the contravariant Piola transform applied
// by the evaluator, with the per-cell orientation sign from CellDofCoeffs.
type RT0 struct{}

func (RT0) Name() string        { return "RT0" }
func (RT0) Components() int     { return 2 }
func (RT0) Order() int          { return 1 }
func (RT0) DofBlocks() int     { return 1 }
func (RT0) Pattern() DofPattern { return DofPattern{PerFace: 1} }
func (RT0) Mapping() MappingType { return MapPiola }
func (RT0) NDofs() int          { return 3 }

func (RT0) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	var (
		r, s = xref[0], xref[1]
	)
	if !values.IsEmpty() {
		values.SetRow(0, []float64{r, s - 1}) // face (0,1)
		values.SetRow(1, []float64{r, s})     // face (1,2)
		values.SetRow(2, []float64{r - 1, s}) // face (2,0)
	}
	if !gradients.IsEmpty() {
		for i := 0; i < 3; i++ {
			gradients.SetRow(i, []float64{1, 0, 0, 1})
		}
	}
}

func (RT0) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) {
	cf := m.CellFaces(c)
	for lf := 0; lf < 3; lf++ {
		out[lf] = m.FaceSign(c, cf[lf])
	}
}
