package fespace

import (
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// P0 is the piecewise constant element. Dofs are cell-local.
type P0 struct{}

func (P0) Name() string        { return "P0" }
func (P0) Components() int     { return 1 }
func (P0) Order() int          { return 0 }
func (P0) DofBlocks() int     { return 1 }
func (P0) Pattern() DofPattern { return DofPattern{PerCell: 1, Interior: true} }
func (P0) Mapping() MappingType { return MapAffine }
func (P0) NDofs() int          { return 1 }

func (P0) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	if !values.IsEmpty() {
		values.Set(0, 0, 1)
	}
	if !gradients.IsEmpty() {
		gradients.Set(0, 0, 0)
		gradients.Set(0, 1, 0)
	}
}

func (P0) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) { ones(out) }

// P1 is the linear Lagrange element, one dof per node.
type P1 struct{}

func (P1) Name() string        { return "P1" }
func (P1) Components() int     { return 1 }
func (P1) Order() int          { return 1 }
func (P1) DofBlocks() int     { return 1 }
func (P1) Pattern() DofPattern { return DofPattern{PerNode: 1} }
func (P1) Mapping() MappingType { return MapAffine }
func (P1) NDofs() int          { return 3 }

func (P1) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	var (
		r, s = xref[0], xref[1]
	)
	if !values.IsEmpty() {
		values.Set(0, 0, 1-r-s)
		values.Set(1, 0, r)
		values.Set(2, 0, s)
	}
	if !gradients.IsEmpty() {
		gradients.SetRow(0, []float64{-1, -1})
		gradients.SetRow(1, []float64{1, 0})
		gradients.SetRow(2, []float64{0, 1})
	}
}

func (P1) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) { ones(out) }

// P2 is the quadratic Lagrange element, one dof per node and one per face
// midpoint. Local ordering: the three nodes, then the three faces.
type P2 struct{}

func (P2) Name() string        { return "P2" }
func (P2) Components() int     { return 1 }
func (P2) Order() int          { return 2 }
func (P2) DofBlocks() int     { return 1 }
func (P2) Pattern() DofPattern { return DofPattern{PerNode: 1, PerFace: 1} }
func (P2) Mapping() MappingType { return MapAffine }
func (P2) NDofs() int          { return 6 }

func (P2) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	var (
		r, s = xref[0], xref[1]
		l0   = 1 - r - s
		l1   = r
		l2   = s
	)
	if !values.IsEmpty() {
		values.Set(0, 0, l0*(2*l0-1))
		values.Set(1, 0, l1*(2*l1-1))
		values.Set(2, 0, l2*(2*l2-1))
		values.Set(3, 0, 4*l0*l1) // face (0,1)
		values.Set(4, 0, 4*l1*l2) // face (1,2)
		values.Set(5, 0, 4*l2*l0) // face (2,0)
	}
	if !gradients.IsEmpty() {
		// dl0 = (-1,-1), dl1 = (1,0), dl2 = (0,1)
		gradients.SetRow(0, []float64{-(4*l0 - 1), -(4*l0 - 1)})
		gradients.SetRow(1, []float64{4*l1 - 1, 0})
		gradients.SetRow(2, []float64{0, 4*l2 - 1})
		gradients.SetRow(3, []float64{4 * (l0 - l1), -4 * l1})
		gradients.SetRow(4, []float64{4 * l2, 4 * l1})
		gradients.SetRow(5, []float64{-4 * l2, 4 * (l0 - l2)})
	}
}

func (P2) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) { ones(out) }

// CR is the nonconforming Crouzeix-Raviart element, one dof per face
// midpoint, continuous only at midpoints.
type CR struct{}

func (CR) Name() string        { return "CR" }
func (CR) Components() int     { return 1 }
func (CR) Order() int          { return 1 }
func (CR) DofBlocks() int     { return 1 }
func (CR) Pattern() DofPattern { return DofPattern{PerFace: 1} }
func (CR) Mapping() MappingType { return MapAffine }
func (CR) NDofs() int          { return 3 }

func (CR) EvalBasis(xref []float64, values, gradients utils.Matrix) {
	var (
		r, s = xref[0], xref[1]
		l0   = 1 - r - s
		l1   = r
		l2   = s
	)
	if !values.IsEmpty() {
		values.Set(0, 0, 1-2*l2) // face (0,1), opposite node 2
		values.Set(1, 0, 1-2*l0) // face (1,2)
		values.Set(2, 0, 1-2*l1) // face (2,0)
	}
	if !gradients.IsEmpty() {
		gradients.SetRow(0, []float64{0, -2})
		gradients.SetRow(1, []float64{2, 2})
		gradients.SetRow(2, []float64{-2, 0})
	}
}

func (CR) CellDofCoeffs(m *meshdata.Mesh, c int, out []float64) { ones(out) }

func ones(out []float64) {
	for i := range out {
		out[i] = 1
	}
}
