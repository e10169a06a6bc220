// Package fespace defines finite element families on triangles and binds
// them to a mesh as spaces with global dof maps, orientation coefficients
// and interpolation.
package fespace

import (
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// DofPattern counts the dofs contributed by each subentity level of a
// triangle, per field component.
type DofPattern struct {
	PerNode  int
	PerFace  int
	PerCell  int
	Interior bool // entity-local numbering, no global coupling
}

// CellTotal is the number of local dofs on a triangle for one component.
func (p DofPattern) CellTotal() int { return 3*p.PerNode + 3*p.PerFace + p.PerCell }

type MappingType uint8

const (
	// MapAffine is the plain pullback used by H1/L2 families.
	MapAffine MappingType = iota
	// MapPiola is the contravariant Piola transform used by H(div) families.
	MapPiola
)

// Element is the capability interface of one finite element family on the
// reference triangle.
type Element interface {
	Name() string
	// Components is the number of field components of the element.
	Components() int
	// Order is the polynomial order of the basis.
	Order() int
	// DofBlocks is the number of component blocks in the dof numbering: 1
	// for scalar and intrinsically vector-valued families, one block per
	// component for component-wise vector promotions.
	DofBlocks() int
	Pattern() DofPattern
	Mapping() MappingType
	// NDofs is the local dof count on one triangle, all components.
	NDofs() int
	// EvalBasis writes reference basis values (ndof x ncomp) and reference
	// first derivatives (ndof x ncomp*2, column c*2+d carrying
	// d(component c)/d(ref coord d)) at the reference point xref. Either
	// target may be empty when unneeded.
	EvalBasis(xref []float64, values, gradients utils.Matrix)
	// CellDofCoeffs writes the orientation coefficient of each local dof of
	// cell c: the factor relating the global dof to the cell-local basis.
	CellDofCoeffs(m *meshdata.Mesh, c int, out []float64)
}
