package fespace

import (
	"fmt"

	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/utils"
)

// Space binds an element family to a mesh. Dof maps are derived once from
// mesh topology and stay fixed for the lifetime of the mesh.
type Space struct {
	El   Element
	Mesh *meshdata.Mesh

	scalarBase int // global dofs of one component
	ndofs      int
	cellDofs   [][]int
}

func NewSpace(el Element, m *meshdata.Mesh) (sp *Space) {
	sp = &Space{El: el, Mesh: m}
	var (
		p   = el.Pattern()
		nvn = m.NVerts() * p.PerNode
		nfn = m.NFaces() * p.PerFace
		ncn = m.NCells() * p.PerCell
	)
	sp.scalarBase = nvn + nfn + ncn
	sp.ndofs = sp.scalarBase * el.DofBlocks()
	sp.cellDofs = make([][]int, m.NCells())
	for c := 0; c < m.NCells(); c++ {
		sp.cellDofs[c] = sp.buildCellDofs(c)
	}
	return
}

func (sp *Space) NDofs() int      { return sp.ndofs }
func (sp *Space) Components() int { return sp.El.Components() }

// CellDofs returns the global dofs of cell c in local basis order:
// node dofs, face dofs, cell dofs, repeated per component block.
func (sp *Space) CellDofs(c int) []int { return sp.cellDofs[c] }

func (sp *Space) buildCellDofs(c int) (dofs []int) {
	var (
		p    = sp.El.Pattern()
		m    = sp.Mesh
		cell = m.Cells[c]
		cf   = m.CellFaces(c)
		nvn  = m.NVerts() * p.PerNode
		nfn  = m.NFaces() * p.PerFace
	)
	scalar := make([]int, 0, p.CellTotal())
	for _, n := range cell {
		for k := 0; k < p.PerNode; k++ {
			scalar = append(scalar, n*p.PerNode+k)
		}
	}
	for _, f := range cf {
		for k := 0; k < p.PerFace; k++ {
			scalar = append(scalar, nvn+f*p.PerFace+k)
		}
	}
	for k := 0; k < p.PerCell; k++ {
		scalar = append(scalar, nvn+nfn+c*p.PerCell+k)
	}
	for b := 0; b < sp.El.DofBlocks(); b++ {
		for _, d := range scalar {
			dofs = append(dofs, b*sp.scalarBase+d)
		}
	}
	return
}

// CellDofCoeffs returns the orientation coefficients matching CellDofs.
func (sp *Space) CellDofCoeffs(c int, out []float64) {
	sp.El.CellDofCoeffs(sp.Mesh, c, out)
}

// FaceDofs returns the global dofs located on face f: the node dofs of its
// endpoints plus the face dofs, per component block.
func (sp *Space) FaceDofs(f int) (dofs []int) {
	var (
		p     = sp.El.Pattern()
		m     = sp.Mesh
		nodes = m.FaceNodes(f)
		nvn   = m.NVerts() * p.PerNode
	)
	scalar := make([]int, 0, 2*p.PerNode+p.PerFace)
	for _, n := range nodes {
		for k := 0; k < p.PerNode; k++ {
			scalar = append(scalar, n*p.PerNode+k)
		}
	}
	for k := 0; k < p.PerFace; k++ {
		scalar = append(scalar, nvn+f*p.PerFace+k)
	}
	for b := 0; b < sp.El.DofBlocks(); b++ {
		for _, d := range scalar {
			dofs = append(dofs, b*sp.scalarBase+d)
		}
	}
	return
}

// Interpolate fills coefficient vector out (length NDofs) with the nodal or
// moment interpolant of f. f writes one value per component.
func (sp *Space) Interpolate(f func(x [2]float64, out []float64), out []float64) {
	if len(out) != sp.ndofs {
		panic(fmt.Errorf("interpolation target has %d entries, space has %d dofs", len(out), sp.ndofs))
	}
	var (
		p     = sp.El.Pattern()
		m     = sp.Mesh
		ncomp = sp.El.Components()
		nvn   = m.NVerts() * p.PerNode
		nfn   = m.NFaces() * p.PerFace
		buf   = make([]float64, ncomp)
	)
	if p.PerNode > 0 {
		for n := 0; n < m.NVerts(); n++ {
			f(m.Verts[n], buf)
			for comp := 0; comp < ncomp; comp++ {
				out[comp*sp.scalarBase+n] = buf[comp]
			}
		}
	}
	if p.PerFace > 0 {
		for fc := 0; fc < m.NFaces(); fc++ {
			if sp.El.Mapping() == MapPiola {
				// flux moment against the global face normal, two point
				// Gauss along the face
				q := quadrature.ForGeometry(quadrature.Line, 2*sp.El.Order())
				normal := m.FaceNormal(fc)
				vol := m.FaceVolume(fc)
				var flux float64
				for k := 0; k < q.NPoints(); k++ {
					s := q.Points.At(k, 0)
					f(m.FacePhys(fc, s), buf)
					flux += q.Weights.AtVec(k) * vol * (buf[0]*normal[0] + buf[1]*normal[1])
				}
				out[nvn+fc] = flux
			} else {
				f(m.FacePhys(fc, 0.5), buf)
				for comp := 0; comp < ncomp; comp++ {
					out[comp*sp.scalarBase+nvn+fc] = buf[comp]
				}
			}
		}
	}
	if p.PerCell > 0 {
		for c := 0; c < m.NCells(); c++ {
			f(m.CellCentroid(c), buf)
			for comp := 0; comp < ncomp; comp++ {
				out[comp*sp.scalarBase+nvn+nfn+c] = buf[comp]
			}
		}
	}
}

// InterpolateBoundary computes prescribed values for the dofs on boundary
// faces whose region is in regions (nil means all), by point/moment
// interpolation.
func (sp *Space) InterpolateBoundary(f func(x [2]float64, out []float64), regions utils.Index) (vals map[int]float64) {
	var (
		p     = sp.El.Pattern()
		m     = sp.Mesh
		ncomp = sp.El.Components()
		nvn   = m.NVerts() * p.PerNode
		buf   = make([]float64, ncomp)
	)
	vals = make(map[int]float64)
	for i := 0; i < m.NBFaces(); i++ {
		if regions != nil && !regions.Contains(m.BFaceRegion(i)) {
			continue
		}
		fc := m.BFace(i)
		nodes := m.FaceNodes(fc)
		if p.PerNode > 0 {
			for _, n := range nodes {
				f(m.Verts[n], buf)
				for comp := 0; comp < ncomp; comp++ {
					vals[comp*sp.scalarBase+n] = buf[comp]
				}
			}
		}
		if p.PerFace > 0 {
			if sp.El.Mapping() == MapPiola {
				q := quadrature.ForGeometry(quadrature.Line, 2*sp.El.Order())
				normal := m.FaceNormal(fc)
				vol := m.FaceVolume(fc)
				var flux float64
				for k := 0; k < q.NPoints(); k++ {
					s := q.Points.At(k, 0)
					f(m.FacePhys(fc, s), buf)
					flux += q.Weights.AtVec(k) * vol * (buf[0]*normal[0] + buf[1]*normal[1])
				}
				vals[nvn+fc] = flux
			} else {
				f(m.FacePhys(fc, 0.5), buf)
				for comp := 0; comp < ncomp; comp++ {
					vals[comp*sp.scalarBase+nvn+fc] = buf[comp]
				}
			}
		}
	}
	return
}
