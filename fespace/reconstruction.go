package fespace

import (
	"fmt"

	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

// ReconstructionCoefficients expresses each local basis function of the
// source element as a combination of the target element's global-dof basis
// functions on a cell. The returned closure fills coeffs (target local dof x
// source local dof) for one cell; it is evaluated once per cell during
// assembly. Unsupported pairs are a configuration error, reported here at
// setup rather than during assembly.
func ReconstructionCoefficients(m *meshdata.Mesh, source, target Element) (fill func(coeffs utils.Matrix, cell int), err error) {
	if _, ok := target.(RT0); !ok {
		err = fmt.Errorf("no reconstruction registered for target element %s", target.Name())
		return
	}
	vec, ok := source.(Vector)
	if !ok {
		err = fmt.Errorf("no reconstruction registered for source element %s into %s", source.Name(), target.Name())
		return
	}
	switch vec.Base.(type) {
	case CR:
		// the CR basis has mean |F| on its own face and zero mean on the
		// others, so the flux of a CR field through face F is |F| n . u_F
		fill = func(coeffs utils.Matrix, cell int) {
			coeffs.Zero()
			cf := m.CellFaces(cell)
			for lf := 0; lf < 3; lf++ {
				f := cf[lf]
				n := m.FaceNormal(f)
				vol := m.FaceVolume(f)
				for comp := 0; comp < 2; comp++ {
					coeffs.Set(lf, comp*3+lf, vol*n[comp])
				}
			}
		}
	case P1:
		// trapezoid flux of a P1 field: the two endpoint values average
		fill = func(coeffs utils.Matrix, cell int) {
			coeffs.Zero()
			cf := m.CellFaces(cell)
			cellNodes := m.Cells[cell]
			for lf := 0; lf < 3; lf++ {
				f := cf[lf]
				n := m.FaceNormal(f)
				vol := m.FaceVolume(f)
				fnodes := m.FaceNodes(f)
				for _, gn := range fnodes {
					var ln int = -1
					for k, cn := range cellNodes {
						if cn == gn {
							ln = k
						}
					}
					if ln < 0 {
						panic(fmt.Errorf("face %d node %d not in cell %d", f, gn, cell))
					}
					for comp := 0; comp < 2; comp++ {
						coeffs.Add(lf, comp*3+ln, 0.5*vol*n[comp])
					}
				}
			}
		}
	default:
		err = fmt.Errorf("no reconstruction registered for source element %s into %s", source.Name(), target.Name())
	}
	return
}
