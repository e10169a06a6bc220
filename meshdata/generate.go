package meshdata

import (
	"fmt"

	"github.com/pradeep-pyro/triangle"
)

// UnitSquare builds a structured triangulation of [0,1]^2 with n x n vertex
// squares, each split into two triangles with positive orientation.
func UnitSquare(n int) (m *Mesh) {
	if n < 1 {
		panic(fmt.Errorf("UnitSquare needs n >= 1, got %d", n))
	}
	var (
		np    = n + 1
		verts = make([][2]float64, np*np)
		cells [][3]int
		h     = 1. / float64(n)
	)
	for j := 0; j < np; j++ {
		for i := 0; i < np; i++ {
			verts[i+j*np] = [2]float64{float64(i) * h, float64(j) * h}
		}
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			ll := i + j*np
			lr := ll + 1
			ul := ll + np
			ur := ul + 1
			cells = append(cells, [3]int{ll, lr, ur})
			cells = append(cells, [3]int{ll, ur, ul})
		}
	}
	m = NewMesh(verts, cells)
	return
}

// Refine performs one level of uniform red refinement: every triangle is
// split into four congruent children through its edge midpoints. Cell
// regions are inherited.
func (m *Mesh) Refine() (r *Mesh) {
	m.buildFaces()
	var (
		nv    = len(m.Verts)
		verts = make([][2]float64, nv, nv+len(m.faces))
	)
	copy(verts, m.Verts)
	// one new vertex per face
	midOfFace := make([]int, len(m.faces))
	for f, nodes := range m.faces {
		va, vb := m.Verts[nodes[0]], m.Verts[nodes[1]]
		midOfFace[f] = len(verts)
		verts = append(verts, [2]float64{0.5 * (va[0] + vb[0]), 0.5 * (va[1] + vb[1])})
	}
	var (
		cells   = make([][3]int, 0, 4*len(m.Cells))
		regions = make([]int, 0, 4*len(m.Cells))
	)
	for c, cell := range m.Cells {
		cf := m.cellFaces[c]
		m01 := midOfFace[cf[0]]
		m12 := midOfFace[cf[1]]
		m20 := midOfFace[cf[2]]
		children := [4][3]int{
			{cell[0], m01, m20},
			{m01, cell[1], m12},
			{m20, m12, cell[2]},
			{m01, m12, m20},
		}
		for _, child := range children {
			cells = append(cells, child)
			regions = append(regions, m.CellRegions[c])
		}
	}
	r = NewMesh(verts, cells)
	r.CellRegions = regions
	return
}

// Delaunay builds an unstructured mesh from a point cloud via a Delaunay
// triangulation.
func Delaunay(points [][2]float64) (m *Mesh) {
	var (
		tris  = triangle.Delaunay(points)
		cells = make([][3]int, len(tris))
	)
	for i, tri := range tris {
		cells[i] = [3]int{int(tri[0]), int(tri[1]), int(tri[2])}
		// enforce positive orientation
		v0, v1, v2 := points[cells[i][0]], points[cells[i][1]], points[cells[i][2]]
		det := (v1[0]-v0[0])*(v2[1]-v0[1]) - (v2[0]-v0[0])*(v1[1]-v0[1])
		if det < 0 {
			cells[i][1], cells[i][2] = cells[i][2], cells[i][1]
		}
	}
	m = NewMesh(points, cells)
	return
}
