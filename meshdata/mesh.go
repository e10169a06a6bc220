// Package meshdata holds the read-only 2D triangle mesh consumed by the
// assembly layer: vertex coordinates, cell connectivity and lazily derived
// face incidence, normals, volumes and orientation signs. Derived arrays are
// memoized on first query and stay valid for the lifetime of the mesh.
package meshdata

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gofea/quadrature"
)

type EntityType uint8

const (
	Cells EntityType = iota
	Faces
	BFaces
)

func (et EntityType) String() string {
	switch et {
	case Cells:
		return "Cells"
	case Faces:
		return "Faces"
	case BFaces:
		return "BFaces"
	}
	return fmt.Sprintf("EntityType(%d)", et)
}

// Geometry returns the reference shape of entities of this type.
func (et EntityType) Geometry() quadrature.Geometry {
	if et == Cells {
		return quadrature.Triangle
	}
	return quadrature.Line
}

type Mesh struct {
	Verts       [][2]float64
	Cells       [][3]int
	CellRegions []int // one based; zero entries are normalized to 1

	// derived, built lazily
	faces         [][2]int // node pairs, low node first
	cellFaces     [][3]int
	faceCells     [][2]int // second entry -1 on the boundary
	faceLocal     [][2]int // local face index inside each adjacent cell
	bfaces        []int    // face index per boundary face
	faceToBFace   []int    // -1 for interior faces
	bfaceRegions  []int
	cellVolumes   []float64
	faceVolumes   []float64
	faceNormals   [][2]float64 // outward from faceCells[0]
	cellCentroids [][2]float64
}

func NewMesh(verts [][2]float64, cells [][3]int) (m *Mesh) {
	m = &Mesh{
		Verts:       verts,
		Cells:       cells,
		CellRegions: make([]int, len(cells)),
	}
	for i := range m.CellRegions {
		m.CellRegions[i] = 1
	}
	return
}

func (m *Mesh) NVerts() int { return len(m.Verts) }
func (m *Mesh) NCells() int { return len(m.Cells) }

func (m *Mesh) NFaces() int {
	m.buildFaces()
	return len(m.faces)
}

func (m *Mesh) NBFaces() int {
	m.buildFaces()
	return len(m.bfaces)
}

func (m *Mesh) EntityCount(et EntityType) int {
	switch et {
	case Cells:
		return m.NCells()
	case Faces:
		return m.NFaces()
	case BFaces:
		return m.NBFaces()
	}
	panic(fmt.Errorf("unknown entity type %v", et))
}

// localFaceNodes maps a triangle's local face index to its local node pair,
// in traversal order.
var localFaceNodes = [3][2]int{{0, 1}, {1, 2}, {2, 0}}

func (m *Mesh) buildFaces() {
	if m.faces != nil {
		return
	}
	type faceKey struct{ a, b int }
	var (
		index = make(map[faceKey]int)
	)
	m.cellFaces = make([][3]int, len(m.Cells))
	for c, cell := range m.Cells {
		for lf := 0; lf < 3; lf++ {
			p := cell[localFaceNodes[lf][0]]
			q := cell[localFaceNodes[lf][1]]
			key := faceKey{p, q}
			if q < p {
				key = faceKey{q, p}
			}
			f, ok := index[key]
			if !ok {
				f = len(m.faces)
				index[key] = f
				m.faces = append(m.faces, [2]int{key.a, key.b})
				m.faceCells = append(m.faceCells, [2]int{c, -1})
				m.faceLocal = append(m.faceLocal, [2]int{lf, -1})
			} else {
				if m.faceCells[f][1] != -1 {
					panic(fmt.Errorf("face %d shared by more than two cells", f))
				}
				m.faceCells[f][1] = c
				m.faceLocal[f][1] = lf
			}
			m.cellFaces[c][lf] = f
		}
	}
	m.faceToBFace = make([]int, len(m.faces))
	for f := range m.faces {
		m.faceToBFace[f] = -1
		if m.faceCells[f][1] == -1 {
			m.faceToBFace[f] = len(m.bfaces)
			m.bfaces = append(m.bfaces, f)
		}
	}
	m.bfaceRegions = make([]int, len(m.bfaces))
	for i := range m.bfaceRegions {
		m.bfaceRegions[i] = 1
	}
}

// FaceNodes returns the global node pair of a face, low node first.
func (m *Mesh) FaceNodes(f int) [2]int {
	m.buildFaces()
	return m.faces[f]
}

// FaceCells returns the one or two cells adjacent to a face. The second
// entry is -1 for boundary faces. The first cell owns the face orientation.
func (m *Mesh) FaceCells(f int) [2]int {
	m.buildFaces()
	return m.faceCells[f]
}

// FaceLocalIndex returns the local face number of face f within each of its
// adjacent cells (-1 where there is no second cell).
func (m *Mesh) FaceLocalIndex(f int) [2]int {
	m.buildFaces()
	return m.faceLocal[f]
}

func (m *Mesh) CellFaces(c int) [3]int {
	m.buildFaces()
	return m.cellFaces[c]
}

// FaceSign is +1 when the cell owns face f (outward normal convention),
// -1 when it borrows it from the neighbor. Panics on a cell/face mismatch.
func (m *Mesh) FaceSign(c, f int) float64 {
	m.buildFaces()
	if m.faceCells[f][0] == c {
		return 1
	}
	if m.faceCells[f][1] == c {
		return -1
	}
	panic(fmt.Errorf("cell %d is not adjacent to face %d", c, f))
}

func (m *Mesh) BFace(i int) int {
	m.buildFaces()
	return m.bfaces[i]
}

// BFaceIndex returns the boundary-face index of face f, or -1 if interior.
func (m *Mesh) BFaceIndex(f int) int {
	m.buildFaces()
	return m.faceToBFace[f]
}

func (m *Mesh) BFaceRegion(i int) int {
	m.buildFaces()
	return m.bfaceRegions[i]
}

// ClassifyBoundary assigns boundary regions by testing each boundary face
// midpoint.
func (m *Mesh) ClassifyBoundary(classify func(x [2]float64) int) {
	m.buildFaces()
	for i, f := range m.bfaces {
		nodes := m.faces[f]
		mid := [2]float64{
			0.5 * (m.Verts[nodes[0]][0] + m.Verts[nodes[1]][0]),
			0.5 * (m.Verts[nodes[0]][1] + m.Verts[nodes[1]][1]),
		}
		m.bfaceRegions[i] = classify(mid)
	}
}

// Regions returns the sorted distinct regions present for an entity type.
func (m *Mesh) Regions(et EntityType) (regions []int) {
	var src []int
	switch et {
	case Cells:
		src = m.CellRegions
	case BFaces:
		m.buildFaces()
		src = m.bfaceRegions
	case Faces:
		return []int{1}
	}
	seen := make(map[int]bool)
	for _, r := range src {
		if !seen[r] {
			seen[r] = true
			regions = append(regions, r)
		}
	}
	sort.Ints(regions)
	return
}

// EntityRegion returns the region of one entity of the given type.
func (m *Mesh) EntityRegion(et EntityType, i int) int {
	switch et {
	case Cells:
		return m.CellRegions[i]
	case BFaces:
		m.buildFaces()
		return m.bfaceRegions[i]
	case Faces:
		return 1
	}
	panic(fmt.Errorf("unknown entity type %v", et))
}

func (m *Mesh) CellVolume(c int) float64 {
	if m.cellVolumes == nil {
		m.cellVolumes = make([]float64, len(m.Cells))
		for i := range m.Cells {
			_, det := m.CellJacobian(i)
			m.cellVolumes[i] = 0.5 * math.Abs(det)
		}
	}
	return m.cellVolumes[c]
}

func (m *Mesh) FaceVolume(f int) float64 {
	m.buildFaces()
	if m.faceVolumes == nil {
		m.faceVolumes = make([]float64, len(m.faces))
		for i, nodes := range m.faces {
			dx := m.Verts[nodes[1]][0] - m.Verts[nodes[0]][0]
			dy := m.Verts[nodes[1]][1] - m.Verts[nodes[0]][1]
			m.faceVolumes[i] = math.Hypot(dx, dy)
		}
	}
	return m.faceVolumes[f]
}

// FaceNormal is the unit normal of face f pointing out of its first
// adjacent cell.
func (m *Mesh) FaceNormal(f int) [2]float64 {
	m.buildFaces()
	if m.faceNormals == nil {
		m.faceNormals = make([][2]float64, len(m.faces))
		for i, nodes := range m.faces {
			va, vb := m.Verts[nodes[0]], m.Verts[nodes[1]]
			dx, dy := vb[0]-va[0], vb[1]-va[1]
			l := math.Hypot(dx, dy)
			n := [2]float64{dy / l, -dx / l}
			// flip if pointing into the owner cell
			c := m.faceCells[i][0]
			cent := m.CellCentroid(c)
			mid := [2]float64{0.5 * (va[0] + vb[0]), 0.5 * (va[1] + vb[1])}
			if n[0]*(mid[0]-cent[0])+n[1]*(mid[1]-cent[1]) < 0 {
				n[0], n[1] = -n[0], -n[1]
			}
			m.faceNormals[i] = n
		}
	}
	return m.faceNormals[f]
}

func (m *Mesh) CellCentroid(c int) [2]float64 {
	if m.cellCentroids == nil {
		m.cellCentroids = make([][2]float64, len(m.Cells))
		for i, cell := range m.Cells {
			var cx, cy float64
			for _, n := range cell {
				cx += m.Verts[n][0]
				cy += m.Verts[n][1]
			}
			m.cellCentroids[i] = [2]float64{cx / 3, cy / 3}
		}
	}
	return m.cellCentroids[c]
}

// CellJacobian returns the affine map jacobian of cell c in row-major order
// [dx/dr dx/ds; dy/dr dy/ds] and its determinant. Triangles are straight
// sided, so the jacobian is constant over the cell.
func (m *Mesh) CellJacobian(c int) (J [4]float64, det float64) {
	var (
		cell = m.Cells[c]
		v0   = m.Verts[cell[0]]
		v1   = m.Verts[cell[1]]
		v2   = m.Verts[cell[2]]
	)
	J[0] = v1[0] - v0[0]
	J[1] = v2[0] - v0[0]
	J[2] = v1[1] - v0[1]
	J[3] = v2[1] - v0[1]
	det = J[0]*J[3] - J[1]*J[2]
	return
}

// RefToPhys maps reference coordinates in cell c to physical coordinates.
func (m *Mesh) RefToPhys(c int, xref []float64) (x [2]float64) {
	var (
		cell = m.Cells[c]
		v0   = m.Verts[cell[0]]
		v1   = m.Verts[cell[1]]
		v2   = m.Verts[cell[2]]
	)
	x[0] = v0[0] + xref[0]*(v1[0]-v0[0]) + xref[1]*(v2[0]-v0[0])
	x[1] = v0[1] + xref[0]*(v1[1]-v0[1]) + xref[1]*(v2[1]-v0[1])
	return
}

// refFaceEnds maps a triangle's local face to the reference coordinates of
// its two endpoints in traversal order.
var refFaceEnds = [3][2][2]float64{
	{{0, 0}, {1, 0}},
	{{1, 0}, {0, 1}},
	{{0, 1}, {0, 0}},
}

// FaceRefCoords maps arclength parameter s in [0,1] along face f (in global
// face node order, low node to high node) into the reference coordinates of
// adjacent cell c. Used to evaluate cell bases at face quadrature points with
// a shared parameterization on both sides of an interior face.
func (m *Mesh) FaceRefCoords(f, c int, s float64) (xref [2]float64) {
	m.buildFaces()
	var (
		side int
	)
	if m.faceCells[f][0] == c {
		side = 0
	} else if m.faceCells[f][1] == c {
		side = 1
	} else {
		panic(fmt.Errorf("cell %d is not adjacent to face %d", c, f))
	}
	lf := m.faceLocal[f][side]
	cell := m.Cells[c]
	// the cell traverses the face p->q; the global parameterization runs
	// low node -> high node
	p := cell[localFaceNodes[lf][0]]
	if p != m.faces[f][0] {
		s = 1 - s
	}
	a, b := refFaceEnds[lf][0], refFaceEnds[lf][1]
	xref[0] = a[0] + s*(b[0]-a[0])
	xref[1] = a[1] + s*(b[1]-a[1])
	return
}

// FacePhys maps the face parameter s to physical coordinates.
func (m *Mesh) FacePhys(f int, s float64) (x [2]float64) {
	m.buildFaces()
	nodes := m.faces[f]
	va, vb := m.Verts[nodes[0]], m.Verts[nodes[1]]
	x[0] = va[0] + s*(vb[0]-va[0])
	x[1] = va[1] + s*(vb[1]-va[1])
	return
}
