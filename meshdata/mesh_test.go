package meshdata

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitSquareCounts(t *testing.T) {
	m := UnitSquare(4)
	assert.Equal(t, 25, m.NVerts())
	assert.Equal(t, 32, m.NCells())
	// Euler: F = E - V + 1 + 1 for a disk-like mesh
	assert.Equal(t, m.NCells()+m.NVerts()-1, m.NFaces())
	assert.Equal(t, 16, m.NBFaces())
}

func TestCellVolumesSumToOne(t *testing.T) {
	m := UnitSquare(3)
	var sum float64
	for c := 0; c < m.NCells(); c++ {
		sum += m.CellVolume(c)
	}
	assert.InDelta(t, 1.0, sum, 1.e-14)
}

func TestFaceNormalsAreUnitAndOutward(t *testing.T) {
	m := UnitSquare(2)
	for f := 0; f < m.NFaces(); f++ {
		n := m.FaceNormal(f)
		assert.InDelta(t, 1.0, math.Hypot(n[0], n[1]), 1.e-14)
		cells := m.FaceCells(f)
		cent := m.CellCentroid(cells[0])
		mid := m.FacePhys(f, 0.5)
		dot := n[0]*(mid[0]-cent[0]) + n[1]*(mid[1]-cent[1])
		assert.True(t, dot > 0, "normal of face %d points into its owner", f)
	}
}

func TestFaceSignsAntisymmetric(t *testing.T) {
	m := UnitSquare(2)
	for f := 0; f < m.NFaces(); f++ {
		cells := m.FaceCells(f)
		assert.Equal(t, 1.0, m.FaceSign(cells[0], f))
		if cells[1] != -1 {
			assert.Equal(t, -1.0, m.FaceSign(cells[1], f))
		}
	}
}

func TestFaceRefCoordsAgreeAcrossCells(t *testing.T) {
	// the same face parameter must land on the same physical point when
	// mapped through either adjacent cell
	m := UnitSquare(2)
	for f := 0; f < m.NFaces(); f++ {
		cells := m.FaceCells(f)
		if cells[1] == -1 {
			continue
		}
		for _, s := range []float64{0, 0.25, 0.5, 0.8, 1} {
			xL := m.RefToPhys(cells[0], refSlice(m.FaceRefCoords(f, cells[0], s)))
			xR := m.RefToPhys(cells[1], refSlice(m.FaceRefCoords(f, cells[1], s)))
			assert.InDelta(t, xL[0], xR[0], 1.e-14)
			assert.InDelta(t, xL[1], xR[1], 1.e-14)
			xF := m.FacePhys(f, s)
			assert.InDelta(t, xF[0], xL[0], 1.e-14)
			assert.InDelta(t, xF[1], xL[1], 1.e-14)
		}
	}
}

func TestRefinePreservesArea(t *testing.T) {
	m := UnitSquare(2)
	r := m.Refine()
	assert.Equal(t, 4*m.NCells(), r.NCells())
	var sum float64
	for c := 0; c < r.NCells(); c++ {
		sum += r.CellVolume(c)
	}
	assert.InDelta(t, 1.0, sum, 1.e-14)
	assert.Equal(t, 2*m.NBFaces(), r.NBFaces())
}

func TestClassifyBoundary(t *testing.T) {
	m := UnitSquare(2)
	m.ClassifyBoundary(func(x [2]float64) int {
		if x[1] < 1.e-12 {
			return 2 // bottom
		}
		return 1
	})
	var nBottom int
	for i := 0; i < m.NBFaces(); i++ {
		if m.BFaceRegion(i) == 2 {
			nBottom++
		}
	}
	assert.Equal(t, 2, nBottom)
	require.ElementsMatch(t, []int{1, 2}, m.Regions(BFaces))
}

func TestDelaunayUnitSquareCloud(t *testing.T) {
	// grid points plus interior jitter, triangulated from scratch
	var (
		pts [][2]float64
		rng = rand.New(rand.NewSource(3))
	)
	for i := 0; i <= 4; i++ {
		for j := 0; j <= 4; j++ {
			pts = append(pts, [2]float64{float64(i) / 4, float64(j) / 4})
		}
	}
	for k := 0; k < 10; k++ {
		pts = append(pts, [2]float64{0.1 + 0.8*rng.Float64(), 0.1 + 0.8*rng.Float64()})
	}
	m := Delaunay(pts)
	require.Greater(t, m.NCells(), 0)
	var area float64
	for c := 0; c < m.NCells(); c++ {
		v := m.CellVolume(c)
		assert.Greater(t, v, 0.0, "cell %d must be positively oriented", c)
		area += v
	}
	assert.InDelta(t, 1.0, area, 1.e-12)
	// Euler formula for a triangulated disk
	assert.Equal(t, m.NVerts()+m.NCells()-1, m.NFaces())
}

func refSlice(x [2]float64) []float64 { return []float64{x[0], x[1]} }
