// Package quadrature supplies Gauss-type integration rules on the reference
// element shapes used for assembly: the unit line, triangle, quad and tet.
// Simplex rules are conical products of Gauss-Jacobi line rules.
package quadrature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/utils"
)

type Geometry uint8

const (
	Line Geometry = iota
	Triangle
	Quad
	Tet
)

func (g Geometry) String() string {
	switch g {
	case Line:
		return "Line"
	case Triangle:
		return "Triangle"
	case Quad:
		return "Quad"
	case Tet:
		return "Tet"
	}
	return fmt.Sprintf("Geometry(%d)", g)
}

func (g Geometry) Dim() int {
	switch g {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	case Tet:
		return 3
	}
	panic("unknown geometry")
}

// Volume is the measure of the reference element.
func (g Geometry) Volume() float64 {
	switch g {
	case Line, Quad:
		return 1
	case Triangle:
		return 0.5
	case Tet:
		return 1. / 6.
	}
	panic("unknown geometry")
}

// Rule holds quadrature points in reference coordinates, one point per row,
// and the matching weights. Weights sum to the reference element volume.
type Rule struct {
	Geometry Geometry
	Order    int          // every polynomial of total degree <= Order integrates exactly
	Points   utils.Matrix // np x dim
	Weights  utils.Vector // np
}

func (q *Rule) NPoints() int { return q.Weights.Len() }

var ruleCache = make(map[Geometry]map[int]*Rule)

// ForGeometry returns the cached rule of exactness >= order on geom.
func ForGeometry(geom Geometry, order int) (q *Rule) {
	if order < 0 {
		order = 0
	}
	if byOrder, ok := ruleCache[geom]; ok {
		if q, ok = byOrder[order]; ok {
			return
		}
	} else {
		ruleCache[geom] = make(map[int]*Rule)
	}
	q = buildRule(geom, order)
	ruleCache[geom][order] = q
	return
}

func buildRule(geom Geometry, order int) (q *Rule) {
	var (
		n = order/2 + 1 // Gauss: n points exact through degree 2n-1
	)
	switch geom {
	case Line:
		x, w := gaussUnit(n)
		q = &Rule{Line, 2*n - 1, pointsMatrix(1, x), utils.NewVector(n, w)}
	case Quad:
		x, w := gaussUnit(n)
		var (
			pts = utils.NewMatrix(n*n, 2)
			wts = utils.NewVector(n * n)
		)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				k := i + j*n
				pts.Set(k, 0, x[i])
				pts.Set(k, 1, x[j])
				wts.SetVec(k, w[i]*w[j])
			}
		}
		q = &Rule{Quad, 2*n - 1, pts, wts}
	case Triangle:
		q = conicalTriangle(n)
	case Tet:
		q = conicalTet(n)
	default:
		panic(fmt.Errorf("no quadrature rule for geometry %v", geom))
	}
	return
}

// conicalTriangle collapses the triangle onto the unit square: the second
// direction carries the (1-y) area factor as a Jacobi weight.
func conicalTriangle(n int) (q *Rule) {
	var (
		xu, wu = gaussUnit(n)
		tv, wv = JacobiGQ(1, 0, n-1)
		pts    = utils.NewMatrix(n*n, 2)
		wts    = utils.NewVector(n * n)
	)
	for j := 0; j < n; j++ {
		y := 0.5 * (1 + tv.AtVec(j))
		wy := wv.AtVec(j) / 4
		for i := 0; i < n; i++ {
			k := i + j*n
			pts.Set(k, 0, xu[i]*(1-y))
			pts.Set(k, 1, y)
			wts.SetVec(k, wu[i]*wy)
		}
	}
	q = &Rule{Triangle, 2*n - 1, pts, wts}
	return
}

func conicalTet(n int) (q *Rule) {
	var (
		xu, wu = gaussUnit(n)
		tv, wv = JacobiGQ(1, 0, n-1)
		tz, wz = JacobiGQ(2, 0, n-1)
		np     = n * n * n
		pts    = utils.NewMatrix(np, 3)
		wts    = utils.NewVector(np)
	)
	for k := 0; k < n; k++ {
		z := 0.5 * (1 + tz.AtVec(k))
		wzk := wz.AtVec(k) / 8
		for j := 0; j < n; j++ {
			v := 0.5 * (1 + tv.AtVec(j))
			wvj := wv.AtVec(j) / 4
			y := v * (1 - z)
			for i := 0; i < n; i++ {
				p := i + n*(j+n*k)
				pts.Set(p, 0, xu[i]*(1-y-z))
				pts.Set(p, 1, y)
				pts.Set(p, 2, z)
				wts.SetVec(p, wu[i]*wvj*wzk)
			}
		}
	}
	q = &Rule{Tet, 2*n - 1, pts, wts}
	return
}

// gaussUnit returns the n-point Gauss-Legendre rule shifted to [0,1],
// weights summing to 1.
func gaussUnit(n int) (x, w []float64) {
	X, W := JacobiGQ(0, 0, n-1)
	x = make([]float64, n)
	w = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 0.5 * (1 + X.AtVec(i))
		w[i] = 0.5 * W.AtVec(i)
	}
	return
}

// JacobiGQ computes the N+1 point Gauss quadrature for the Jacobi weight
// (1-x)^alpha (1+x)^beta on [-1,1] via the Golub-Welsch eigenvalue method.
func JacobiGQ(alpha, beta float64, N int) (X, W utils.Vector) {
	var (
		x, w       []float64
		fac        float64
		h1, d0, d1 []float64
	)
	if N == 0 {
		x = []float64{-(alpha - beta) / (alpha + beta + 2.)}
		w = []float64{gamma0(alpha, beta)}
		return utils.NewVector(len(x), x), utils.NewVector(len(w), w)
	}

	h1 = make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal of the Jacobi matrix, a_n = (beta^2-alpha^2)/(h1*(h1+2))
	d0 = make([]float64, N+1)
	fac = -(alpha*alpha - beta*beta)
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.
	}

	// first superdiagonal
	var ip1 float64
	d1 = make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 = float64(i + 1)
		val := h1[i]
		d1[i] = 2. / (val + 2.)
		d1[i] *= math.Sqrt(ip1 * (ip1 + alpha + beta) * (ip1 + alpha) * (ip1 + beta) / ((val + 1.) * (val + 3.)))
	}

	JJ := newSymTriDiagonal(d0, d1)

	var eig mat.EigenSym
	ok := eig.Factorize(JJ, true)
	if !ok {
		panic("eigenvalue decomposition failed")
	}
	x = eig.Values(x)
	X = utils.NewVector(N+1, x)

	VVr := mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(VVr)
	W = utils.NewVector(N + 1)
	for i := 0; i < N+1; i++ {
		v := VVr.At(0, i)
		W.SetVec(i, v*v*gamma0(alpha, beta))
	}
	return
}

func newSymTriDiagonal(d0, d1 []float64) (JJ *mat.SymDense) {
	n := len(d0)
	JJ = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		JJ.SetSym(i, i, d0[i])
		if i < n-1 {
			JJ.SetSym(i, i+1, d1[i])
		}
	}
	return
}

// gamma0 is the total mass of the Jacobi weight on [-1,1].
func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	return math.Pow(2, ab1) / ab1 * math.Gamma(alpha+1) * math.Gamma(beta+1) / math.Gamma(ab1)
}

func pointsMatrix(dim int, x []float64) (R utils.Matrix) {
	R = utils.NewMatrix(len(x), dim)
	for i, val := range x {
		R.Set(i, 0, val)
	}
	return
}
