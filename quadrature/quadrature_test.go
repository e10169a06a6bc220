package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactnessLine(t *testing.T) {
	for order := 0; order <= 9; order++ {
		q := ForGeometry(Line, order)
		assert.True(t, q.Order >= order)
		for a := 0; a <= order; a++ {
			var sum float64
			for k := 0; k < q.NPoints(); k++ {
				sum += q.Weights.AtVec(k) * math.Pow(q.Points.At(k, 0), float64(a))
			}
			exact := 1. / float64(a+1)
			assert.InDelta(t, exact, sum, 1.e-13, "order %d monomial x^%d", order, a)
		}
	}
}

func TestExactnessTriangle(t *testing.T) {
	for order := 0; order <= 8; order++ {
		q := ForGeometry(Triangle, order)
		assert.InDelta(t, 0.5, q.Weights.Sum(), 1.e-13)
		for a := 0; a <= order; a++ {
			for b := 0; a+b <= order; b++ {
				var sum float64
				for k := 0; k < q.NPoints(); k++ {
					x, y := q.Points.At(k, 0), q.Points.At(k, 1)
					sum += q.Weights.AtVec(k) * math.Pow(x, float64(a)) * math.Pow(y, float64(b))
				}
				exact := factorial(a) * factorial(b) / factorial(a+b+2)
				assert.InDelta(t, exact, sum, 1.e-13, "order %d monomial x^%d y^%d", order, a, b)
			}
		}
	}
}

func TestExactnessQuad(t *testing.T) {
	q := ForGeometry(Quad, 5)
	for a := 0; a <= 5; a++ {
		for b := 0; b <= 5; b++ {
			var sum float64
			for k := 0; k < q.NPoints(); k++ {
				x, y := q.Points.At(k, 0), q.Points.At(k, 1)
				sum += q.Weights.AtVec(k) * math.Pow(x, float64(a)) * math.Pow(y, float64(b))
			}
			exact := 1. / float64((a+1)*(b+1))
			assert.InDelta(t, exact, sum, 1.e-13)
		}
	}
}

func TestExactnessTet(t *testing.T) {
	for order := 0; order <= 5; order++ {
		q := ForGeometry(Tet, order)
		assert.InDelta(t, 1./6., q.Weights.Sum(), 1.e-13)
		for a := 0; a <= order; a++ {
			for b := 0; a+b <= order; b++ {
				for c := 0; a+b+c <= order; c++ {
					var sum float64
					for k := 0; k < q.NPoints(); k++ {
						x, y, z := q.Points.At(k, 0), q.Points.At(k, 1), q.Points.At(k, 2)
						sum += q.Weights.AtVec(k) *
							math.Pow(x, float64(a)) * math.Pow(y, float64(b)) * math.Pow(z, float64(c))
					}
					exact := factorial(a) * factorial(b) * factorial(c) / factorial(a+b+c+3)
					assert.InDelta(t, exact, sum, 1.e-13)
				}
			}
		}
	}
}

// Two-point Gauss-Jacobi with the (1-x) weight integrates cubics exactly:
// int_{-1}^{1} (1-x) x^a dx. The rule's own weight carries the (1-x) factor.
func TestJacobiGQWeightMoments(t *testing.T) {
	X, W := JacobiGQ(1, 0, 1)
	for a := 0; a <= 3; a++ {
		var sum float64
		for k := 0; k < 2; k++ {
			sum += W.AtVec(k) * math.Pow(X.AtVec(k), float64(a))
		}
		sgn := math.Pow(-1, float64(a))
		exact := (1+sgn)/float64(a+1) - (1-sgn)/float64(a+2)
		assert.InDelta(t, exact, sum, 1.e-14, "moment x^%d", a)
	}
}

func TestRuleCacheReuse(t *testing.T) {
	q1 := ForGeometry(Triangle, 4)
	q2 := ForGeometry(Triangle, 4)
	assert.True(t, q1 == q2)
}

func factorial(n int) (f float64) {
	f = 1
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return
}
