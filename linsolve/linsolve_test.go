package linsolve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/utils"
)

// laplace1D builds the standard tridiagonal second difference system.
func laplace1D(n int) *utils.DOK {
	d := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 2)
		if i > 0 {
			d.Set(i, i-1, -1)
		}
		if i < n-1 {
			d.Set(i, i+1, -1)
		}
	}
	return d
}

func TestDenseLUTridiagonal(t *testing.T) {
	var (
		n = 50
		d = laplace1D(n)
		b = utils.ConstArray(1, n)
	)
	x, err := DenseLU{}.Solve(d.Flush(), b)
	require.NoError(t, err)
	r := utils.SparseMulVec(d.CSR(), x)
	assert.InDelta(t, 0.0, utils.VecMaxAbsDiff(r, b), 1.e-10)
}

func TestBiCGSTABMatchesDense(t *testing.T) {
	var (
		n   = 80
		d   = laplace1D(n)
		rng = rand.New(rand.NewSource(7))
		b   = make([]float64, n)
	)
	// off diagonal noise makes the system nonsymmetric
	for k := 0; k < n/2; k++ {
		i, j := rng.Intn(n), rng.Intn(n)
		if i != j {
			d.Add(i, j, 0.1*rng.Float64())
		}
	}
	for i := range b {
		b[i] = rng.NormFloat64()
	}
	A := d.Flush()
	xd, err := DenseLU{}.Solve(A, b)
	require.NoError(t, err)
	xi, err := BiCGSTAB{Tol: 1.e-12}.Solve(A, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, utils.VecMaxAbsDiff(xd, xi), 1.e-7)
}

func TestBiCGSTABZeroRHS(t *testing.T) {
	d := laplace1D(10)
	x, err := BiCGSTAB{}.Solve(d.Flush(), make([]float64, 10))
	require.NoError(t, err)
	for _, v := range x {
		assert.Zero(t, v)
	}
}

func TestSolverDimensionMismatch(t *testing.T) {
	d := laplace1D(4)
	_, err := DenseLU{}.Solve(d.Flush(), make([]float64, 3))
	assert.Error(t, err)
	_, err = BiCGSTAB{}.Solve(d.CSR(), make([]float64, 3))
	assert.Error(t, err)
}
