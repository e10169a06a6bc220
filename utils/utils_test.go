package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixChaining(t *testing.T) {
	A := NewMatrix(2, 3).Set(0, 0, 1).Set(1, 2, 5).Add(1, 2, 1)
	assert.Equal(t, 1.0, A.At(0, 0))
	assert.Equal(t, 6.0, A.At(1, 2))
	B := A.Copy().Scale(2)
	assert.Equal(t, 12.0, B.At(1, 2))
	assert.Equal(t, 6.0, A.At(1, 2), "Copy must detach storage")
}

func TestMatrixMulAndTranspose(t *testing.T) {
	A := NewMatrix(2, 2, []float64{1, 2, 3, 4})
	B := NewMatrix(2, 2, []float64{5, 6, 7, 8})
	C := A.Mul(B)
	assert.Equal(t, 19.0, C.At(0, 0))
	assert.Equal(t, 50.0, C.At(1, 1))
	At := A.Transpose()
	assert.Equal(t, A.At(0, 1), At.At(1, 0))
}

func TestLUSolveIdentityLike(t *testing.T) {
	A := NewMatrix(3, 3, []float64{2, 0, 0, 0, 3, 0, 0, 0, 4})
	x, err := A.LUSolve([]float64{2, 6, 12})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x[0], 1.e-14)
	assert.InDelta(t, 2.0, x[1], 1.e-14)
	assert.InDelta(t, 3.0, x[2], 1.e-14)
	_, err = A.LUSolve([]float64{1, 2})
	assert.Error(t, err)
}

func TestDOKDirtyFlag(t *testing.T) {
	d := NewDOK(3, 3)
	d.Set(0, 0, 1)
	assert.Panics(t, func() { d.CSR() }, "reading before Flush must panic")
	csr := d.Flush()
	assert.NotPanics(t, func() { d.CSR() })
	assert.Same(t, csr, d.CSR())
	d.Add(1, 1, 2)
	assert.Panics(t, func() { d.CSR() }, "writes make the snapshot stale")
	assert.Equal(t, 2.0, d.Flush().At(1, 1))
}

func TestSparseMulVec(t *testing.T) {
	d := NewDOK(2, 3)
	d.Set(0, 0, 1)
	d.Set(0, 2, 2)
	d.Set(1, 1, 3)
	r := SparseMulVec(d.Flush(), []float64{1, 2, 3})
	assert.Equal(t, []float64{7, 6}, r)
	assert.Panics(t, func() { SparseMulVec(d.CSR(), []float64{1, 2}) })
}

func TestVectorHelpers(t *testing.T) {
	a := []float64{1, 2, 2}
	assert.InDelta(t, 3.0, VecNorm2(a), 1.e-14)
	b := ConstArray(1, 3)
	VecAddScaled(b, 2, a)
	assert.Equal(t, []float64{3, 5, 5}, b)
	assert.InDelta(t, 3.0, VecMaxAbsDiff(a, b), 1.e-14)
}

func TestIndexHelpers(t *testing.T) {
	assert.Len(t, NewIndex(4), 4)
	I := NewRange(2, 6)
	assert.Equal(t, Index{2, 3, 4, 5}, I)
	assert.True(t, I.Contains(3))
	assert.False(t, I.Contains(6))
	assert.Equal(t, 5, I.Max())
}
