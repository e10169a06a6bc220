package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DOK wraps a dictionary-of-keys sparse matrix used to accumulate global
// system entries. Writes land in the DOK; Flush materializes a CSR snapshot.
// Reading the CSR while writes are pending is a bug, so the wrapper tracks a
// dirty flag and panics instead of serving stale data.
type DOK struct {
	M     *sparse.DOK
	csr   *sparse.CSR
	dirty bool
}

func NewDOK(nr, nc int) (R *DOK) {
	R = &DOK{
		M:     sparse.NewDOK(nr, nc),
		dirty: true,
	}
	return
}

func (m *DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m *DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m *DOK) T() mat.Matrix      { return m.M.T() }

func (m *DOK) Set(i, j int, val float64) {
	m.dirty = true
	m.M.Set(i, j, val)
}

func (m *DOK) Add(i, j int, val float64) {
	m.dirty = true
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m *DOK) Zero() {
	m.dirty = true
	nr, nc := m.M.Dims()
	m.M = sparse.NewDOK(nr, nc)
	m.csr = nil
}

// Flush converts pending writes into the CSR snapshot returned by CSR().
func (m *DOK) Flush() *sparse.CSR {
	if m.dirty || m.csr == nil {
		m.csr = m.M.ToCSR()
		m.dirty = false
	}
	return m.csr
}

// CSR returns the last flushed snapshot. Panics if writes are pending.
func (m *DOK) CSR() *sparse.CSR {
	if m.dirty || m.csr == nil {
		panic(fmt.Errorf("sparse matrix read before Flush: %d pending", m.M.NNZ()))
	}
	return m.csr
}

// SparseMulVec computes r = A*x for any sparse matrix exposing DoNonZero.
func SparseMulVec(A *sparse.CSR, x []float64) (r []float64) {
	var (
		nr, nc = A.Dims()
	)
	if len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in SparseMulVec: nc = %d, len(x) = %d", nc, len(x)))
	}
	r = make([]float64, nr)
	A.DoNonZero(func(i, j int, v float64) {
		r[i] += v * x[j]
	})
	return
}
