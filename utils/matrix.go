package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	M *mat.Dense
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v", nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{m}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }
func (m Matrix) Data() []float64           { return m.M.RawMatrix().Data }

func (m Matrix) IsEmpty() bool { return m.M == nil }

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) Add(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m Matrix) Zero() Matrix { // Changes receiver
	data := m.M.RawMatrix().Data
	for i := range data {
		data[i] = 0
	}
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	m.M.Scale(a, m.M)
	return m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.M.RawMatrix().Data
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(j, i, m.M.At(i, j))
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		_, ncA = A.M.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return
}

func (m Matrix) MulVec(v []float64) (r []float64) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	if len(v) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: nc = %d, len(v) = %d", nc, len(v)))
	}
	r = make([]float64, nr)
	for i := 0; i < nr; i++ {
		var sum float64
		row := m.M.RawRowView(i)
		for j, val := range row {
			sum += val * v[j]
		}
		r[i] = sum
	}
	return
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	m.M.SetRow(i, data)
	return m
}

func (m Matrix) Row(i int) []float64 { return m.M.RawRowView(i) }

// MaxAbsDiff returns the largest absolute elementwise difference to A.
func (m Matrix) MaxAbsDiff(A Matrix) (d float64) {
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			if v := math.Abs(m.At(i, j) - A.At(i, j)); v > d {
				d = v
			}
		}
	}
	return
}

// LUSolve solves m * x = b for a square m using a dense LU factorization.
func (m Matrix) LUSolve(b []float64) (x []float64, err error) {
	var (
		nr, nc = m.Dims()
		lu     mat.LU
	)
	if nr != nc || nr != len(b) {
		err = fmt.Errorf("LUSolve needs a square system: nr,nc = %v,%v, len(b) = %v", nr, nc, len(b))
		return
	}
	lu.Factorize(m.M)
	xv := mat.NewVecDense(nr, nil)
	if err = lu.SolveVecTo(xv, false, mat.NewVecDense(nr, b)); err != nil {
		// ill conditioning is expected with penalty enforced constraints,
		// the factorization still produces the solution
		if _, cond := err.(mat.Condition); !cond {
			return
		}
		err = nil
	}
	x = xv.RawVector().Data
	return
}

func (m Matrix) Print(msgO ...string) {
	if len(msgO) != 0 {
		fmt.Printf("%s = \n", msgO[0])
	}
	fmt.Printf("%v\n", mat.Formatted(m.M, mat.Squeeze()))
}
