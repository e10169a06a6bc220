package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type Vector struct {
	V *mat.VecDense
}

func NewVector(n int, dataO ...[]float64) (R Vector) {
	var v *mat.VecDense
	if len(dataO) != 0 {
		if len(dataO[0]) != n {
			err := fmt.Errorf("mismatch in allocation: NewVector n = %v, len(data[0]) = %v", n, len(dataO[0]))
			panic(err)
		}
		v = mat.NewVecDense(n, dataO[0])
	} else {
		v = mat.NewVecDense(n, make([]float64, n))
	}
	R = Vector{v}
	return
}

func (v Vector) Len() int              { return v.V.Len() }
func (v Vector) AtVec(i int) float64   { return v.V.AtVec(i) }
func (v Vector) RawData() []float64    { return v.V.RawVector().Data }
func (v Vector) SetVec(i int, val float64) Vector {
	v.V.SetVec(i, val)
	return v
}

func (v Vector) Set(val float64) Vector { // Changes receiver
	data := v.RawData()
	for i := range data {
		data[i] = val
	}
	return v
}

func (v Vector) Scale(a float64) Vector { // Changes receiver
	v.V.ScaleVec(a, v.V)
	return v
}

func (v Vector) Copy() (R Vector) {
	data := make([]float64, v.Len())
	copy(data, v.RawData())
	R = NewVector(v.Len(), data)
	return
}

func (v Vector) Sum() (s float64) {
	for _, val := range v.RawData() {
		s += val
	}
	return
}

func (v Vector) Dot(a Vector) (s float64) {
	return mat.Dot(v.V, a.V)
}

func (v Vector) Norm2() (s float64) {
	return mat.Norm(v.V, 2)
}

// VecNorm2 is the Euclidean norm of a bare float slice.
func VecNorm2(x []float64) (s float64) {
	for _, val := range x {
		s += val * val
	}
	s = math.Sqrt(s)
	return
}

// VecMaxAbsDiff returns the largest absolute elementwise difference of a and b.
func VecMaxAbsDiff(a, b []float64) (d float64) {
	if len(a) != len(b) {
		panic(fmt.Errorf("length mismatch: len(a) = %v, len(b) = %v", len(a), len(b)))
	}
	for i := range a {
		if v := math.Abs(a[i] - b[i]); v > d {
			d = v
		}
	}
	return
}

// VecAddScaled computes a += scale * b in place.
func VecAddScaled(a []float64, scale float64, b []float64) {
	if len(a) != len(b) {
		panic(fmt.Errorf("length mismatch: len(a) = %v, len(b) = %v", len(a), len(b)))
	}
	for i := range a {
		a[i] += scale * b[i]
	}
}

func ConstArray(val float64, n int) (a []float64) {
	a = make([]float64, n)
	for i := range a {
		a[i] = val
	}
	return
}
