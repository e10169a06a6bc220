// Package linsolve provides the linear solvers backing the fixed point and
// time stepping drivers: a dense LU factorization for small systems and a
// Jacobi preconditioned BiCGSTAB iteration for large sparse ones.
package linsolve

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"

	"github.com/notargets/gofea/utils"
)

// Solver solves A x = b for one right hand side.
type Solver interface {
	Solve(A *sparse.CSR, b []float64) (x []float64, err error)
}

// DenseLU densifies the system and factorizes it. Robust for the indefinite
// saddle point systems penalty constraints produce, at cubic cost.
type DenseLU struct{}

func (DenseLU) Solve(A *sparse.CSR, b []float64) (x []float64, err error) {
	nr, nc := A.Dims()
	if nr != nc || nr != len(b) {
		err = fmt.Errorf("dense LU: %dx%d system with %d rhs entries", nr, nc, len(b))
		return
	}
	D := utils.NewMatrix(nr, nc)
	A.DoNonZero(func(i, j int, v float64) {
		D.Set(i, j, v)
	})
	return D.LUSolve(b)
}

// BiCGSTAB is a Jacobi preconditioned stabilized biconjugate gradient
// iteration. Handles the nonsymmetric systems convective terms and
// transposed constraint blocks produce.
type BiCGSTAB struct {
	Tol     float64 // relative residual target, default 1.e-10
	MaxIter int     // default 4 times the system size
}

func (s BiCGSTAB) Solve(A *sparse.CSR, b []float64) (x []float64, err error) {
	var (
		n      = len(b)
		tol    = s.Tol
		maxIt  = s.MaxIter
		diag   = make([]float64, n)
		normB  = utils.VecNorm2(b)
	)
	if tol == 0 {
		tol = 1.e-10
	}
	if maxIt == 0 {
		maxIt = 4 * n
	}
	if nr, nc := A.Dims(); nr != n || nc != n {
		err = fmt.Errorf("bicgstab: %dx%d system with %d rhs entries", nr, nc, n)
		return
	}
	for i := range diag {
		diag[i] = 1
	}
	A.DoNonZero(func(i, j int, v float64) {
		if i == j && v != 0 {
			diag[i] = v
		}
	})
	prec := func(dst, v []float64) {
		for i := range dst {
			dst[i] = v[i] / diag[i]
		}
	}

	x = make([]float64, n)
	if normB == 0 {
		return
	}
	var (
		r     = append([]float64{}, b...) // r = b - A*0
		rHat  = append([]float64{}, r...)
		p     = make([]float64, n)
		ph    = make([]float64, n)
		sv    = make([]float64, n)
		sh    = make([]float64, n)
		v     []float64
		tvec  []float64
		rho   = 1.0
		alpha = 1.0
		omega = 1.0
	)
	for it := 0; it < maxIt; it++ {
		rhoNew := dot(rHat, r)
		if rhoNew == 0 {
			break
		}
		if it == 0 {
			copy(p, r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
		}
		rho = rhoNew
		prec(ph, p)
		v = utils.SparseMulVec(A, ph)
		alpha = rho / dot(rHat, v)
		for i := range sv {
			sv[i] = r[i] - alpha*v[i]
		}
		if utils.VecNorm2(sv)/normB < tol {
			utils.VecAddScaled(x, alpha, ph)
			return
		}
		prec(sh, sv)
		tvec = utils.SparseMulVec(A, sh)
		tt := dot(tvec, tvec)
		if tt == 0 {
			err = fmt.Errorf("bicgstab breakdown at iteration %d", it)
			return
		}
		omega = dot(tvec, sv) / tt
		for i := range x {
			x[i] += alpha*ph[i] + omega*sh[i]
		}
		for i := range r {
			r[i] = sv[i] - omega*tvec[i]
		}
		if utils.VecNorm2(r)/normB < tol {
			return
		}
		if omega == 0 || math.IsNaN(omega) {
			err = fmt.Errorf("bicgstab stagnated at iteration %d", it)
			return
		}
	}
	err = fmt.Errorf("bicgstab: no convergence within %d iterations", maxIt)
	return
}

func dot(a, b []float64) (s float64) {
	for i, av := range a {
		s += av * b[i]
	}
	return
}
