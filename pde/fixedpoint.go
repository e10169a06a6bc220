package pde

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/linsolve"
	"github.com/notargets/gofea/utils"
)

// Status reports the outcome of an iterative solve. Failure to converge is
// an expected outcome of nonlinear iteration, so it is a field here, not an
// error; errors signal broken systems.
type Status struct {
	Converged  bool
	Iterations int
	Residual   float64
}

func (st Status) String() string {
	if st.Converged {
		return fmt.Sprintf("converged in %d iterations, residual %.3e", st.Iterations, st.Residual)
	}
	return fmt.Sprintf("no convergence after %d iterations, residual %.3e", st.Iterations, st.Residual)
}

// FixedPointSolver iterates u <- solve(system(u)) until the update is small.
// Picard terms relinearize through their fixed slots, Newton terms through
// their assembled Jacobians; both look the same from here. Anderson mixing
// over the iterate history accelerates slowly contracting problems.
type FixedPointSolver struct {
	Linear        linsolve.Solver
	Tol           float64 // max norm of the relative update, default 1.e-10
	MaxIterations int     // default 50
	AndersonDepth int     // history depth, zero disables mixing
}

func (fp *FixedPointSolver) tol() float64 {
	if fp.Tol == 0 {
		return 1.e-10
	}
	return fp.Tol
}

func (fp *FixedPointSolver) maxIter() int {
	if fp.MaxIterations == 0 {
		return 50
	}
	return fp.MaxIterations
}

func (fp *FixedPointSolver) linear() linsolve.Solver {
	if fp.Linear == nil {
		return linsolve.DenseLU{}
	}
	return fp.Linear
}

// Solve iterates the system at time t starting from the current content of
// s.U, which it updates in place.
func (fp *FixedPointSolver) Solve(s *System, t float64) (st Status, err error) {
	var (
		mix  = newAnderson(fp.AndersonDepth, len(s.U.Data))
		prev = make([]float64, len(s.U.Data))
	)
	for it := 0; it < fp.maxIter(); it++ {
		if err = s.Refresh(t); err != nil {
			return
		}
		x, serr := fp.linear().Solve(s.combined.Flush(), s.rhs.Data)
		if serr != nil {
			err = fmt.Errorf("iteration %d: %w", it, serr)
			return
		}
		copy(prev, s.U.Data)
		mix.next(s.U.Data, prev, x)

		st.Iterations = it + 1
		st.Residual = relativeUpdate(s.U.Data, prev)
		if st.Residual < fp.tol() {
			st.Converged = true
			return
		}
	}
	return
}

func relativeUpdate(u, prev []float64) float64 {
	var du, scale float64
	for i, v := range u {
		d := v - prev[i]
		if d < 0 {
			d = -d
		}
		if d > du {
			du = d
		}
		a := v
		if a < 0 {
			a = -a
		}
		if a > scale {
			scale = a
		}
	}
	if scale < 1 {
		scale = 1
	}
	return du / scale
}

// anderson keeps the recent fixed point map outputs and residuals and
// extrapolates the next iterate by a least squares combination.
type anderson struct {
	depth int
	n     int
	dG    [][]float64 // differences of map outputs
	dF    [][]float64 // differences of residuals
	g0    []float64   // previous map output
	f0    []float64   // previous residual
	have  bool
}

func newAnderson(depth, n int) *anderson {
	return &anderson{depth: depth, n: n, g0: make([]float64, n), f0: make([]float64, n)}
}

// next writes the accelerated iterate into u. g is the raw fixed point map
// output at prev.
func (an *anderson) next(u, prev, g []float64) {
	if an.depth == 0 {
		copy(u, g)
		return
	}
	f := make([]float64, an.n)
	for i := range f {
		f[i] = g[i] - prev[i]
	}
	if an.have {
		dg := make([]float64, an.n)
		df := make([]float64, an.n)
		for i := range dg {
			dg[i] = g[i] - an.g0[i]
			df[i] = f[i] - an.f0[i]
		}
		an.dG = append(an.dG, dg)
		an.dF = append(an.dF, df)
		if len(an.dG) > an.depth {
			an.dG = an.dG[1:]
			an.dF = an.dF[1:]
		}
	}
	copy(an.g0, g)
	copy(an.f0, f)
	an.have = true

	m := len(an.dF)
	if m == 0 {
		copy(u, g)
		return
	}
	var (
		A     = mat.NewDense(an.n, m, nil)
		b     = mat.NewVecDense(an.n, f)
		gamma = mat.NewVecDense(m, nil)
	)
	for j, col := range an.dF {
		A.SetCol(j, col)
	}
	if err := gamma.SolveVec(A, b); err != nil {
		if _, cond := err.(mat.Condition); !cond {
			// degenerate history, fall back to the plain iterate
			copy(u, g)
			return
		}
	}
	copy(u, g)
	for j, col := range an.dG {
		utils.VecAddScaled(u, -gamma.AtVec(j), col)
	}
}
