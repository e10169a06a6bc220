package actions

import "fmt"

// Action combines the operator-applied argument values at one quadrature
// point into the integrand tested against the test function. Pure function
// of its declared dependencies; writes only out.
type Action struct {
	Name  string
	In    int
	Out   int
	Deps  Deps
	apply func(out, in []float64, ctx *EvalContext)
}

func (a *Action) Apply(out, in []float64, ctx *EvalContext) { a.apply(out, in, ctx) }

// NewAction wraps an arbitrary kernel as an action.
func NewAction(name string, out, in int, deps Deps, kernel func(out, in []float64, ctx *EvalContext)) *Action {
	return &Action{Name: name, In: in, Out: out, Deps: deps, apply: kernel}
}

// NoAction passes the n input components through unchanged.
func NoAction(n int) *Action {
	return &Action{
		Name: "NoAction",
		In:   n,
		Out:  n,
		apply: func(out, in []float64, _ *EvalContext) {
			copy(out, in)
		},
	}
}

// MultiplyAction scales the input by a constant factor.
func MultiplyAction(n int, factor float64) *Action {
	return &Action{
		Name: fmt.Sprintf("Multiply(%g)", factor),
		In:   n,
		Out:  n,
		apply: func(out, in []float64, _ *EvalContext) {
			for i, v := range in {
				out[i] = factor * v
			}
		},
	}
}

// CoefficientAction scales the input pointwise by a scalar data function.
func CoefficientAction(n int, coeff *DataFunction) *Action {
	if coeff.NComp != 1 {
		panic(fmt.Errorf("CoefficientAction needs a scalar coefficient, got %d components", coeff.NComp))
	}
	return &Action{
		Name: "Coefficient",
		In:   n,
		Out:  n,
		Deps: coeff.Deps,
		apply: func(out, in []float64, ctx *EvalContext) {
			var buf [1]float64
			coeff.Evaluate(buf[:], ctx)
			for i, v := range in {
				out[i] = buf[0] * v
			}
		},
	}
}

// DataAction emits the values of a data function, ignoring its input. Used
// for source terms and boundary data in linear forms.
func DataAction(f *DataFunction) *Action {
	return &Action{
		Name: "Data",
		In:   0,
		Out:  f.NComp,
		Deps: f.Deps,
		apply: func(out, _ []float64, ctx *EvalContext) {
			f.Evaluate(out, ctx)
		},
	}
}

// MatrixAction applies a constant out x in matrix to the input.
func MatrixAction(name string, a [][]float64) *Action {
	var (
		nOut = len(a)
		nIn  = len(a[0])
	)
	return &Action{
		Name: name,
		In:   nIn,
		Out:  nOut,
		apply: func(out, in []float64, _ *EvalContext) {
			for i := 0; i < nOut; i++ {
				var sum float64
				for j := 0; j < nIn; j++ {
					sum += a[i][j] * in[j]
				}
				out[i] = sum
			}
		},
	}
}
