package actions

// Deps declares which parts of the evaluation context a kernel reads. The
// tag set is fixed at construction and selects the bound closure once, not
// per call.
type Deps uint8

const (
	DepX Deps = 1 << iota
	DepT
	DepItem
	DepXref
)

func (d Deps) Has(flag Deps) bool { return d&flag != 0 }

// DataFunction is a pointwise vector valued function of the declared
// context dependencies, used for coefficients, right hand sides and exact
// solutions. The evaluation closure is bound once at construction.
type DataFunction struct {
	NComp int
	Deps  Deps
	eval  func(out []float64, ctx *EvalContext)
}

func (f *DataFunction) Evaluate(out []float64, ctx *EvalContext) { f.eval(out, ctx) }

// NewConstant returns a data function with no context dependencies. The
// dependency dispatch is bypassed entirely: the closure copies the values.
func NewConstant(vals ...float64) (f *DataFunction) {
	c := make([]float64, len(vals))
	copy(c, vals)
	f = &DataFunction{
		NComp: len(vals),
		eval: func(out []float64, _ *EvalContext) {
			copy(out, c)
		},
	}
	return
}

// NewSpatial binds a kernel of the physical coordinates only.
func NewSpatial(ncomp int, kernel func(out []float64, x [2]float64)) (f *DataFunction) {
	f = &DataFunction{
		NComp: ncomp,
		Deps:  DepX,
		eval: func(out []float64, ctx *EvalContext) {
			kernel(out, ctx.X)
		},
	}
	return
}

// NewSpaceTime binds a kernel of space and time.
func NewSpaceTime(ncomp int, kernel func(out []float64, x [2]float64, t float64)) (f *DataFunction) {
	f = &DataFunction{
		NComp: ncomp,
		Deps:  DepX | DepT,
		eval: func(out []float64, ctx *EvalContext) {
			kernel(out, ctx.X, ctx.T)
		},
	}
	return
}

// NewGeneric accepts a kernel over the full context for dependency
// combinations with no dedicated constructor.
func NewGeneric(ncomp int, deps Deps, kernel func(out []float64, ctx *EvalContext)) (f *DataFunction) {
	f = &DataFunction{NComp: ncomp, Deps: deps, eval: kernel}
	return
}
