package actions

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/num/dual"

	"github.com/notargets/gofea/utils"
)

// DualKernel is a nonlinear pointwise kernel written in dual arithmetic so
// that one evaluation yields both the value and a directional derivative.
type DualKernel func(out, in []dual.Number, ctx *EvalContext)

// JacobianOperator is the contract Newton assembly needs from a nonlinear
// pointwise operator: values, and values plus Jacobian, at one quadrature
// point.
type JacobianOperator interface {
	Sizes() (out, in int)
	Dependencies() Deps
	EvalValues(out, in []float64, ctx *EvalContext)
	// EvalJacobian writes the kernel value into val and d(out)/d(in) into J
	// (out x in) in one pass.
	EvalJacobian(val []float64, J utils.Matrix, in []float64, ctx *EvalContext)
}

// UserJacobian wraps a kernel with a hand derived Jacobian.
type UserJacobian struct {
	NOut, NIn int
	Deps      Deps
	Kernel    func(out, in []float64, ctx *EvalContext)
	Jacobian  func(J utils.Matrix, in []float64, ctx *EvalContext)
}

func (o *UserJacobian) Sizes() (int, int)   { return o.NOut, o.NIn }
func (o *UserJacobian) Dependencies() Deps  { return o.Deps }

func (o *UserJacobian) EvalValues(out, in []float64, ctx *EvalContext) {
	o.Kernel(out, in, ctx)
}

func (o *UserJacobian) EvalJacobian(val []float64, J utils.Matrix, in []float64, ctx *EvalContext) {
	o.Kernel(val, in, ctx)
	o.Jacobian(J, in, ctx)
}

// ADJacobian differentiates a dual kernel by forward mode. Dense mode seeds
// one input column per pass; sparse mode probes the sparsity pattern once at
// construction, colors the column intersection graph, and seeds all columns
// of a color together, cutting kernel evaluations from NIn to the number of
// colors. Both modes produce identical Jacobians on the same kernel.
type ADJacobian struct {
	NOut, NIn int
	Deps      Deps
	Kernel    DualKernel

	groups  [][]int  // column groups by color; nil in dense mode
	pattern [][]bool // nonzero mask, sparse mode only
	din     []dual.Number
	dout    []dual.Number
}

// NewADJacobian builds a dense forward-mode differentiation context.
func NewADJacobian(nOut, nIn int, deps Deps, kernel DualKernel) (o *ADJacobian) {
	o = &ADJacobian{
		NOut:   nOut,
		NIn:    nIn,
		Deps:   deps,
		Kernel: kernel,
		din:    make([]dual.Number, nIn),
		dout:   make([]dual.Number, nOut),
	}
	return
}

// NewSparseADJacobian builds a colored sparse differentiation context. The
// sparsity pattern is detected by probing the kernel at a few sample inputs;
// a structurally zero entry that is nonzero only on a measure-zero input set
// could in principle slip through, so probes include random points.
func NewSparseADJacobian(nOut, nIn int, deps Deps, kernel DualKernel) (o *ADJacobian) {
	o = NewADJacobian(nOut, nIn, deps, kernel)
	o.pattern = o.detectPattern()
	o.groups = colorColumns(o.pattern, nIn)
	return
}

func (o *ADJacobian) Sizes() (int, int)  { return o.NOut, o.NIn }
func (o *ADJacobian) Dependencies() Deps { return o.Deps }

// Colors reports the number of column groups (NIn in dense mode).
func (o *ADJacobian) Colors() int {
	if o.groups == nil {
		return o.NIn
	}
	return len(o.groups)
}

func (o *ADJacobian) EvalValues(out, in []float64, ctx *EvalContext) {
	for j, v := range in {
		o.din[j] = dual.Number{Real: v}
	}
	o.Kernel(o.dout, o.din, ctx)
	for i := range out {
		out[i] = o.dout[i].Real
	}
}

func (o *ADJacobian) EvalJacobian(val []float64, J utils.Matrix, in []float64, ctx *EvalContext) {
	if o.groups == nil {
		o.evalDense(val, J, in, ctx)
		return
	}
	for j, v := range in {
		o.din[j] = dual.Number{Real: v}
	}
	for _, group := range o.groups {
		for _, j := range group {
			o.din[j].Emag = 1
		}
		o.Kernel(o.dout, o.din, ctx)
		for i := 0; i < o.NOut; i++ {
			for _, j := range group {
				if o.pattern[i][j] {
					J.Set(i, j, o.dout[i].Emag)
				}
			}
		}
		for _, j := range group {
			o.din[j].Emag = 0
		}
	}
	for i := 0; i < o.NOut; i++ {
		val[i] = o.dout[i].Real
	}
	// structural zeros
	for i := 0; i < o.NOut; i++ {
		for j := 0; j < o.NIn; j++ {
			if !o.pattern[i][j] {
				J.Set(i, j, 0)
			}
		}
	}
}

func (o *ADJacobian) evalDense(val []float64, J utils.Matrix, in []float64, ctx *EvalContext) {
	for j, v := range in {
		o.din[j] = dual.Number{Real: v}
	}
	for j := 0; j < o.NIn; j++ {
		o.din[j].Emag = 1
		o.Kernel(o.dout, o.din, ctx)
		for i := 0; i < o.NOut; i++ {
			J.Set(i, j, o.dout[i].Emag)
		}
		o.din[j].Emag = 0
	}
	if o.NIn == 0 {
		o.Kernel(o.dout, o.din, ctx)
	}
	for i := 0; i < o.NOut; i++ {
		val[i] = o.dout[i].Real
	}
}

// detectPattern probes d(out)/d(in) column by column at sample inputs.
func (o *ADJacobian) detectPattern() (pattern [][]bool) {
	var (
		rng    = rand.New(rand.NewSource(1))
		probes = [][]float64{utils.ConstArray(1, o.NIn), utils.ConstArray(-0.5, o.NIn)}
	)
	for p := 0; p < 3; p++ {
		probe := make([]float64, o.NIn)
		for j := range probe {
			probe[j] = 2*rng.Float64() - 1
		}
		probes = append(probes, probe)
	}
	pattern = make([][]bool, o.NOut)
	for i := range pattern {
		pattern[i] = make([]bool, o.NIn)
	}
	ctx := &EvalContext{Xref: []float64{0, 0}}
	for _, probe := range probes {
		for j, v := range probe {
			o.din[j] = dual.Number{Real: v}
		}
		for j := 0; j < o.NIn; j++ {
			o.din[j].Emag = 1
			o.Kernel(o.dout, o.din, ctx)
			for i := 0; i < o.NOut; i++ {
				if o.dout[i].Emag != 0 {
					pattern[i][j] = true
				}
			}
			o.din[j].Emag = 0
		}
	}
	return
}

// colorColumns greedily colors the column intersection graph: two columns
// conflict when some row depends on both.
func colorColumns(pattern [][]bool, nIn int) (groups [][]int) {
	g := simple.NewUndirectedGraph()
	for j := 0; j < nIn; j++ {
		g.AddNode(simple.Node(j))
	}
	for _, row := range pattern {
		for a := 0; a < nIn; a++ {
			if !row[a] {
				continue
			}
			for b := a + 1; b < nIn; b++ {
				if row[b] {
					g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
				}
			}
		}
	}
	k, colors, err := coloring.WelshPowell(g, nil)
	if err != nil {
		// only possible with a non-nil partial coloring
		panic(err)
	}
	groups = make([][]int, k)
	for j := 0; j < nIn; j++ {
		c, ok := colors[int64(j)]
		if !ok {
			panic(fmt.Errorf("column %d missed by graph coloring", j))
		}
		groups[c] = append(groups[c], j)
	}
	return
}
