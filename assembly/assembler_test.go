package assembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/dual"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/utils"
)

func denseOf(M *FEMatrix) (D utils.Matrix) {
	csr := M.Flush()
	n, _ := csr.Dims()
	D = utils.NewMatrix(n, n)
	csr.DoNonZero(func(i, j int, v float64) {
		D.Set(i, j, v)
	})
	return
}

func massAssembler(t *testing.T, sp *fespace.Space, name string) *Assembler {
	p := NewBilinearForm("Mass", functionop.Ident(), functionop.Ident(),
		actions.NoAction(sp.Components()))
	a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{name, name})
	require.NoError(t, err)
	return a
}

func TestMassMatrixP1(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(3)
		sp = fespace.NewSpace(fespace.P1{}, m)
		v  = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		M  = NewFEMatrix(v)
		a  = massAssembler(t, sp, "u")
	)
	require.NoError(t, a.AssembleMatrix(M, nil))
	assert.Equal(t, StateAssembled, a.State())

	D := denseOf(M)
	n := sp.NDofs()
	var total float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += D.At(i, j)
			assert.InDelta(t, D.At(j, i), D.At(i, j), 1.e-14, "symmetry %d %d", i, j)
		}
	}
	// basis functions sum to one, so the entries sum to the domain area
	assert.InDelta(t, 1.0, total, 1.e-13)
}

func TestStiffnessAnnihilatesConstants(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(3)
		sp = fespace.NewSpace(fespace.P1{}, m)
		v  = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		M  = NewFEMatrix(v)
	)
	p := NewBilinearForm("Stiffness", functionop.Grad(), functionop.Grad(),
		actions.NoAction(2))
	a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{"u", "u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleMatrix(M, nil))

	r := utils.SparseMulVec(M.Flush(), utils.ConstArray(1, sp.NDofs()))
	for i, ri := range r {
		assert.InDelta(t, 0.0, ri, 1.e-13, "row %d", i)
	}
}

func TestLoadVectorConstantSource(t *testing.T) {
	var (
		m   = meshdata.UnitSquare(2)
		sp  = fespace.NewSpace(fespace.P2{}, m)
		rhs = NewFEVector([]string{"u"}, []*fespace.Space{sp})
	)
	p := NewLinearForm("Source", functionop.Ident(),
		actions.DataAction(actions.NewConstant(1)))
	a, err := NewAssembler(p, []*fespace.Space{sp}, []string{"u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleVector(rhs, nil))

	var total float64
	for _, v := range rhs.Data {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1.e-13)
}

func TestBoundaryMassPerimeter(t *testing.T) {
	var (
		m   = meshdata.UnitSquare(2)
		sp  = fespace.NewSpace(fespace.P1{}, m)
		rhs = NewFEVector([]string{"u"}, []*fespace.Space{sp})
	)
	p := NewLinearForm("BoundaryOne", functionop.TraceOp(),
		actions.DataAction(actions.NewConstant(1))).OnEntity(meshdata.BFaces)
	a, err := NewAssembler(p, []*fespace.Space{sp}, []string{"u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleVector(rhs, nil))

	var total float64
	for _, v := range rhs.Data {
		total += v
	}
	assert.InDelta(t, 4.0, total, 1.e-13)
}

func TestBestApproximationRecoversLinear(t *testing.T) {
	var (
		m   = meshdata.UnitSquare(3)
		sp  = fespace.NewSpace(fespace.P1{}, m)
		v   = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		M   = NewFEMatrix(v)
		rhs = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		f   = func(x [2]float64) float64 { return 2*x[0] - 3*x[1] + 1 }
	)
	require.NoError(t, massAssembler(t, sp, "u").AssembleMatrix(M, nil))

	src := actions.NewSpatial(1, func(out []float64, x [2]float64) { out[0] = f(x) })
	p := NewLinearForm("Source", functionop.Ident(), actions.DataAction(src)).WithQuadBonus(2)
	a, err := NewAssembler(p, []*fespace.Space{sp}, []string{"u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleVector(rhs, nil))

	// linears lie in the space, so the projection reproduces nodal values
	u, err := denseOf(M).LUSolve(rhs.Data)
	require.NoError(t, err)
	for n, vert := range m.Verts {
		assert.InDelta(t, f(vert), u[n], 1.e-10, "vertex %d", n)
	}
}

func TestNewtonIdentityKernelMatchesMass(t *testing.T) {
	// a linear kernel has zero Newton residual offset and its Jacobian
	// reproduces the plain mass matrix
	var (
		m   = meshdata.UnitSquare(2)
		sp  = fespace.NewSpace(fespace.P1{}, m)
		v   = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		Mn  = NewFEMatrix(v)
		Ml  = NewFEMatrix(v)
		rhs = NewFEVector([]string{"u"}, []*fespace.Space{sp})
	)
	for i := range v.Data {
		v.Data[i] = float64(i%5) - 2
	}
	kernel := actions.NewADJacobian(1, 1, 0, func(out, in []dual.Number, _ *actions.EvalContext) {
		out[0] = in[0]
	})
	p := NewNonlinearForm("IdentityKernel",
		[]functionop.Operator{functionop.Ident()}, functionop.Ident(), kernel)
	a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{"u", "u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleNonlinear(Mn, rhs, v))
	require.NoError(t, massAssembler(t, sp, "u").AssembleMatrix(Ml, nil))

	assert.InDelta(t, 0.0, denseOf(Mn).MaxAbsDiff(denseOf(Ml)), 1.e-13)
	for i, ri := range rhs.Data {
		assert.InDelta(t, 0.0, ri, 1.e-13, "row %d", i)
	}
}

func TestTransposedPartnerBlock(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(2)
		vs = fespace.NewSpace(fespace.Vector{Base: fespace.CR{}}, m)
		ps = fespace.NewSpace(fespace.P0{}, m)
		v  = NewFEVector([]string{"v", "p"}, []*fespace.Space{vs, ps})
		M  = NewFEMatrix(v)
	)
	p := NewBilinearForm("Divergence", functionop.Div(), functionop.Ident(),
		actions.NoAction(1)).AlsoTransposed(-1)
	a, err := NewAssembler(p, []*fespace.Space{vs, ps}, []string{"v", "p"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleMatrix(M, nil))

	var (
		D    = denseOf(M)
		vOff = M.BlockOffset("v")
		pOff = M.BlockOffset("p")
	)
	for i := 0; i < ps.NDofs(); i++ {
		for j := 0; j < vs.NDofs(); j++ {
			assert.InDelta(t, -D.At(pOff+i, vOff+j), D.At(vOff+j, pOff+i), 1.e-14)
		}
	}
}

func TestJumpAnnihilatesContinuousFields(t *testing.T) {
	// a continuous field jumps by zero across every interior face; boundary
	// faces carry the one-sided trace, so the jump energy of the field
	// reduces to its boundary trace energy
	var (
		m  = meshdata.UnitSquare(2)
		sp = fespace.NewSpace(fespace.P1{}, m)
		v  = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		M  = NewFEMatrix(v)
	)
	p := NewBilinearForm("JumpJump", functionop.JumpOp(), functionop.JumpOp(),
		actions.NoAction(1)).OnEntity(meshdata.Faces)
	a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{"u", "u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleMatrix(M, nil))

	u := make([]float64, sp.NDofs())
	sp.Interpolate(func(x [2]float64, out []float64) { out[0] = x[0] }, u)
	r := utils.SparseMulVec(M.Flush(), u)
	var energy float64
	for i, ri := range r {
		energy += u[i] * ri
	}
	// int of x^2 over the unit square boundary: 1/3 + 1/3 bottom and top,
	// 1 on the right edge, 0 on the left
	assert.InDelta(t, 5./3., energy, 1.e-13)
}

func TestAverageFormSumsFaceLengths(t *testing.T) {
	// the average of the partition of unity is one on every face, interior
	// or boundary, so the assembled one-form sums to the total face length
	var (
		m   = meshdata.UnitSquare(2)
		sp  = fespace.NewSpace(fespace.P1{}, m)
		rhs = NewFEVector([]string{"u"}, []*fespace.Space{sp})
	)
	p := NewLinearForm("AvgOne", functionop.AvgOp(),
		actions.DataAction(actions.NewConstant(1))).OnEntity(meshdata.Faces)
	a, err := NewAssembler(p, []*fespace.Space{sp}, []string{"u"})
	require.NoError(t, err)
	require.NoError(t, a.AssembleVector(rhs, nil))

	var total, lengths float64
	for _, ri := range rhs.Data {
		total += ri
	}
	for f := 0; f < m.NFaces(); f++ {
		lengths += m.FaceVolume(f)
	}
	assert.InDelta(t, lengths, total, 1.e-13)
}

func TestCoefficientBilinearForm(t *testing.T) {
	// kappa = 2 doubles the stiffness matrix
	var (
		m  = meshdata.UnitSquare(2)
		sp = fespace.NewSpace(fespace.P1{}, m)
		v  = NewFEVector([]string{"u"}, []*fespace.Space{sp})
		M1 = NewFEMatrix(v)
		M2 = NewFEMatrix(v)
	)
	mk := func(act *actions.Action, M *FEMatrix) {
		p := NewBilinearForm("Stiffness", functionop.Grad(), functionop.Grad(), act)
		a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{"u", "u"})
		require.NoError(t, err)
		require.NoError(t, a.AssembleMatrix(M, nil))
	}
	mk(actions.CoefficientAction(2, actions.NewConstant(2)), M1)
	mk(actions.MultiplyAction(2, 2), M2)
	assert.InDelta(t, 0.0, denseOf(M1).MaxAbsDiff(denseOf(M2)), 1.e-14)
}

func TestPrepareIdempotent(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(2)
		sp = fespace.NewSpace(fespace.P1{}, m)
		a  = massAssembler(t, sp, "u")
	)
	assert.Equal(t, StateUninitialized, a.State())
	require.NoError(t, a.Prepare(false))
	assert.Equal(t, StatePrepared, a.State())
	evs := a.evals
	require.NoError(t, a.Prepare(true))
	assert.Same(t, evs[0], a.evals[0], "skipPrep must reuse the evaluators")
	a.Invalidate()
	assert.Equal(t, StateUninitialized, a.State())
	require.NoError(t, a.Prepare(true))
	assert.NotSame(t, evs[0], a.evals[0])
}

func TestSlotMismatchRejected(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(2)
		sp = fespace.NewSpace(fespace.P1{}, m)
	)
	// scalar gradient has two components, NoAction(1) takes one
	p := NewBilinearForm("Bad", functionop.Grad(), functionop.Ident(), actions.NoAction(1))
	a, err := NewAssembler(p, []*fespace.Space{sp, sp}, []string{"u", "u"})
	require.NoError(t, err)
	assert.Error(t, a.Prepare(false))
}

func TestCurlOfKnownFields(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(3)
		sp = fespace.NewSpace(fespace.Vector{Base: fespace.P1{}}, m)
		u  = make([]float64, sp.NDofs())
	)
	// rigid rotation (-y, x) has curl 2 everywhere
	sp.Interpolate(func(x [2]float64, out []float64) {
		out[0], out[1] = -x[1], x[0]
	}, u)
	c, err := Integral(sp, functionop.Curl(), u, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, c[0], 1.e-13)

	// gradient fields are curl free pointwise
	sp.Interpolate(func(x [2]float64, out []float64) {
		out[0], out[1] = x[0], x[1]
	}, u)
	n, err := L2Norm(sp, functionop.Curl(), u, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, n, 1.e-13)
}

func TestL2ErrorExactField(t *testing.T) {
	var (
		m  = meshdata.UnitSquare(3)
		sp = fespace.NewSpace(fespace.P1{}, m)
		u  = make([]float64, sp.NDofs())
		f  = func(x [2]float64) float64 { return 3*x[0] + x[1] }
	)
	sp.Interpolate(func(x [2]float64, out []float64) { out[0] = f(x) }, u)
	e, err := L2Error(sp, functionop.Ident(), u,
		actions.NewSpatial(1, func(out []float64, x [2]float64) { out[0] = f(x) }), 4, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, e, 1.e-13)

	total, err := Integral(sp, functionop.Ident(), u, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, total[0], 1.e-13) // mean of f is 2 on the unit square
}
