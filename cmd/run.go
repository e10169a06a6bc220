/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/gofea/actions"
	"github.com/notargets/gofea/assembly"
	"github.com/notargets/gofea/fespace"
	"github.com/notargets/gofea/functionop"
	"github.com/notargets/gofea/linsolve"
	"github.com/notargets/gofea/meshdata"
	"github.com/notargets/gofea/pde"
	"github.com/notargets/gofea/probdef"
	"github.com/notargets/gofea/utils"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble and solve a problem described by a YAML file",
	Long:  `Assemble and solve a problem described by a YAML file`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		pfile, err := cmd.Flags().GetString("problemFile")
		if err != nil {
			panic(err)
		}
		prof, _ := cmd.Flags().GetBool("profile")
		if prof {
			defer profile.Start(profile.CPUProfile).Stop()
		}
		pp := processProblem(pfile)
		if meshN, _ := cmd.Flags().GetInt("meshN"); meshN != 0 {
			pp.MeshN = meshN
		}
		pp.Print()
		if err = RunProblem(pp); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func processProblem(path string) (pp *probdef.ProblemParameters) {
	var (
		err error
	)
	if len(path) == 0 {
		err = fmt.Errorf("must supply a problem file (-I, --problemFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Driven Test Case"
Problem: poisson          # or stokes, heat
MeshN: 8
Element: P2               # P1, P2 or CR
Tolerance: 1.e-10
BCs:
  u:
    0:
      Values: [0]
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if pp, err = probdef.ReadFile(path); err != nil {
		panic(err)
	}
	return pp.WithDefaults()
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("problemFile", "I", "", "YAML file describing the problem to solve")
	runCmd.Flags().IntP("meshN", "n", 0, "override the structured mesh resolution from the file")
	runCmd.Flags().BoolP("profile", "p", false, "write a CPU profile while solving")
}

func buildMesh(pp *probdef.ProblemParameters) *meshdata.Mesh {
	m := meshdata.UnitSquare(pp.MeshN)
	for i := 0; i < pp.Refinements; i++ {
		m = m.Refine()
	}
	return m
}

func buildElement(name string) fespace.Element {
	switch name {
	case "P2":
		return fespace.P2{}
	case "CR":
		return fespace.CR{}
	default:
		return fespace.P1{}
	}
}

func buildSolver(pp *probdef.ProblemParameters) *pde.FixedPointSolver {
	fp := &pde.FixedPointSolver{
		Tol:           pp.Tolerance,
		MaxIterations: pp.MaxIterations,
		AndersonDepth: pp.AndersonDepth,
	}
	if pp.Solver == "bicgstab" {
		fp.Linear = linsolve.BiCGSTAB{Tol: pp.Tolerance / 10}
	}
	return fp
}

func addFileBCs(p *pde.PDE, pp *probdef.ProblemParameters, unknown string, ncomp int) error {
	specs, ok := pp.BCs[unknown]
	if !ok {
		return p.AddEssentialBC(&pde.EssentialBC{
			Unknown: unknown,
			Value:   actions.NewConstant(make([]float64, ncomp)...),
		})
	}
	for region, spec := range specs {
		bc := &pde.EssentialBC{
			Unknown: unknown,
			Regions: utils.Index{region},
			Value:   actions.NewConstant(spec.Values...),
		}
		if spec.Method == "bestapprox" {
			bc.Method = pde.BCBestApprox
		}
		if err := p.AddEssentialBC(bc); err != nil {
			return err
		}
	}
	return nil
}

func addFileConstraints(p *pde.PDE, pp *probdef.ProblemParameters) error {
	for unknown, spec := range pp.Constraints {
		for kind, val := range spec {
			switch kind {
			case "Mean":
				p.AddConstraint(&pde.FixedIntegralMean{Unknown: unknown, Mean: val})
			default:
				return fmt.Errorf("Constraints[%s]: unknown constraint %q", unknown, kind)
			}
		}
	}
	return nil
}

// RunProblem dispatches on the problem type from the parameter file.
func RunProblem(pp *probdef.ProblemParameters) error {
	switch pp.Problem {
	case "stokes":
		return runStokes(pp)
	case "heat":
		return runHeat(pp)
	default:
		return runPoisson(pp)
	}
}

func sinsinSource(x [2]float64) float64 {
	return 2 * math.Pi * math.Pi *
		math.Sin(math.Pi*x[0]) * math.Sin(math.Pi*x[1])
}

func runPoisson(pp *probdef.ProblemParameters) error {
	var (
		m  = buildMesh(pp)
		sp = fespace.NewSpace(buildElement(pp.Element), m)
	)
	p, err := pde.NewPDE(pde.Unknown{Name: "u", Space: sp})
	if err != nil {
		return err
	}
	stiff := assembly.NewBilinearForm("Stiffness",
		functionop.Grad(), functionop.Grad(), actions.NoAction(2))
	if err = p.AddOperator(stiff, pde.AssembleInitial, "u", "u"); err != nil {
		return err
	}
	src := actions.NewSpatial(1, func(out []float64, x [2]float64) { out[0] = sinsinSource(x) })
	load := assembly.NewLinearForm("Source", functionop.Ident(),
		actions.DataAction(src)).WithQuadBonus(4)
	if err = p.AddSource(load, pde.AssembleInitial, "u"); err != nil {
		return err
	}
	if err = addFileBCs(p, pp, "u", 1); err != nil {
		return err
	}
	if err = addFileConstraints(p, pp); err != nil {
		return err
	}

	s := p.NewSystem()
	st, err := buildSolver(pp).Solve(s, 0)
	if err != nil {
		return err
	}
	fmt.Printf("poisson: %s\n", st)
	n, err := assembly.L2Norm(sp, functionop.Ident(), s.U.BlockByName("u"), 2*sp.El.Order()+2)
	if err != nil {
		return err
	}
	fmt.Printf("||u||_L2 = %.6e on %d cells, %d dofs\n", n, m.NCells(), sp.NDofs())
	return nil
}

func runStokes(pp *probdef.ProblemParameters) error {
	var (
		m  = buildMesh(pp)
		vs = fespace.NewSpace(fespace.Vector{Base: fespace.CR{}}, m)
		ps = fespace.NewSpace(fespace.P0{}, m)
	)
	p, err := pde.NewPDE(pde.Unknown{Name: "v", Space: vs}, pde.Unknown{Name: "p", Space: ps})
	if err != nil {
		return err
	}
	visc := assembly.NewBilinearForm("Viscous",
		functionop.Grad(), functionop.Grad(), actions.MultiplyAction(4, pp.Viscosity))
	if err = p.AddOperator(visc, pde.AssembleInitial, "v", "v"); err != nil {
		return err
	}
	div := assembly.NewBilinearForm("Continuity",
		functionop.Div(), functionop.Ident(), actions.NoAction(1)).AlsoTransposed(-1)
	if err = p.AddOperator(div, pde.AssembleInitial, "v", "p"); err != nil {
		return err
	}
	force := actions.NewSpatial(2, func(out []float64, x [2]float64) {
		out[0] = 3 * x[0] * x[0]
		out[1] = 3 * x[1] * x[1]
	})
	testOp := functionop.Ident()
	if pp.Reconstruct {
		testOp = functionop.Reconstruct(fespace.RT0{})
	}
	load := assembly.NewLinearForm("BodyForce", testOp,
		actions.DataAction(force)).WithQuadBonus(4)
	if err = p.AddSource(load, pde.AssembleInitial, "v"); err != nil {
		return err
	}
	if err = addFileBCs(p, pp, "v", 2); err != nil {
		return err
	}
	// with Dirichlet velocity the pressure needs one gauge constraint; the
	// file may override the zero mean
	if _, ok := pp.Constraints["p"]; !ok {
		p.AddConstraint(&pde.FixedIntegralMean{Unknown: "p", Mean: 0})
	}
	if err = addFileConstraints(p, pp); err != nil {
		return err
	}

	s := p.NewSystem()
	st, err := buildSolver(pp).Solve(s, 0)
	if err != nil {
		return err
	}
	fmt.Printf("stokes: %s\n", st)
	vn, err := assembly.L2Norm(vs, functionop.Ident(), s.U.BlockByName("v"), 4)
	if err != nil {
		return err
	}
	dn, err := assembly.L2Norm(vs, functionop.Div(), s.U.BlockByName("v"), 4)
	if err != nil {
		return err
	}
	fmt.Printf("||v||_L2 = %.6e  ||div v||_L2 = %.6e\n", vn, dn)
	return nil
}

func runHeat(pp *probdef.ProblemParameters) error {
	var (
		m  = buildMesh(pp)
		sp = fespace.NewSpace(buildElement(pp.Element), m)
	)
	p, err := pde.NewPDE(pde.Unknown{Name: "u", Space: sp})
	if err != nil {
		return err
	}
	if err = p.AddTimeDerivative("u", 1); err != nil {
		return err
	}
	stiff := assembly.NewBilinearForm("Stiffness",
		functionop.Grad(), functionop.Grad(), actions.NoAction(2))
	if err = p.AddOperator(stiff, pde.AssembleInitial, "u", "u"); err != nil {
		return err
	}
	if err = addFileBCs(p, pp, "u", 1); err != nil {
		return err
	}
	if err = addFileConstraints(p, pp); err != nil {
		return err
	}

	s := p.NewSystem()
	sp.Interpolate(func(x [2]float64, out []float64) {
		out[0] = math.Sin(math.Pi*x[0]) * math.Sin(math.Pi*x[1])
	}, s.U.BlockByName("u"))

	scheme := pde.BackwardEuler
	if pp.TimeScheme == "CN" {
		scheme = pde.CrankNicolson
	}
	stepper := &pde.TimeStepper{Scheme: scheme, Dt: pp.TimeStep, Solver: buildSolver(pp)}
	for stepper.Time() < pp.FinalTime-1.e-12 {
		st, serr := stepper.Step(s)
		if serr != nil {
			return serr
		}
		if !st.Converged {
			return fmt.Errorf("step at t = %g: %s", stepper.Time(), st)
		}
	}
	n, err := assembly.L2Norm(sp, functionop.Ident(), s.U.BlockByName("u"), 2*sp.El.Order()+2)
	if err != nil {
		return err
	}
	fmt.Printf("heat: t = %g, ||u||_L2 = %.6e\n", stepper.Time(), n)
	return nil
}
