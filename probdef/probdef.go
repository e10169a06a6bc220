package probdef

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML problem file
type ProblemParameters struct {
	Title         string                        `yaml:"Title"`
	Problem       string                        `yaml:"Problem"` // poisson, stokes, heat
	MeshN         int                           `yaml:"MeshN"`
	Refinements   int                           `yaml:"Refinements"`
	Element       string                        `yaml:"Element"` // P1, P2, CR
	Viscosity     float64                       `yaml:"Viscosity"`
	Reconstruct   bool                          `yaml:"Reconstruct"`
	FinalTime     float64                       `yaml:"FinalTime"`
	TimeStep      float64                       `yaml:"TimeStep"`
	TimeScheme    string                        `yaml:"TimeScheme"` // BE, CN
	MaxIterations int                           `yaml:"MaxIterations"`
	Tolerance     float64                       `yaml:"Tolerance"`
	AndersonDepth int                           `yaml:"AndersonDepth"`
	Solver        string                        `yaml:"Solver"` // dense, bicgstab
	BCs           map[string]map[int]BCSpec     `yaml:"BCs"` // first key is unknown name, second the boundary region
	Constraints   map[string]map[string]float64 `yaml:"Constraints"`
}

// BCSpec is one essential boundary condition entry of the problem file.
type BCSpec struct {
	Values []float64 `yaml:"Values"`
	Method string    `yaml:"Method"` // interpolate (default), bestapprox
}

func (pp *ProblemParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, pp); err != nil {
		return err
	}
	return pp.validate()
}

func ReadFile(path string) (pp *ProblemParameters, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	pp = &ProblemParameters{}
	if err = pp.Parse(data); err != nil {
		pp = nil
	}
	return
}

func (pp *ProblemParameters) validate() error {
	switch pp.Problem {
	case "poisson", "stokes", "heat":
	case "":
		return fmt.Errorf("problem file names no Problem")
	default:
		return fmt.Errorf("unknown Problem %q", pp.Problem)
	}
	switch pp.Element {
	case "", "P1", "P2", "CR":
	default:
		return fmt.Errorf("unknown Element %q", pp.Element)
	}
	switch pp.TimeScheme {
	case "", "BE", "CN":
	default:
		return fmt.Errorf("unknown TimeScheme %q", pp.TimeScheme)
	}
	switch pp.Solver {
	case "", "dense", "bicgstab":
	default:
		return fmt.Errorf("unknown Solver %q", pp.Solver)
	}
	if pp.MeshN < 0 || pp.Refinements < 0 {
		return fmt.Errorf("mesh sizes must not be negative")
	}
	for name, spec := range pp.Constraints {
		for kind := range spec {
			switch kind {
			case "Mean":
			default:
				return fmt.Errorf("Constraints[%s]: unknown constraint %q", name, kind)
			}
		}
	}
	for name, regions := range pp.BCs {
		for r, spec := range regions {
			switch spec.Method {
			case "", "interpolate", "bestapprox":
			default:
				return fmt.Errorf("BCs[%s][%d]: unknown Method %q", name, r, spec.Method)
			}
			if len(spec.Values) == 0 {
				return fmt.Errorf("BCs[%s][%d]: no Values", name, r)
			}
		}
	}
	return nil
}

// WithDefaults fills the optional fields left empty in the file.
func (pp *ProblemParameters) WithDefaults() *ProblemParameters {
	if pp.MeshN == 0 {
		pp.MeshN = 4
	}
	if pp.Element == "" {
		pp.Element = "P1"
	}
	if pp.Viscosity == 0 {
		pp.Viscosity = 1
	}
	if pp.TimeStep == 0 {
		pp.TimeStep = 0.01
	}
	if pp.Problem == "heat" && pp.FinalTime == 0 {
		pp.FinalTime = 10 * pp.TimeStep
	}
	if pp.TimeScheme == "" {
		pp.TimeScheme = "BE"
	}
	if pp.MaxIterations == 0 {
		pp.MaxIterations = 50
	}
	if pp.Tolerance == 0 {
		pp.Tolerance = 1.e-10
	}
	if pp.Solver == "" {
		pp.Solver = "dense"
	}
	return pp
}

func (pp *ProblemParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", pp.Title)
	fmt.Printf("[%s]\t\t\t= Problem\n", pp.Problem)
	fmt.Printf("[%s]\t\t\t= Element\n", pp.Element)
	fmt.Printf("%d\t\t\t= MeshN\n", pp.MeshN)
	fmt.Printf("%d\t\t\t= Refinements\n", pp.Refinements)
	fmt.Printf("%8.5f\t\t= Viscosity\n", pp.Viscosity)
	if pp.Problem == "heat" {
		fmt.Printf("[%s]\t\t\t= TimeScheme\n", pp.TimeScheme)
		fmt.Printf("%8.5f\t\t= TimeStep\n", pp.TimeStep)
		fmt.Printf("%8.5f\t\t= FinalTime\n", pp.FinalTime)
	}
	keys := make([]string, 0, len(pp.BCs))
	for k := range pp.BCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, pp.BCs[key])
	}
}
