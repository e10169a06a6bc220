// Package functionop catalogs the function operators that can be applied to
// trial and test arguments of a weak form: what each operator produces from
// a field, which basis derivative data it needs, and how it shifts the
// quadrature order bookkeeping.
package functionop

import (
	"fmt"

	"github.com/notargets/gofea/fespace"
)

type Kind uint8

const (
	Identity Kind = iota
	Gradient
	Divergence
	Curl2D
	Trace
	Jump
	Average
	ReconstructIdentity
	ReconstructDivergence
)

func (k Kind) String() string {
	switch k {
	case Identity:
		return "Identity"
	case Gradient:
		return "Gradient"
	case Divergence:
		return "Divergence"
	case Curl2D:
		return "Curl2D"
	case Trace:
		return "Trace"
	case Jump:
		return "Jump"
	case Average:
		return "Average"
	case ReconstructIdentity:
		return "ReconstructIdentity"
	case ReconstructDivergence:
		return "ReconstructDivergence"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Operator is the static description of one function operator. Reconstruct
// kinds substitute the richer Target space before reducing.
type Operator struct {
	Kind   Kind
	Target fespace.Element
}

func Ident() Operator   { return Operator{Kind: Identity} }
func Grad() Operator    { return Operator{Kind: Gradient} }
func Div() Operator     { return Operator{Kind: Divergence} }
func Curl() Operator    { return Operator{Kind: Curl2D} }
func TraceOp() Operator { return Operator{Kind: Trace} }
func JumpOp() Operator  { return Operator{Kind: Jump} }
func AvgOp() Operator   { return Operator{Kind: Average} }

func Reconstruct(target fespace.Element) Operator {
	return Operator{Kind: ReconstructIdentity, Target: target}
}

func ReconstructDiv(target fespace.Element) Operator {
	return Operator{Kind: ReconstructDivergence, Target: target}
}

// OutputComponents is the number of components the operator produces from an
// element with el.Components() components in two dimensions.
func (op Operator) OutputComponents(el fespace.Element) int {
	switch op.Kind {
	case Identity, Trace, Jump, Average:
		return el.Components()
	case Gradient:
		return 2 * el.Components()
	case Divergence, Curl2D:
		return 1
	case ReconstructIdentity:
		return op.Target.Components()
	case ReconstructDivergence:
		return 1
	}
	panic(fmt.Errorf("unknown operator kind %v", op.Kind))
}

// DerivOrder is the basis derivative order the operator consumes.
func (op Operator) DerivOrder() int {
	switch op.Kind {
	case Gradient, Divergence, Curl2D, ReconstructDivergence:
		return 1
	}
	return 0
}

// QuadOrderShift adjusts the quadrature order bookkeeping per operator.
// Derivatives lower the polynomial order of the integrand by one.
func (op Operator) QuadOrderShift() int {
	switch op.Kind {
	case Gradient, Divergence, Curl2D, ReconstructDivergence:
		return -1
	}
	return 0
}

// TwoSided reports whether the operator needs evaluation on both cells
// sharing an interior face.
func (op Operator) TwoSided() bool {
	return op.Kind == Jump || op.Kind == Average
}

// ValidFor checks the operator/element combination, failing fast at setup.
func (op Operator) ValidFor(el fespace.Element) error {
	switch op.Kind {
	case Divergence, Curl2D:
		if el.Components() != 2 {
			return fmt.Errorf("operator %v needs a two component element, %s has %d", op.Kind, el.Name(), el.Components())
		}
	case Gradient:
		if el.Mapping() == fespace.MapPiola {
			return fmt.Errorf("operator %v is not registered for Piola mapped element %s", op.Kind, el.Name())
		}
	case ReconstructIdentity, ReconstructDivergence:
		if op.Target == nil {
			return fmt.Errorf("operator %v needs a reconstruction target element", op.Kind)
		}
	}
	return nil
}
