// Package actions holds the pointwise kernels evaluated at quadrature
// points during assembly: data functions, linear actions, and nonlinear
// operators with user supplied or forward-mode AD Jacobians.
package actions

// EvalContext carries the state of the current quadrature point through an
// assembly loop. It is owned by the assembler and passed by reference into
// every kernel evaluation; kernels hold no mutable scratch of their own, so
// two assembly loops never alias state through a shared kernel.
type EvalContext struct {
	X      [2]float64 // physical coordinates
	T      float64    // current time
	Item   int        // current mesh entity index
	Region int
	Xref   []float64 // reference coordinates on the current entity
}
