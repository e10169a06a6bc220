package pde

import (
	"fmt"

	"github.com/notargets/gofea/assembly"
)

// TimeScheme selects the one step integration rule.
type TimeScheme uint8

const (
	BackwardEuler TimeScheme = iota
	CrankNicolson
)

func (ts TimeScheme) String() string {
	switch ts {
	case BackwardEuler:
		return "BackwardEuler"
	case CrankNicolson:
		return "CrankNicolson"
	}
	return fmt.Sprintf("TimeScheme(%d)", uint8(ts))
}

func (ts TimeScheme) theta() float64 {
	if ts == CrankNicolson {
		return 0.5
	}
	return 1
}

// TimeStepper advances a PDE with time derivative terms by a theta scheme.
// Each step solves the implicit part with the embedded fixed point solver,
// so nonlinear problems stay fully implicit.
type TimeStepper struct {
	Scheme TimeScheme
	Dt     float64
	Solver *FixedPointSolver

	time float64
}

func (st *TimeStepper) Time() float64 { return st.time }

// SetTime resets the clock, for restarts.
func (st *TimeStepper) SetTime(t float64) { st.time = t }

// Step advances the system by one step of Dt. The current state s.U is the
// value at the old time; on return it holds the new time level.
//
// The theta scheme solves
//
//	(M/dt + theta A) u1 = M/dt u0 + theta b(t1) + (1-theta)(b(t0) - A(u0) u0)
//
// where A and b are the stationary terms. The explicit part is evaluated by
// refreshing the stationary system around u0 at t0 and applying it.
func (st *TimeStepper) Step(s *System) (Status, error) {
	if st.Dt <= 0 {
		return Status{}, fmt.Errorf("time step %g must be positive", st.Dt)
	}
	var (
		theta = st.Scheme.theta()
		t0    = st.time
		t1    = st.time + st.Dt
		u0    = s.U.Copy()
		extra *assembly.FEVector
	)
	if theta != 1 {
		var err error
		if extra, err = st.explicitPart(s, t0, u0); err != nil {
			return Status{}, err
		}
	}

	// implicit stage at t1: terms scaled by theta, mass by 1/dt
	s.SetMassScale(1 / (theta * st.Dt))
	s.InvalidateStep()
	s.extraRHS = func(rhs *assembly.FEVector) error {
		if err := s.MassAction(u0, rhs, 1/(theta*st.Dt)); err != nil {
			return err
		}
		if extra != nil {
			addVector(rhs, extra, (1-theta)/theta)
		}
		return nil
	}
	defer func() {
		s.extraRHS = nil
		s.SetMassScale(0)
	}()

	status, err := st.Solver.Solve(s, t1)
	if err == nil {
		st.time = t1
	}
	return status, err
}

// explicitPart computes b(t0) - A(u0) u0 over the unconstrained stationary
// terms. The constraints belong to the implicit stage only.
func (st *TimeStepper) explicitPart(s *System, t0 float64, u0 *assembly.FEVector) (*assembly.FEVector, error) {
	s.SetMassScale(0)
	s.InvalidateStep()
	s.rawCombine = true
	defer func() { s.rawCombine = false }()
	if err := s.Refresh(t0); err != nil {
		return nil, err
	}
	r := s.rhs.Copy()
	s.combined.Flush().DoNonZero(func(i, j int, v float64) {
		r.Data[i] -= v * u0.Data[j]
	})
	s.InvalidateStep()
	return r, nil
}
