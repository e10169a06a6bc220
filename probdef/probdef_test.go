package probdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleYAML = `
Title: Lid driven test
Problem: stokes
MeshN: 6
Element: CR
Viscosity: 0.01
Reconstruct: true
BCs:
  v:
    1:
      Values: [0, 0]
    2:
      Values: [1, 0]
      Method: interpolate
Constraints:
  p:
    Mean: 0
`

func TestParseSample(t *testing.T) {
	pp := &ProblemParameters{}
	require.NoError(t, pp.Parse([]byte(sampleYAML)))
	assert.Equal(t, "stokes", pp.Problem)
	assert.Equal(t, 6, pp.MeshN)
	assert.Equal(t, "CR", pp.Element)
	assert.True(t, pp.Reconstruct)
	require.Contains(t, pp.BCs, "v")
	assert.Equal(t, []float64{1, 0}, pp.BCs["v"][2].Values)
	assert.Equal(t, 0.0, pp.Constraints["p"]["Mean"])
}

func TestValidateRejectsUnknownProblem(t *testing.T) {
	pp := &ProblemParameters{}
	assert.Error(t, pp.Parse([]byte(`Problem: navier`)))
	assert.Error(t, pp.Parse([]byte(`Title: missing problem`)))
	assert.Error(t, pp.Parse([]byte("Problem: poisson\nElement: P7")))
	assert.Error(t, pp.Parse([]byte("Problem: heat\nTimeScheme: RK4")))
	assert.Error(t, pp.Parse([]byte("Problem: stokes\nConstraints:\n  p:\n    Pin: 1")))
}

func TestDefaults(t *testing.T) {
	pp := &ProblemParameters{Problem: "poisson"}
	require.NoError(t, pp.validate())
	pp.WithDefaults()
	assert.Equal(t, 4, pp.MeshN)
	assert.Equal(t, "P1", pp.Element)
	assert.Equal(t, 1.e-10, pp.Tolerance)
	assert.Equal(t, "dense", pp.Solver)
	assert.Zero(t, pp.FinalTime) // only heat problems get a time horizon

	hp := (&ProblemParameters{Problem: "heat"}).WithDefaults()
	assert.Equal(t, 10*hp.TimeStep, hp.FinalTime)
}
