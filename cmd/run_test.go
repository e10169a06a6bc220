package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/probdef"
)

func TestRunPoissonFromFileInput(t *testing.T) {
	fileInput := []byte(`
Title: Test Case
Problem: poisson
MeshN: 3
Element: P1
BCs:
  u:
    0:
      Values: [0]
`)
	pp := &probdef.ProblemParameters{}
	require.NoError(t, pp.Parse(fileInput))
	pp.WithDefaults()
	assert.Equal(t, []float64{0}, pp.BCs["u"][0].Values)
	require.NoError(t, RunProblem(pp))
}

func TestRunStokesReconstructed(t *testing.T) {
	pp := (&probdef.ProblemParameters{
		Problem:     "stokes",
		MeshN:       2,
		Viscosity:   0.01,
		Reconstruct: true,
	}).WithDefaults()
	require.NoError(t, RunProblem(pp))
}

func TestRunStokesFileConstraint(t *testing.T) {
	pp := (&probdef.ProblemParameters{
		Problem:     "stokes",
		MeshN:       2,
		Constraints: map[string]map[string]float64{"p": {"Mean": 0.5}},
	}).WithDefaults()
	require.NoError(t, RunProblem(pp))

	pp.Constraints = map[string]map[string]float64{"p": {"Pin": 1}}
	assert.Error(t, RunProblem(pp))
}

func TestRunHeatBackwardEuler(t *testing.T) {
	pp := (&probdef.ProblemParameters{
		Problem:   "heat",
		MeshN:     3,
		TimeStep:  0.01,
		FinalTime: 0.03,
	}).WithDefaults()
	require.NoError(t, RunProblem(pp))
}

func TestElementSelection(t *testing.T) {
	assert.Equal(t, "P2", buildElement("P2").Name())
	assert.Equal(t, "CR", buildElement("CR").Name())
	assert.Equal(t, "P1", buildElement("anything").Name())
}
