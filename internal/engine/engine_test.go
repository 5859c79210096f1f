package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/config"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

const a = 5.

func phases() []*phaseshift.Set {
	return []*phaseshift.Set{{
		File:     "test",
		LMax:     3,
		Energies: []float64{0.5, 2, 5},
		Shifts: [][]float64{
			{0.8, 0.5, 0.2, 0.05},
			{0.9, 0.6, 0.3, 0.08},
			{0.7, 0.5, 0.35, 0.1},
		},
		Kind: phaseshift.Diagonal,
	}}
}

func geometry(over ...crystal.Atom) crystal.Geometry {
	return crystal.Geometry{
		A1:    [3]float64{a, 0, 0},
		A2:    [3]float64{0, a, 0},
		A3:    [3]float64{0, 0, -a},
		Bulk:  []crystal.Atom{{}},
		Over:  over,
		Vr:    -0.4,
		ViPre: 0.15,
	}
}

func parameters(threads int) config.ModelParameters {
	p := config.ModelParameters{
		EnergyInitial: 1.5,
		EnergyFinal:   2.5,
		EnergyStep:    0.5,
		Theta:         0.1,
		Phi:           0.3,
		LMax:          3,
		Epsilon:       1e-3,
	}
	p.SetThreads(threads)
	return p
}

func model(t *testing.T, p config.ModelParameters, g crystal.Geometry) *Model {
	t.Helper()
	c, err := crystal.New(g)
	require.NoError(t, err)
	m, err := New(p, c, phases())
	require.NoError(t, err)
	return m
}

func TestParamsUpdate(t *testing.T) {
	g := geometry()
	g.ViExp = 1
	c, err := crystal.New(g)
	require.NoError(t, err)
	p := &Params{Theta: 0.2, Phi: 0.5, LMax: 3, Epsilon: 1e-3}

	require.NoError(t, p.Update(c, phases(), 5, false))
	assert.InDelta(t, 5.4, p.EngR, 1e-12)
	assert.InDelta(t, 0.15*5.4/constants.ViStart, p.EngI, 1e-12)
	assert.InDelta(t, math.Sin(0.2)*math.Sqrt(10), math.Hypot(p.KIn[0], p.KIn[1]), 1e-12)
	assert.InDelta(t, 0.5, math.Atan2(p.KIn[1], p.KIn[0]), 1e-12)
	require.Len(t, p.T, 1)
	assert.Len(t, p.T[0].Diag, 4)

	require.NoError(t, p.Update(c, phases(), 1, false))
	assert.Equal(t, 0.15, p.EngI, "constant below the onset energy")

	err = p.Update(c, phases(), 0.05, false)
	assert.ErrorIs(t, err, phaseshift.ErrEnergyOutOfRange)
}

func TestNewModel(t *testing.T) {
	m := model(t, parameters(1), geometry())
	assert.Equal(t, []float64{1.5, 2, 2.5}, m.Energies)
	require.NotEmpty(t, m.Out)
	assert.Equal(t, 0, m.Out[0])
	for _, i := range m.Out {
		assert.LessOrEqual(t, m.Beams.Beams[i].KPar2, 5.)
	}

	p := parameters(1)
	p.EnergyInitial = 0.05
	c, err := crystal.New(geometry())
	require.NoError(t, err)
	_, err = New(p, c, phases())
	assert.ErrorIs(t, err, phaseshift.ErrEnergyOutOfRange)
}

func TestRun(t *testing.T) {
	serial, err := model(t, parameters(1), geometry()).Run()
	require.NoError(t, err)
	parallel, err := model(t, parameters(3), geometry()).Run()
	require.NoError(t, err)

	require.Len(t, serial, 3)
	require.Len(t, parallel, 3)
	for i := range serial {
		assert.Equal(t, serial[i].Energy, parallel[i].Energy)
		assert.Positive(t, serial[i].Beams)
		require.Equal(t, len(serial[i].Intensities), len(parallel[i].Intensities))
		for j, v := range serial[i].Intensities {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.GreaterOrEqual(t, v, 0.)
			assert.InDelta(t, v, parallel[i].Intensities[j], 1e-12*(1+v))
		}
		assert.Positive(t, serial[i].Intensities[0], "specular beam")
	}
	assert.Less(t, serial[0].Energy, serial[1].Energy)
	assert.Less(t, serial[1].Energy, serial[2].Energy)
}

func TestRunOverlayerAndStep(t *testing.T) {
	bare, err := model(t, parameters(2), geometry()).Run()
	require.NoError(t, err)
	covered, err := model(t, parameters(2), geometry(crystal.Atom{Pos: [3]float64{0, 0, 3.5}})).Run()
	require.NoError(t, err)
	require.Len(t, covered, len(bare))
	assert.NotEqual(t, bare[0].Intensities[0], covered[0].Intensities[0])

	p := parameters(2)
	p.PotentialStep = true
	stepped, err := model(t, p, geometry()).Run()
	require.NoError(t, err)
	require.Len(t, stepped, len(bare))
	assert.NotEqual(t, bare[1].Intensities[0], stepped[1].Intensities[0])
}

func TestRunStopsOnError(t *testing.T) {
	g := geometry()
	g.Bulk = []crystal.Atom{{Type: 1}}
	_, err := model(t, parameters(2), g).Run()
	assert.Error(t, err)
}
