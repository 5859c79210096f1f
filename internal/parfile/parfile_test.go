package parfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/config"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/engine"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

func prepared(t *testing.T) *engine.Model {
	t.Helper()
	c, err := crystal.New(crystal.Geometry{
		A1:    [3]float64{5, 0, 0},
		A2:    [3]float64{0, 5, 0},
		A3:    [3]float64{0, 0, -5},
		Bulk:  []crystal.Atom{{}},
		Over:  []crystal.Atom{{Pos: [3]float64{0, 0, 3.5}}},
		Vr:    -0.4,
		ViPre: 0.15,
	})
	require.NoError(t, err)
	sets := []*phaseshift.Set{{
		File:     "Ni.phs",
		LMax:     3,
		Energies: []float64{0.5, 2, 5},
		Shifts: [][]float64{
			{0.8, 0.5, 0.2, 0.05},
			{0.9, 0.6, 0.3, 0.08},
			{0.7, 0.5, 0.35, 0.1},
		},
		Vib:  phaseshift.Vibration{DR2: 0.01},
		Kind: phaseshift.Diagonal,
	}}
	p := config.ModelParameters{
		EnergyInitial: 1.5,
		EnergyFinal:   2.5,
		EnergyStep:    0.5,
		Theta:         0.1,
		Phi:           0.3,
		LMax:          3,
		Epsilon:       1e-3,
		PotentialStep: true,
	}
	m, err := engine.New(p, c, sets)
	require.NoError(t, err)
	return m
}

func TestRoundTrip(t *testing.T) {
	m := prepared(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))

	size := uint64(buf.Len() - 8)
	assert.Equal(t, size, binary.LittleEndian.Uint64(buf.Bytes()[buf.Len()-8:]))

	var runtime config.ModelParameters
	runtime.SetThreads(2)
	got, err := Read(&buf, runtime)
	require.NoError(t, err)

	assert.Equal(t, m.Crystal.Bulk, got.Crystal.Bulk)
	assert.Equal(t, m.Crystal.Over, got.Crystal.Over)
	assert.Equal(t, m.Crystal.Recip, got.Crystal.Recip)
	assert.Equal(t, m.Crystal.DMin, got.Crystal.DMin)
	assert.Equal(t, m.Crystal.Vr, got.Crystal.Vr)
	assert.Equal(t, m.Sets, got.Sets)
	assert.Equal(t, m.Beams, got.Beams)
	assert.Equal(t, m.Energies, got.Energies)
	assert.Equal(t, m.Out, got.Out)
	assert.True(t, got.Parameters.PotentialStep)
	assert.Equal(t, 2, got.Parameters.Threads())

	want, err := m.Run()
	require.NoError(t, err)
	have, err := got.Run()
	require.NoError(t, err)
	require.Len(t, have, len(want))
	for i := range want {
		assert.Equal(t, want[i].Energy, have[i].Energy)
		assert.InDeltaSlice(t, want[i].Intensities, have[i].Intensities, 1e-12)
	}
}

func TestCorrupted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, prepared(t)))
	data := buf.Bytes()

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xff
		_, err := Read(bytes.NewReader(bad), config.ModelParameters{})
		assert.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := Read(bytes.NewReader(data[:len(data)/2]), config.ModelParameters{})
		assert.ErrorIs(t, err, ErrFormat)
	})
	t.Run("missing checksum", func(t *testing.T) {
		_, err := Read(bytes.NewReader(data[:len(data)-8]), config.ModelParameters{})
		assert.ErrorIs(t, err, ErrFormat)
	})
}
