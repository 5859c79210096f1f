package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

const phaseTable = `3 1 eV
20.0
 0.5000 0.1000
60.0
 0.6000 0.2000
200.0
 0.7000 0.3000
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func unified(t *testing.T, path, model string) (ModelParameters, error) {
	t.Helper()
	cfg, meta, err := LoadConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Models, model)
	mp := cfg.Models[model]
	err = mp.CheckAndUnify(model, &cfg, &meta)
	return mp, err
}

const baseTOML = `
A1 = [2.5, 0.0, 0.0]
A2 = [0.0, 2.5, 0.0]
A3 = [0.0, 0.0, 2.0]
Vr = -10.0
ViPre = 4.0
EnergyInitial = 40.0
EnergyFinal = 100.0
Theta = 10.0
`

func TestGlobalOnlyModel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ni.toml", baseTOML+`
[[Bulk]]
Phase = "Ni"
Pos = [0.0, 0.0, 0.0]
`)
	mp, err := unified(t, path, "ni")
	require.NoError(t, err)

	assert.InDelta(t, 2.5/constants.Bohr, mp.A1[0], 1e-12)
	assert.InDelta(t, -10/constants.Hartree, mp.Vr, 1e-12)
	assert.InDelta(t, 4/constants.Hartree, mp.EnergyStep, 1e-12)
	assert.InDelta(t, 10*deg, mp.Theta, 1e-12)
	assert.Equal(t, 8, mp.LMax)
	assert.Equal(t, 1e-3, mp.Epsilon)
	assert.Equal(t, constants.DefaultTemperature, mp.Temperature)
	assert.False(t, mp.PotentialStep)
	require.Len(t, mp.Bulk, 1)
}

func TestModelOverridesAndUnits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.toml", `
InputUnits = ["Ry", "nm"]
`+baseTOML+`
[[Bulk]]
Phase = "Ni"
Pos = [0.0, 0.0, 0.1]

[Models.cold]
Temperature = 100.0
EnergyCount = 7

[Models.fine]
LMax = 10
EnergyStep = 0.5
`)
	cfg, meta, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Models, 2)

	cold := cfg.Models["cold"]
	require.NoError(t, cold.CheckAndUnify("cold", &cfg, &meta))
	assert.Equal(t, 100., cold.Temperature)
	assert.InDelta(t, -10*constants.Rydberg, cold.Vr, 1e-12)
	assert.InDelta(t, 60*constants.Rydberg/6, cold.EnergyStep, 1e-12)
	assert.InDelta(t, 1/constants.Bohr, cold.Bulk[0].Pos[2], 1e-12)
	assert.InDelta(t, 25/constants.Bohr, cold.A1[0], 1e-12)

	fine := cfg.Models["fine"]
	require.NoError(t, fine.CheckAndUnify("fine", &cfg, &meta))
	assert.Equal(t, 10, fine.LMax)
	assert.InDelta(t, 0.5*constants.Rydberg, fine.EnergyStep, 1e-12)
	assert.InDelta(t, 25/constants.Bohr, fine.A1[0], 1e-12, "global values are converted once per model")
	assert.Equal(t, 2.5, cfg.A1[0])
}

func TestConfigErrors(t *testing.T) {
	for name, body := range map[string]string{
		"ambiguous step": baseTOML + "EnergyStep = 2.0\nEnergyCount = 5\n[[Bulk]]\nPhase = \"Ni\"\nPos = [0.0, 0.0, 0.0]\n",
		"missing bulk":   baseTOML,
		"reversed scan":  strings.Replace(baseTOML, "EnergyFinal = 100.0", "EnergyFinal = 10.0", 1) + "[[Bulk]]\nPhase = \"Ni\"\nPos = [0.0, 0.0, 0.0]\n",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, dir, "bad.toml", body)
			cfg, meta, err := LoadConfig(path)
			require.NoError(t, err)
			mp := cfg.Models["bad"]
			assert.ErrorIs(t, mp.CheckAndUnify("bad", &cfg, &meta), ErrConfig)
		})
	}
}

func TestUnitConflict(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "units.toml", `InputUnits = ["eV", "H"]`+"\n"+baseTOML)
	_, _, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestJSON5(t *testing.T) {
	dir := t.TempDir()
	phs := writeFile(t, dir, "Ni.phs", phaseTable)
	path := writeFile(t, dir, "ni.json5", `{
  // fcc(100)
  A1: [2.5, 0, 0],
  A2: [0, 2.5, 0],
  A3: [0, 0, 2.0],
  Vr: -10,
  ViPre: 4,
  EnergyInitial: 40,
  EnergyFinal: 100,
  Bulk: [{Phase: "`+phs+`", Pos: [0, 0, 0], Vibration: "dmt", Dr: [450, 58.7]}],
}`)
	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 40., cfg.EnergyInitial)
	assert.Equal(t, -10., cfg.Vr)
	require.Len(t, cfg.Bulk, 1)

	mp, err := unified(t, path, "ni")
	require.NoError(t, err)
	assert.InDelta(t, 2.5/constants.Bohr, mp.A2[1], 1e-12)
	assert.InDelta(t, 40/constants.Hartree, mp.EnergyInitial, 1e-12)
	assert.InDelta(t, -10/constants.Hartree, mp.Vr, 1e-12)
	assert.Equal(t, []float64{450, 58.7}, mp.Bulk[0].Dr)

	reg := phaseshift.NewRegistry()
	g, err := mp.Geometry(reg)
	require.NoError(t, err)
	require.Len(t, g.Bulk, 1)
	require.Len(t, reg.Sets, 1)
	assert.Greater(t, reg.Sets[0].Vib.DR2, 0.)
	assert.Equal(t, phaseshift.Diagonal, g.Bulk[0].Kind)
}

func TestJSON5Models(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.json5", `{
  OutputDir: "o",
  A1: [2.5, 0, 0], A2: [0, 2.5, 0], A3: [0, 0, 2.0],
  Vr: -10, ViPre: 4,
  EnergyInitial: 40, EnergyFinal: 100,
  Bulk: [{Phase: "Ni", Pos: [0, 0, 0]}],
  Models: {fine: {LMax: 10}},
}`)
	cfg, meta, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "o", cfg.OutputDir)
	require.Contains(t, cfg.Models, "fine")

	fine := cfg.Models["fine"]
	require.NoError(t, fine.CheckAndUnify("fine", &cfg, &meta))
	assert.Equal(t, 10, fine.LMax)
	assert.InDelta(t, 100/constants.Hartree, fine.EnergyFinal, 1e-12)
	require.Len(t, fine.Bulk, 1)
}

func TestGeometryVibrations(t *testing.T) {
	dir := t.TempDir()
	phs := writeFile(t, dir, "Ni.phs", phaseTable)
	mp := ModelParameters{
		A1: []float64{4, 0}, A2: []float64{0, 4}, A3: []float64{0, 0, 3},
		Temperature: 300,
		Bulk: []AtomSpec{
			{Phase: phs, Pos: []float64{0, 0, 0}, Vibration: "dr1", Dr: []float64{0.1}},
			{Phase: phs, Pos: []float64{2, 2, -1.5}, Vibration: "nd3", Dr: []float64{0.1, 0.1, 0.2}},
		},
	}
	reg := phaseshift.NewRegistry()
	g, err := mp.Geometry(reg)
	require.NoError(t, err)
	assert.Equal(t, phaseshift.NonDiagonal, g.Bulk[1].Kind)
	assert.NotEqual(t, g.Bulk[0].Type, g.Bulk[1].Type)
	assert.Equal(t, [3]float64{0, 0, 3}, g.A3)

	mp.Bulk[0].Vibration = "xyz"
	_, err = mp.Geometry(phaseshift.NewRegistry())
	assert.ErrorIs(t, err, ErrConfig)
}
