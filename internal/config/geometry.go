package config

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

const deg = math.Pi / 180

func vec3(name string, v []float64) ([3]float64, error) {
	var out [3]float64
	if len(v) < 2 || len(v) > 3 {
		return out, fmt.Errorf("%w: %s needs 2 or 3 components, got %d", ErrConfig, name, len(v))
	}
	copy(out[:], v)
	return out, nil
}

func (p *ModelParameters) vibration(a AtomSpec) (phaseshift.Vibration, phaseshift.Kind, error) {
	need := func(n int) error {
		if len(a.Dr) < n {
			return fmt.Errorf("%w: atom %s: vibration %s needs %d values", ErrConfig, a.Phase, a.Vibration, n)
		}
		return nil
	}
	switch a.Vibration {
	case "", "dr1":
		if len(a.Dr) == 0 {
			return phaseshift.Vibration{}, phaseshift.Diagonal, nil
		}
		return phaseshift.IsotropicVibration(a.Dr[0]), phaseshift.Diagonal, nil
	case "dr3", "nd3":
		if err := need(3); err != nil {
			return phaseshift.Vibration{}, 0, err
		}
		kind := phaseshift.Diagonal
		if a.Vibration == "nd3" {
			kind = phaseshift.NonDiagonal
		}
		return phaseshift.AnisotropicVibration(a.Dr[0], a.Dr[1], a.Dr[2]), kind, nil
	case "dmt":
		if err := need(2); err != nil {
			return phaseshift.Vibration{}, 0, err
		}
		vib, err := phaseshift.DebyeVibration(a.Dr[0], a.Dr[1], p.Temperature)
		return vib, phaseshift.Diagonal, err
	}
	return phaseshift.Vibration{}, 0, fmt.Errorf("%w: atom %s: unknown vibration %q", ErrConfig, a.Phase, a.Vibration)
}

func (p *ModelParameters) atoms(specs []AtomSpec, reg *phaseshift.Registry) ([]crystal.Atom, error) {
	atoms := make([]crystal.Atom, len(specs))
	for i, a := range specs {
		if len(a.Pos) != 3 {
			return nil, fmt.Errorf("%w: atom %d (%s) needs 3 coordinates", ErrConfig, i, a.Phase)
		}
		vib, kind, err := p.vibration(a)
		if err != nil {
			return nil, err
		}
		typ, err := reg.Add(a.Phase, vib, kind)
		if err != nil {
			return nil, err
		}
		atoms[i] = crystal.Atom{Pos: [3]float64{a.Pos[0], a.Pos[1], a.Pos[2]}, Type: typ, Kind: kind}
	}
	return atoms, nil
}

// Geometry converts the unified parameters into the crystal description,
// registering the phase shifts of every atom in reg.
func (p *ModelParameters) Geometry(reg *phaseshift.Registry) (crystal.Geometry, error) {
	g := crystal.Geometry{
		Symmetry:    crystal.Symmetry{NRot: p.Rotation, Mirrors: p.Mirrors},
		Vr:          p.Vr,
		ViPre:       p.ViPre,
		ViExp:       p.ViExp,
		Temperature: p.Temperature,
	}
	var err error
	for _, v := range []struct {
		name string
		src  []float64
		dst  *[3]float64
	}{{"A1", p.A1, &g.A1}, {"A2", p.A2, &g.A2}, {"A3", p.A3, &g.A3}} {
		if *v.dst, err = vec3(v.name, v.src); err != nil {
			return g, err
		}
	}
	if len(p.Super) > 0 {
		if len(p.Super) != 2 || len(p.Super[0]) != 2 || len(p.Super[1]) != 2 {
			return g, fmt.Errorf("%w: Super must be a 2x2 matrix", ErrConfig)
		}
		g.Super = [2][2]float64{{p.Super[0][0], p.Super[0][1]}, {p.Super[1][0], p.Super[1][1]}}
	}
	if g.Bulk, err = p.atoms(p.Bulk, reg); err != nil {
		return g, err
	}
	if g.Over, err = p.atoms(p.Over, reg); err != nil {
		return g, err
	}
	return g, nil
}
