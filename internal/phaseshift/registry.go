package phaseshift

import (
	"errors"
	"fmt"
	"math"

	"github.com/wildstyl3r/cleed/internal/constants"
)

var ErrVibration = errors.New("phaseshift: invalid vibration parameters")

// Registry hands out atom type ids. Atoms sharing a phase shift file,
// vibration amplitudes and t-matrix kind share one id; the table of a file
// is read once.
type Registry struct {
	Sets   []*Set
	tables map[string]*Set
	load   func(path string) (*Set, error)
}

func NewRegistry() *Registry {
	return &Registry{tables: map[string]*Set{}, load: Load}
}

// Add returns the type id for the given phase shift name and vibration.
func (r *Registry) Add(name string, vib Vibration, kind Kind) (int, error) {
	path, err := ResolvePath(name)
	if err != nil {
		return -1, err
	}
	for i, s := range r.Sets {
		if s.File == path && s.Kind == kind && s.Vib.equal(vib) {
			return i, nil
		}
	}
	table, some := r.tables[path]
	if !some {
		if table, err = r.load(path); err != nil {
			return -1, err
		}
		r.tables[path] = table
	}
	set := *table
	set.File = path
	set.Vib = vib
	set.Kind = kind
	r.Sets = append(r.Sets, &set)
	return len(r.Sets) - 1, nil
}

// IsotropicVibration converts an rms displacement |dr| (bohr) into the
// vibration of a diagonal t-matrix.
func IsotropicVibration(dr float64) Vibration {
	u := dr / math.Sqrt(3)
	return Vibration{DR2: dr * dr, U: [3]float64{u, u, u}}
}

// AnisotropicVibration keeps separate rms displacements along x, y, z.
func AnisotropicVibration(ux, uy, uz float64) Vibration {
	return Vibration{DR2: ux*ux + uy*uy + uz*uz, U: [3]float64{ux, uy, uz}}
}

// DebyeDR2 returns <dr^2> in bohr^2 from the Debye temperature [K], the
// atomic mass [amu] and the sample temperature [K].
func DebyeDR2(debyeTemp, mass, temp float64) (float64, error) {
	if debyeTemp <= 0 {
		return 0, fmt.Errorf("%w: Debye temperature %g", ErrVibration, debyeTemp)
	}
	if mass <= 0 {
		return 0, fmt.Errorf("%w: mass %g", ErrVibration, mass)
	}
	if temp < 0 {
		return 0, fmt.Errorf("%w: temperature %g", ErrVibration, temp)
	}
	ratio := temp / debyeTemp
	pref := 0.5 * constants.DebyeWallerPrefactor / (mass * debyeTemp)
	switch {
	case ratio < 0.125:
		return pref * (0.25 + 1.642*ratio*ratio), nil
	case ratio > 8.:
		return pref * ratio, nil
	default:
		return pref * math.Sqrt(0.0625+ratio*ratio), nil
	}
}

// DebyeVibration is the isotropic vibration from Debye parameters.
func DebyeVibration(debyeTemp, mass, temp float64) (Vibration, error) {
	dr2, err := DebyeDR2(debyeTemp, mass, temp)
	if err != nil {
		return Vibration{}, err
	}
	return IsotropicVibration(math.Sqrt(dr2)), nil
}
