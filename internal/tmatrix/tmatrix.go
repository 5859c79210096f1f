// Package tmatrix builds atomic scattering matrices from interpolated phase
// shifts, including the thermal vibration correction.
package tmatrix

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/utils"
)

var ErrCumulantNotConverged = errors.New("tmatrix: cumulant expansion did not converge")

// TMatrix is the scattering matrix of one atom type at one energy. Diagonal
// types carry one factor per l in Diag; non-diagonal types carry the full
// (l,m) x (l,m) matrix in Full.
type TMatrix struct {
	Kind phaseshift.Kind
	LMax int
	Diag []complex128
	Full *cmatrix.Matrix
}

// IsDiagonal reports whether only Diag is set.
func (t TMatrix) IsDiagonal() bool { return t.Kind == phaseshift.Diagonal }

// TL converts phase shifts into t_l = sin(d) exp(i d).
func TL(shifts []float64) []complex128 {
	tl := make([]complex128, len(shifts))
	for l, d := range shifts {
		s, c := math.Sincos(d)
		tl[l] = complex(s*c, s*s)
	}
	return tl
}

// DebyeCorrect folds an isotropic mean square displacement dr2 [bohr^2] into
// the scattering factors tl at energy [Hartree]. The result has lMax+1
// entries; tl entries above lMax are ignored.
func DebyeCorrect(tl []complex128, dr2, energy float64, lMax int) []complex128 {
	lIn := min(len(tl)-1, lMax)
	alpha := 4. / 3. * dr2 * energy

	jl := qm.Bessel(complex(0, -alpha), lMax+lIn)
	pref := complex(math.Sqrt(4*math.Pi)*math.Exp(-alpha), 0)
	for l := range jl {
		jl[l] *= pref
		pref *= 1i
	}

	out := make([]complex128, lMax+1)
	for l1 := 0; l1 <= lMax; l1++ {
		for l2 := 0; l2 <= lIn; l2++ {
			ratio := float64(2*l2+1) / float64(2*l1+1)
			for l3 := utils.IntAbs(l1 - l2); l3 <= l1+l2; l3++ {
				cg := qm.CG(l3, 0, l2, 0, l1, 0)
				if cg == 0 {
					continue
				}
				f := cg * math.Sqrt(float64(2*l3+1)*ratio)
				out[l1] += complex(f, 0) * tl[l2] * jl[l3]
			}
		}
	}
	return out
}

// Build returns the scattering matrix of set at energy [Hartree] truncated at
// lMax. extrapolated is set when energy lies above the tabulated range.
func Build(set *phaseshift.Set, energy float64, lMax int) (t TMatrix, extrapolated bool, err error) {
	shifts, extrapolated, err := set.Interpolate(energy)
	if err != nil {
		return TMatrix{}, false, err
	}
	tl := TL(shifts)
	t = TMatrix{Kind: set.Kind, LMax: lMax}
	switch set.Kind {
	case phaseshift.NonDiagonal:
		t.Full, err = Cumulant(tl, set.Vib.U, energy, lMax)
		if err != nil {
			return TMatrix{}, extrapolated, fmt.Errorf("%s: %w", set.File, err)
		}
	default:
		t.Diag = DebyeCorrect(tl, set.Vib.DR2, energy, lMax)
	}
	return t, extrapolated, nil
}

// MaxL returns the largest l whose scattering factor is not negligible
// compared to eps. Non-diagonal matrices are never reduced.
func (t TMatrix) MaxL(eps float64) int {
	if !t.IsDiagonal() {
		return t.LMax
	}
	l := t.LMax
	for l > 0 && cmplx.Abs(t.Diag[l]) < eps {
		l--
	}
	return l
}
