package doubling

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
)

// vacuumKz is kz of beam s outside the crystal at vacuum energy engV,
// imaginary for evanescent beams.
func vacuumKz(s *beams.Selected, engV float64) complex128 {
	f := 2*engV - s.KPar*s.KPar
	if f >= 0 {
		return complex(math.Sqrt(f), 0)
	}
	return complex(0, math.Sqrt(-f))
}

// fluxFactor converts amplitudes into current amplitudes relative to the
// incident (00) beam; zero for evanescent beams.
func fluxFactor(kv, kv0 complex128) float64 {
	if imag(kv) != 0 || real(kv0) == 0 {
		return 0
	}
	return math.Sqrt(real(kv) / real(kv0))
}

// PotStep0 returns the amplitudes of the backscattered beams for incidence
// in the (00) beam (the first one of set), propagating the first column of
// rpm by vec up to the surface. Refraction and reflection at the potential
// step are ignored.
func PotStep0(rpm *cmatrix.Matrix, set []beams.Selected, engV float64, vec [3]float64) []complex128 {
	amp := make([]complex128, len(set))
	s0 := &set[0]
	kv0 := vacuumKz(s0, engV)
	for k := range set {
		s := &set[k]
		phase := complex((s.Kx-s0.Kx)*vec[0]+(s.Ky-s0.Ky)*vec[1], 0) + (s.Kz+s0.Kz)*complex(vec[2], 0)
		f := fluxFactor(vacuumKz(s, engV), kv0)
		amp[k] = complex(f, 0) * cmplx.Exp(1i*phase) * rpm.At(k, 0)
	}
	return amp
}

// PotStep is PotStep0 with refraction and multiple reflection at the
// potential step included. The step is diagonal in the beams:
//
//	R-+ = (kc - kv)/(kc + kv)   T+ = 2 kc/(kc + kv)
//	R+- = (kv - kc)/(kc + kv)   T- = 2 kv/(kc + kv)
func PotStep(rpm *cmatrix.Matrix, set []beams.Selected, engV float64, vec [3]float64) ([]complex128, error) {
	n := len(set)
	pp, pm := propagators(set, vec)
	kv := make([]complex128, n)
	for k := range set {
		kv[k] = vacuumKz(&set[k], engV)
	}

	raP := scaledCols(rpm, pm)
	m := raP.Clone()
	f := make([]complex128, n)
	for k := range set {
		kc := set[k].Kz
		f[k] = -(kc - kv[k]) / (kc + kv[k]) * pp[k]
	}
	m.ScaleRows(f)
	m.AddIdentity()
	inv, err := cmatrix.Inverse(m)
	if err != nil {
		return nil, fmt.Errorf("potential step: %w", err)
	}

	kc0 := set[0].Kz
	t0 := 2 * kv[0] / (kc0 + kv[0])
	col := cmatrix.New(n, 1)
	for k := range n {
		col.Set(k, 0, inv.At(k, 0)*t0)
	}
	res, err := cmatrix.Mul(raP, col)
	if err != nil {
		return nil, err
	}

	amp := make([]complex128, n)
	for k := range set {
		kc := set[k].Kz
		amp[k] = res.At(k, 0) * 2 * kc / (kc + kv[k]) * pp[k]
	}
	amp[0] += (kv[0] - kc0) / (kc0 + kv[0])
	for k := range amp {
		amp[k] *= complex(fluxFactor(kv[k], kv[0]), 0)
	}
	return amp, nil
}
