package beams

import (
	"math"
	"math/cmplx"
)

// Member is one beam of an orbit at the current energy.
type Member struct {
	Kx, Ky float64
	Phi    float64
}

// Selected is a beam of the master list taken into account at the current
// energy, with its energy dependent wave vector.
type Selected struct {
	*Beam
	Index int // position in the master list

	K        complex128 // sqrt(2 E)
	Kx, Ky   float64    // including the incident parallel momentum
	KPar     float64
	Kz       complex128
	CosTheta complex128
	Phi      float64
	Akz      complex128 // AkzR / Kz

	Bulk, Over []Member
}

// Evanescent reports whether the beam cannot leave the crystal at vacuum
// energy engV [Hartree].
func (s *Selected) Evanescent(engV float64) bool {
	return s.KPar > math.Sqrt(2*engV)
}

// Select keeps the beams whose parallel momentum lies inside the cutoff
// defined by eps and dmin at the complex energy engR + i engI [Hartree].
func Select(l *List, engR, engI float64, kIn [2]float64, eps, dmin float64) []Selected {
	kMax2 := cutoff(eps, dmin, engR)
	k := cmplx.Sqrt(complex(2*engR, 2*engI))

	var out []Selected
	for i := range l.Beams {
		b := &l.Beams[i]
		kx, ky := b.Kr[0]+kIn[0], b.Kr[1]+kIn[1]
		kPar2 := kx*kx + ky*ky
		if kPar2 > kMax2 {
			continue
		}
		kz := cmplx.Sqrt(complex(2*engR-kPar2, 2*engI))
		out = append(out, Selected{
			Beam:     b,
			Index:    i,
			K:        k,
			Kx:       kx,
			Ky:       ky,
			KPar:     math.Sqrt(kPar2),
			Kz:       kz,
			CosTheta: kz / k,
			Phi:      math.Atan2(ky, kx),
			Akz:      complex(b.AkzR, 0) / kz,
			Bulk:     members(b.BulkOrbit, kIn),
			Over:     members(b.Orbit, kIn),
		})
	}
	return out
}

func members(orbit [][2]float64, kIn [2]float64) []Member {
	ms := make([]Member, len(orbit))
	for i, g := range orbit {
		kx, ky := g[0]+kIn[0], g[1]+kIn[1]
		ms[i] = Member{Kx: kx, Ky: ky, Phi: math.Atan2(ky, kx)}
	}
	return ms
}

// Set returns the beams of one set, in their original order.
func Set(sel []Selected, set int) []Selected {
	var out []Selected
	for _, s := range sel {
		if s.Set == set {
			out = append(out, s)
		}
	}
	return out
}
