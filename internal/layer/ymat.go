package layer

import (
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/utils"
)

func orbit(s *beams.Selected, bulk bool) []beams.Member {
	if bulk {
		return s.Bulk
	}
	return s.Over
}

func harmonics(set []beams.Selected, lMax int, bulk bool) (rep [][]complex128, mem [][][]complex128) {
	rep = make([][]complex128, len(set))
	mem = make([][][]complex128, len(set))
	for k := range set {
		s := &set[k]
		rep[k] = qm.Ylm(lMax, s.CosTheta, s.Phi)
		for _, o := range orbit(s, bulk) {
			mem[k] = append(mem[k], qm.Ylm(lMax, s.CosTheta, o.Phi))
		}
	}
	return
}

// yOut returns the matrices projecting the (l,m) amplitudes of an atom at
// lateral position at onto the outgoing beams, + and - direction. Row k is
// scaled by pref[k] and by the square root of the orbit size.
func (en *entry) yOut(set []beams.Selected, lMax int, bulk bool, at [2]float64, pref []complex128) (p, m *cmatrix.Matrix) {
	n := qm.LMCount(lMax)
	p, m = cmatrix.New(len(set), n), cmatrix.New(len(set), n)
	for k := range set {
		s := &set[k]
		w := pref[k] * complex(math.Sqrt(float64(len(orbit(s, bulk)))), 0) *
			cmplx.Exp(complex(0, -(s.Kx*at[0]+s.Ky*at[1])))
		rowP, rowM := p.Row(k), m.Row(k)
		for l := 0; l <= lMax; l++ {
			for mm := -l; mm <= l; mm++ {
				i := qm.LMIndex(l, mm)
				rowP[i] = en.yRep[k][i] * w
				rowM[i] = complex(utils.MinusOnePow(l+mm), 0) * rowP[i]
			}
		}
	}
	return
}

// yIn returns the matrices expanding the incident beams, + and -
// direction, into (l,m) waves around an atom at lateral position at. Each
// column is the normalized sum over the beams of the orbit.
func (en *entry) yIn(set []beams.Selected, lMax int, bulk bool, at [2]float64) (p, m *cmatrix.Matrix) {
	n := qm.LMCount(lMax)
	p, m = cmatrix.New(n, len(set)), cmatrix.New(n, len(set))
	for k := range set {
		members := orbit(&set[k], bulk)
		norm := 1 / math.Sqrt(float64(len(members)))
		for j, o := range members {
			w := complex(norm, 0) * cmplx.Exp(complex(0, o.Kx*at[0]+o.Ky*at[1]))
			y := en.yMem[k][j]
			for l := 0; l <= lMax; l++ {
				for mm := -l; mm <= l; mm++ {
					i := qm.LMIndex(l, mm)
					v := y[qm.LMIndex(l, -mm)] * w
					p.AddAt(i, k, complex(utils.MinusOnePow(mm), 0)*v)
					m.AddAt(i, k, complex(utils.MinusOnePow(l), 0)*v)
				}
			}
		}
	}
	return
}
