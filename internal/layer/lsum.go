package layer

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/utils"
)

var ErrDampingTooSmall = errors.New("layer: imaginary part of k too small for the lattice sum")

// sumRadius is the distance beyond which h_l(k r) has decayed below eps.
// eps >= 1 is taken as the radius itself [bohr].
func sumRadius(k complex128, eps float64) (float64, error) {
	if imag(k) <= 0 {
		return 0, fmt.Errorf("%w: Im k = %g", ErrDampingTooSmall, imag(k))
	}
	if eps >= 1 {
		return eps, nil
	}
	r := -math.Log(eps) / imag(k)
	if r > constants.LatticeRadiusWarning {
		log.Printf("warning: lattice sum radius %.0f bohr, damping is very weak", r)
	}
	return r, nil
}

// latticeBounds returns n1Max, n2Max such that every n1 a1 + n2 a2 shorter
// than r has |n1| <= n1Max and |n2| <= n2Max.
func latticeBounds(a1, a2 [2]float64, r float64) (int, int) {
	area := math.Abs(a1[0]*a2[1] - a1[1]*a2[0])
	n1 := int(math.Ceil(r*math.Hypot(a2[0], a2[1])/area)) + 1
	n2 := int(math.Ceil(r*math.Hypot(a1[0], a1[1])/area)) + 1
	return n1, n2
}

// SumII is the lattice sum of the propagator between the atoms of one
// Bravais plane:
//
//	L_lm = (-1)^m 4pi Y_lm(pi/2, 0) sum_{R != 0} h_l(k|R|) exp(i kIn.R - i m phi_R)
//
// up to lMax. R and -R are summed together, so only half of the lattice is
// visited. Only even l+m are non zero.
func SumII(k complex128, kIn, a1, a2 [2]float64, lMax int, eps float64) ([]complex128, error) {
	r, err := sumRadius(k, eps)
	if err != nil {
		return nil, err
	}
	n1Max, n2Max := latticeBounds(a1, a2, r)
	sum := make([]complex128, qm.LMCount(lMax))
	ePhi := make([]complex128, 2*lMax+1)

	for n1 := 0; n1 <= n1Max; n1++ {
		for n2 := -n2Max; n2 <= n2Max; n2++ {
			if n1 == 0 && n2 >= 0 {
				break
			}
			x := float64(n1)*a1[0] + float64(n2)*a2[0]
			y := float64(n1)*a1[1] + float64(n2)*a2[1]
			dist := math.Hypot(x, y)
			if dist > r {
				continue
			}
			h, err := qm.Hankel(k*complex(dist, 0), lMax)
			if err != nil {
				return nil, err
			}
			phase := cmplx.Exp(complex(0, kIn[0]*x+kIn[1]*y))
			phi := math.Atan2(y, x)
			for m := -lMax; m <= lMax; m++ {
				ePhi[m+lMax] = cmplx.Exp(complex(0, -float64(m)*phi))
			}
			for l := 0; l <= lMax; l++ {
				for m := -l; m <= l; m += 2 {
					pair := phase + complex(utils.MinusOnePow(m), 0)*cmplx.Conj(phase)
					sum[qm.LMIndex(l, m)] += h[l] * ePhi[m+lMax] * pair
				}
			}
		}
	}

	y := qm.Ylm(lMax, 0, 0)
	for l := 0; l <= lMax; l++ {
		for m := -l; m <= l; m++ {
			i := qm.LMIndex(l, m)
			sum[i] *= complex(4*math.Pi*utils.MinusOnePow(m), 0) * y[i]
		}
	}
	return sum, nil
}

// SumIJ is the lattice sum of the propagator from an atom to the lattice of
// another atom displaced by d:
//
//	L_lm(d) = -8pi k i^(l+1) sum_P (-1)^(l+m) Y_lm(d+P) h_l(k|d+P|) exp(-i kIn.P)
//
// It returns L(d) and L(-d), both up to lMax.
func SumIJ(k complex128, kIn, a1, a2 [2]float64, d [3]float64, lMax int, eps float64) (plus, minus []complex128, err error) {
	r, err := sumRadius(k, eps)
	if err != nil {
		return nil, nil, err
	}
	n1Max, n2Max := latticeBounds(a1, a2, r+math.Hypot(d[0], d[1]))
	plus = make([]complex128, qm.LMCount(lMax))
	minus = make([]complex128, qm.LMCount(lMax))

	for n1 := -n1Max; n1 <= n1Max; n1++ {
		for n2 := -n2Max; n2 <= n2Max; n2++ {
			px := float64(n1)*a1[0] + float64(n2)*a2[0]
			py := float64(n1)*a1[1] + float64(n2)*a2[1]
			x, y, z := d[0]+px, d[1]+py, d[2]
			dist := math.Sqrt(x*x + y*y + z*z)
			if dist > r || dist < constants.GeometryTolerance {
				continue
			}
			h, err := qm.Hankel(k*complex(dist, 0), lMax)
			if err != nil {
				return nil, nil, err
			}
			ylm := qm.Ylm(lMax, complex(z/dist, 0), math.Atan2(y, x))
			phase := cmplx.Exp(complex(0, -(kIn[0]*px + kIn[1]*py)))
			for l := 0; l <= lMax; l++ {
				for m := -l; m <= l; m++ {
					i := qm.LMIndex(l, m)
					f := h[l] * ylm[i]
					plus[i] += complex(utils.MinusOnePow(l+m), 0) * f * phase
					minus[i] += complex(utils.MinusOnePow(m), 0) * f * cmplx.Conj(phase)
				}
			}
		}
	}

	pref := -8 * math.Pi * k * 1i
	for l := 0; l <= lMax; l++ {
		for m := -l; m <= l; m++ {
			i := qm.LMIndex(l, m)
			plus[i] *= pref
			minus[i] *= pref
		}
		pref *= 1i
	}
	return plus, minus, nil
}
