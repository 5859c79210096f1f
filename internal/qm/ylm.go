package qm

import (
	"math"
	"math/cmplx"
)

// LMIndex is the natural (l,m) order: index = l(l+1)+m.
func LMIndex(l, m int) int {
	return l*(l+1) + m
}

// LMCount is the number of (l,m) pairs with l <= lMax.
func LMCount(lMax int) int {
	return (lMax + 1) * (lMax + 1)
}

// Ylm returns the spherical harmonics Y_lm (Condon-Shortley phase) for
// l = 0..lMax in natural order. The polar angle enters through its cosine,
// which may be complex for evanescent waves.
func Ylm(lMax int, cosTheta complex128, phi float64) []complex128 {
	y := make([]complex128, LMCount(lMax))
	sinTheta := cmplx.Sqrt(1 - cosTheta*cosTheta)

	// p[l] holds P_l^m without the Condon-Shortley phase for the current m
	p := make([]complex128, lMax+1)
	pmm := complex(1, 0)
	for m := 0; m <= lMax; m++ {
		if m > 0 {
			pmm *= complex(float64(2*m-1), 0) * sinTheta
		}
		p[m] = pmm
		if m < lMax {
			p[m+1] = cosTheta * complex(float64(2*m+1), 0) * pmm
		}
		for l := m + 2; l <= lMax; l++ {
			p[l] = (complex(float64(2*l-1), 0)*cosTheta*p[l-1] - complex(float64(l+m-1), 0)*p[l-2]) / complex(float64(l-m), 0)
		}

		ePlus := cmplx.Exp(complex(0, float64(m)*phi))
		eMinus := cmplx.Exp(complex(0, -float64(m)*phi))
		sign := 1.
		if m%2 == 1 {
			sign = -1.
		}
		for l := m; l <= lMax; l++ {
			norm := math.Sqrt(float64(2*l+1) / (4 * math.Pi) * math.Exp(lnFactorial(l-m)-lnFactorial(l+m)))
			y[LMIndex(l, m)] = complex(sign*norm, 0) * p[l] * ePlus
			if m > 0 {
				y[LMIndex(l, -m)] = complex(norm, 0) * p[l] * eMinus
			}
		}
	}
	return y
}
