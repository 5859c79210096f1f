// Package qm holds the special functions of the scattering calculation:
// spherical Hankel and Bessel functions of complex argument, spherical
// harmonics of complex polar angle and Gaunt-type Clebsch-Gordan coefficients.
package qm

import (
	"errors"
	"math/cmplx"
)

var ErrZeroArgument = errors.New("qm: zero argument")

// Hankel returns the spherical Hankel functions of the first kind
// h_l(z) = j_l(z) + i y_l(z) for l = 0..lMax.
func Hankel(z complex128, lMax int) ([]complex128, error) {
	if z == 0 {
		return nil, ErrZeroArgument
	}
	h := make([]complex128, lMax+1)
	zInv := 1 / z
	h[0] = -1i * cmplx.Exp(1i*z) * zInv
	if lMax == 0 {
		return h, nil
	}
	h[1] = h[0] * (zInv - 1i)
	for l := 2; l <= lMax; l++ {
		h[l] = complex(float64(2*l-1), 0)*zInv*h[l-1] - h[l-2]
	}
	return h, nil
}
