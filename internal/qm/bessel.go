package qm

import (
	"math"
	"math/cmplx"
)

const millerRescale = 1e150

// Bessel returns the spherical Bessel functions j_l(z), l = 0..lMax.
// Orders up to |z| come from upward recurrence; higher orders from Miller's
// downward recurrence normalised to the upward values.
func Bessel(z complex128, lMax int) []complex128 {
	j := make([]complex128, lMax+1)
	if z == 0 {
		j[0] = 1
		return j
	}
	zInv := 1 / z
	j[0] = cmplx.Sin(z) * zInv
	if lMax == 0 {
		return j
	}

	// j_1 by upward recurrence cancels badly for |z| < 1
	lUp := min(int(cmplx.Abs(z)), lMax)
	if lUp >= 1 {
		j[1] = (j[0] - cmplx.Cos(z)) * zInv
	}
	for l := 2; l <= lUp; l++ {
		j[l] = complex(float64(2*l-1), 0)*zInv*j[l-1] - j[l-2]
	}
	if lUp >= lMax {
		return j
	}

	lStart := lMax + int(math.Sqrt(40.*float64(lMax))) + 1
	down := make([]complex128, lStart+2)
	down[lStart] = 1e-30
	for l := lStart; l > 0; l-- {
		down[l-1] = complex(float64(2*l+1), 0)*zInv*down[l] - down[l+1]
		if cmplx.Abs(down[l-1]) > millerRescale {
			for i := l - 1; i <= lStart; i++ {
				down[i] /= millerRescale
			}
		}
	}

	scale := j[0] / down[0]
	if lUp >= 1 && cmplx.Abs(j[1]) > cmplx.Abs(j[0]) {
		scale = j[1] / down[1]
	}
	for l := lUp + 1; l <= lMax; l++ {
		j[l] = down[l] * scale
	}
	return j
}
