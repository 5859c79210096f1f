package qm

import (
	"math"

	"github.com/wildstyl3r/cleed/internal/utils"
)

const maxFactorial = 170

var factorials = func() []float64 {
	f := make([]float64, maxFactorial+1)
	f[0] = 1
	for i := 1; i <= maxFactorial; i++ {
		f[i] = f[i-1] * float64(i)
	}
	return f
}()

func factorial(n int) float64 {
	if n <= maxFactorial {
		return factorials[n]
	}
	return math.Exp(lnFactorial(n))
}

func lnFactorial(n int) float64 {
	if n <= maxFactorial {
		return math.Log(factorials[n])
	}
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}

// Wigner3j evaluates the 3j symbol (j1 j2 j3; m1 m2 m3) with the Racah formula.
func Wigner3j(j1, j2, j3, m1, m2, m3 int) float64 {
	if m1+m2+m3 != 0 ||
		utils.IntAbs(m1) > j1 || utils.IntAbs(m2) > j2 || utils.IntAbs(m3) > j3 ||
		j3 < utils.IntAbs(j1-j2) || j3 > j1+j2 {
		return 0
	}
	kMin := max(0, j2-j3-m1, j1-j3+m2)
	kMax := min(j1+j2-j3, j1-m1, j2+m2)
	var sum float64
	for k := kMin; k <= kMax; k++ {
		term := 1. / (factorial(k) * factorial(j3-j2+k+m1) * factorial(j3-j1+k-m2) *
			factorial(j1+j2-j3-k) * factorial(j1-k-m1) * factorial(j2-k+m2))
		if k%2 == 1 {
			term = -term
		}
		sum += term
	}
	triangle := factorial(j1+j2-j3) * factorial(j1-j2+j3) * factorial(-j1+j2+j3) / factorial(j1+j2+j3+1)
	norm := math.Sqrt(triangle * factorial(j1+m1) * factorial(j1-m1) * factorial(j2+m2) *
		factorial(j2-m2) * factorial(j3+m3) * factorial(j3-m3))
	if utils.IntAbs(j1-j2-m3)%2 == 1 {
		norm = -norm
	}
	return norm * sum
}

// Gaunt is the integral of Y_{l1m1} Y_{l2m2} Y_{l3m3} over the unit sphere.
func Gaunt(l1, m1, l2, m2, l3, m3 int) float64 {
	if (l1+l2+l3)%2 == 1 || m1+m2+m3 != 0 {
		return 0
	}
	pref := math.Sqrt(float64((2*l1+1)*(2*l2+1)*(2*l3+1)) / (4 * math.Pi))
	return pref * Wigner3j(l1, l2, l3, 0, 0, 0) * Wigner3j(l1, l2, l3, m1, m2, m3)
}

// CG is the coupling coefficient used throughout the layer code:
// the integral of Y_{l2m2} Y_{l1,-m1} Y_{l3m3}. It vanishes unless
// m1 = m2 + m3 and l1 + l2 + l3 is even.
func CG(l1, m1, l2, m2, l3, m3 int) float64 {
	if m1 != m2+m3 {
		return 0
	}
	return Gaunt(l2, m2, l1, -m1, l3, m3)
}
