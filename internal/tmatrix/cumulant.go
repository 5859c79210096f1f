package tmatrix

import (
	"fmt"
	"math"
	"sync"

	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/utils"
)

const cumulantTolerance = 1e-6

// Moments holds the position operators x, y, z in the (l,m) basis and
// their squares, up to LMax.
type Moments struct {
	LMax  int
	M, MM [3]*cmatrix.Matrix
}

var (
	momentsMu    sync.Mutex
	momentsCache = map[int]*Moments{}
)

// MomentsFor returns the shared, read-only moments for lMax.
func MomentsFor(lMax int) (*Moments, error) {
	momentsMu.Lock()
	defer momentsMu.Unlock()
	if m, some := momentsCache[lMax]; some {
		return m, nil
	}
	m, err := NewMoments(lMax)
	if err != nil {
		return nil, err
	}
	momentsCache[lMax] = m
	return m, nil
}

// NewMoments builds Mx, My, Mz from Clebsch-Gordan coefficients:
//
//	Mz(l1m1,l3m3) = sqrt(4pi/3) i^(l3-l1) (-1)^m3 cg(l1,m1,1,0,l3,m3)
//	Mx = (Mm - Mp)/sqrt(2),  My = i (Mm + Mp)/sqrt(2)
//
// with Mp and Mm using m2 = -1 and m2 = +1.
func NewMoments(lMax int) (*Moments, error) {
	n := qm.LMCount(lMax)
	mx, my, mz := cmatrix.New(n, n), cmatrix.New(n, n), cmatrix.New(n, n)
	sq4pi3 := math.Sqrt(4 * math.Pi / 3)
	for l1 := 0; l1 <= lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			row := qm.LMIndex(l1, m1)
			for l3 := 0; l3 <= lMax; l3++ {
				phase := utils.IPow(l3 - l1)
				for m3 := -l3; m3 <= l3; m3++ {
					col := qm.LMIndex(l3, m3)
					pref := complex(sq4pi3*utils.MinusOnePow(m3), 0) * phase
					z := pref * complex(qm.CG(l1, m1, 1, 0, l3, m3), 0)
					p := pref * complex(qm.CG(l1, m1, 1, -1, l3, m3), 0)
					m := pref * complex(qm.CG(l1, m1, 1, 1, l3, m3), 0)
					mz.Set(row, col, z)
					mx.Set(row, col, (m-p)*math.Sqrt2/2)
					my.Set(row, col, 1i*(m+p)*math.Sqrt2/2)
				}
			}
		}
	}
	ms := &Moments{LMax: lMax, M: [3]*cmatrix.Matrix{mx, my, mz}}
	for a := range ms.M {
		var err error
		if ms.MM[a], err = cmatrix.Mul(ms.M[a], ms.M[a]); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// Cumulant builds the non-diagonal scattering matrix of an atom vibrating
// with rms amplitudes u [bohr] along x, y, z at energy [Hartree]:
//
//	T_0 = -t_l/k,  T_n = -k^2/n sum_a u_a^2 (MaMa T + T MaMa - 2 Ma T Ma)
//
// summed until the relative change drops below 1e-6 (lMax+1)^4.
func Cumulant(tl []complex128, u [3]float64, energy float64, lMax int) (*cmatrix.Matrix, error) {
	kappa := math.Sqrt(2 * energy)
	n := qm.LMCount(lMax)
	t0 := cmatrix.New(n, n)
	for l := 0; l <= min(len(tl)-1, lMax); l++ {
		for m := -l; m <= l; m++ {
			i := qm.LMIndex(l, m)
			t0.Set(i, i, -tl[l]/complex(kappa, 0))
		}
	}

	if u[0] < constants.GeometryTolerance && u[1] < constants.GeometryTolerance && u[2] < constants.GeometryTolerance {
		return t0.Scale(complex(-kappa, 0)), nil
	}

	ms, err := MomentsFor(lMax)
	if err != nil {
		return nil, err
	}
	limit := cumulantTolerance * float64(n*n)
	acc := t0.Clone()
	tn := t0
	for iter := 1; iter <= constants.CumulantMaxIterations; iter++ {
		next := cmatrix.New(n, n)
		for a := range 3 {
			if u[a] == 0 {
				continue
			}
			left, err := cmatrix.Mul(ms.MM[a], tn)
			if err != nil {
				return nil, err
			}
			right, err := cmatrix.Mul(tn, ms.MM[a])
			if err != nil {
				return nil, err
			}
			sandwich, err := cmatrix.Product(ms.M[a], tn, ms.M[a])
			if err != nil {
				return nil, err
			}
			w := complex(u[a]*u[a], 0)
			for i := range n {
				for j := range n {
					next.AddAt(i, j, w*(left.At(i, j)+right.At(i, j)-2*sandwich.At(i, j)))
				}
			}
		}
		next = next.Scale(complex(-kappa*kappa/float64(iter), 0))

		var errR, errI float64
		for i := range n {
			for j := range n {
				d := next.At(i, j)
				acc.AddAt(i, j, d)
				s := acc.At(i, j)
				if real(s) != 0 {
					errR += math.Abs(real(d) / real(s))
				}
				if imag(s) != 0 {
					errI += math.Abs(imag(d) / imag(s))
				}
			}
		}
		if errR <= limit && errI <= limit {
			return acc.Scale(complex(-kappa, 0)), nil
		}
		tn = next
	}
	return nil, fmt.Errorf("%w after %d iterations (u = %.4g %.4g %.4g)",
		ErrCumulantNotConverged, constants.CumulantMaxIterations, u[0], u[1], u[2])
}
