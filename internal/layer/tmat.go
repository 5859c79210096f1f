package layer

import (
	"fmt"

	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/tmatrix"
	"github.com/wildstyl3r/cleed/internal/utils"
)

// planePropagator is the in-plane propagator contracted from the lattice
// sum llm (up to 2 lMax):
//
//	G(l1m1,l2m2) = -i sum_l3 (-1)^((l1-l2-l3)/2 - m2) G(l1m1,l2m2,l3) L(l3, m2-m1)
func planePropagator(llm []complex128, lMax int) *cmatrix.Matrix {
	gt := gauntFor(lMax)
	n := qm.LMCount(lMax)
	g := cmatrix.New(n, n)
	for l1 := 0; l1 <= lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			lm1 := qm.LMIndex(l1, m1)
			for l2 := 0; l2 <= lMax; l2++ {
				for m2 := -l2; m2 <= l2; m2++ {
					lm2 := qm.LMIndex(l2, m2)
					m3 := m2 - m1
					var s complex128
					for l3 := l3Min(l1, l2, m3); l3 <= l1+l2; l3 += 2 {
						sign := utils.MinusOnePow((l1-l2-l3)/2 - m2)
						s += complex(sign*gt.at(lm1, lm2, l3), 0) * llm[qm.LMIndex(l3, m3)]
					}
					g.Set(lm1, lm2, -1i*s)
				}
			}
		}
	}
	return g
}

// tmatII is the scattering matrix of a Bravais plane of atoms with the
// scattering matrix t, including all multiple scattering inside the plane.
// Diagonal types are inverted block by block in the parity of l+m and the
// result is transposed; non-diagonal types are computed as
// t (I + G t)^-1 with a phase i^(l2-l1).
func tmatII(t tmatrix.TMatrix, llm []complex128, lMax int) (*cmatrix.Matrix, error) {
	g := planePropagator(llm, lMax)
	n := qm.LMCount(lMax)

	if t.IsDiagonal() {
		tl := make([]complex128, n)
		for l := 0; l <= lMax; l++ {
			for m := -l; m <= l; m++ {
				tl[qm.LMIndex(l, m)] = t.Diag[l]
			}
		}
		g.ScaleRows(tl)
		g.AddIdentity()
		inv, err := invertParity(g, 1, lMax)
		if err != nil {
			return nil, fmt.Errorf("plane scattering matrix: %w", err)
		}
		tii := cmatrix.New(n, n)
		for l1 := 0; l1 <= lMax; l1++ {
			for m1 := -l1; m1 <= l1; m1++ {
				lm1 := qm.LMIndex(l1, m1)
				for l2 := 0; l2 <= lMax; l2++ {
					for m2 := -l2; m2 <= l2; m2++ {
						lm2 := qm.LMIndex(l2, m2)
						tii.Set(lm2, lm1, utils.IPow(l1-l2)*inv.At(lm1, lm2)*t.Diag[l2])
					}
				}
			}
		}
		return tii, nil
	}

	if t.Full.Rows() != n {
		return nil, fmt.Errorf("plane scattering matrix: %w: t has %d rows, need %d",
			cmatrix.ErrDimensionMismatch, t.Full.Rows(), n)
	}
	m, err := cmatrix.Mul(g, t.Full)
	if err != nil {
		return nil, err
	}
	m.AddIdentity()
	inv, err := cmatrix.Inverse(m)
	if err != nil {
		return nil, fmt.Errorf("plane scattering matrix: %w", err)
	}
	tii, err := cmatrix.Mul(t.Full, inv)
	if err != nil {
		return nil, err
	}
	for l1 := 0; l1 <= lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			row := tii.Row(qm.LMIndex(l1, m1))
			for l2 := 0; l2 <= lMax; l2++ {
				ph := utils.IPow(l2 - l1)
				for m2 := -l2; m2 <= l2; m2++ {
					row[qm.LMIndex(l2, m2)] *= ph
				}
			}
		}
	}
	return tii, nil
}

// tmatIJ is tii times the propagator from the lattice of atom i to the
// lattice of atom j built from the lattice sum llm (up to 2 lMax):
//
//	G(l1m1,l2m2) = sum_l3 (-1)^(m2+1) G(l1m1,l2m2,l3) L(l3, m2-m1)
func tmatIJ(llm []complex128, tii *cmatrix.Matrix, lMax int) (*cmatrix.Matrix, error) {
	gt := gauntFor(lMax)
	n := qm.LMCount(lMax)
	g := cmatrix.New(n, n)
	for l1 := 0; l1 <= lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			lm1 := qm.LMIndex(l1, m1)
			for l2 := 0; l2 <= lMax; l2++ {
				for m2 := -l2; m2 <= l2; m2++ {
					lm2 := qm.LMIndex(l2, m2)
					m3 := m2 - m1
					var s complex128
					for l3 := l3Min(l1, l2, m3); l3 <= l1+l2; l3 += 2 {
						s += complex(gt.at(lm1, lm2, l3), 0) * llm[qm.LMIndex(l3, m3)]
					}
					g.Set(lm1, lm2, complex(utils.MinusOnePow(m2+1), 0)*s)
				}
			}
		}
	}
	return cmatrix.Mul(tii, g)
}
