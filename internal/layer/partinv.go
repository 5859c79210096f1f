package layer

import (
	"fmt"

	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/qm"
)

// parityIndex splits the indices of nAtoms consecutive (l,m) blocks into
// those with even and odd l+m.
func parityIndex(nAtoms, lMax int) (even, odd []int) {
	n := qm.LMCount(lMax)
	for a := range nAtoms {
		for l := 0; l <= lMax; l++ {
			for m := -l; m <= l; m++ {
				i := a*n + qm.LMIndex(l, m)
				if (l+m)%2 == 0 {
					even = append(even, i)
				} else {
					odd = append(odd, i)
				}
			}
		}
	}
	return
}

// invertParity inverts a matrix over nAtoms (l,m) blocks which does not
// couple even and odd l+m. Elements coupling the two parities are ignored.
func invertParity(m *cmatrix.Matrix, nAtoms, lMax int) (*cmatrix.Matrix, error) {
	out := cmatrix.New(m.Rows(), m.Cols())
	even, odd := parityIndex(nAtoms, lMax)
	for _, idx := range [][]int{even, odd} {
		if len(idx) == 0 {
			continue
		}
		sub := cmatrix.New(len(idx), len(idx))
		for i, r := range idx {
			for j, c := range idx {
				sub.Set(i, j, m.At(r, c))
			}
		}
		inv, err := cmatrix.Inverse(sub)
		if err != nil {
			return nil, err
		}
		for i, r := range idx {
			for j, c := range idx {
				out.Set(r, c, inv.At(i, j))
			}
		}
	}
	return out, nil
}

// PartInv inverts the multiple scattering matrix of a composite layer whose
// first nPlane atoms lie in one plane. For diagonal scattering matrices the
// plane block (upper left) does not couple parities and is inverted in two
// halves; the rest follows from
//
//	S = (LR - LL UL^-1 UR)^-1,  R = -S LL UL^-1
//	Q = -UL^-1 UR S,            P = UL^-1 + UL^-1 UR S LL UL^-1
func PartInv(m *cmatrix.Matrix, nPlane, lMax int, diagonal bool) (*cmatrix.Matrix, error) {
	size := m.Rows()
	nUL := nPlane * qm.LMCount(lMax)
	ul, err := m.Extract(0, 0, nUL, nUL)
	if err != nil {
		return nil, err
	}
	var ulInv *cmatrix.Matrix
	if diagonal {
		ulInv, err = invertParity(ul, nPlane, lMax)
	} else {
		ulInv, err = cmatrix.Inverse(ul)
	}
	if err != nil {
		return nil, fmt.Errorf("partitioned inversion, plane block: %w", err)
	}
	if nUL == size {
		return ulInv, nil
	}

	nLR := size - nUL
	ur, err := m.Extract(0, nUL, nUL, nLR)
	if err != nil {
		return nil, err
	}
	ll, err := m.Extract(nUL, 0, nLR, nUL)
	if err != nil {
		return nil, err
	}
	lr, err := m.Extract(nUL, nUL, nLR, nLR)
	if err != nil {
		return nil, err
	}

	llUL, err := cmatrix.Mul(ll, ulInv)
	if err != nil {
		return nil, err
	}
	llULur, err := cmatrix.Mul(llUL, ur)
	if err != nil {
		return nil, err
	}
	schur, err := cmatrix.Sub(lr, llULur)
	if err != nil {
		return nil, err
	}
	s, err := cmatrix.Inverse(schur)
	if err != nil {
		return nil, fmt.Errorf("partitioned inversion, complement: %w", err)
	}
	ulUR, err := cmatrix.Mul(ulInv, ur)
	if err != nil {
		return nil, err
	}

	r, err := cmatrix.Mul(s, llUL)
	if err != nil {
		return nil, err
	}
	r = r.Scale(-1)
	q, err := cmatrix.Mul(ulUR, s)
	if err != nil {
		return nil, err
	}
	qll, err := cmatrix.Mul(q, llUL)
	if err != nil {
		return nil, err
	}
	p, err := cmatrix.Add(ulInv, qll)
	if err != nil {
		return nil, err
	}
	q = q.Scale(-1)

	inv := cmatrix.New(size, size)
	for _, b := range []struct {
		m      *cmatrix.Matrix
		r0, c0 int
	}{{p, 0, 0}, {q, 0, nUL}, {r, nUL, 0}, {s, nUL, nUL}} {
		if err := cmatrix.Insert(inv, b.m, b.r0, b.c0); err != nil {
			return nil, err
		}
	}
	return inv, nil
}
