package layer

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/crystal"
)

// Bravais returns the diffraction matrices of a layer with one atom per
// unit cell:
//
//	Tpp = Yout+ Tii Yin+ + I    Rpm = Yout+ Tii Yin-
//	Tmm = Yout- Tii Yin- + I    Rmp = Yout- Tii Yin+
func Bravais(c *Cache, e *Energy, lay *crystal.Layer, set []beams.Selected) (*Quadruple, error) {
	if !lay.IsBravais() {
		return nil, fmt.Errorf("layer %d: %d atoms in a Bravais layer", lay.Index, len(lay.Atoms))
	}
	atom := lay.Atoms[0]
	en := c.entry(e, lay, set, e.LMax)

	tii, some := en.tii[atom.Type]
	if !some {
		t, err := e.tmatrix(atom.Type)
		if err != nil {
			return nil, err
		}
		llm, err := en.planeSum(e, lay, set, e.LMax)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
		}
		if tii, err = tmatII(t, llm, e.LMax); err != nil {
			return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
		}
		en.tii[atom.Type] = tii
	}

	k := set[0].K
	pref := make([]complex128, len(set))
	for i := range set {
		pref[i] = 1i * complex(8*math.Pi*math.Pi/lay.RelArea, 0) / k * set[i].Akz
	}
	at := [2]float64{atom.Pos[0] - lay.RegShift[0], atom.Pos[1] - lay.RegShift[1]}
	outP, outM := en.yOut(set, e.LMax, lay.Bulk, at, pref)
	inP, inM := en.yIn(set, e.LMax, lay.Bulk, at)

	tInP, err := cmatrix.Mul(tii, inP)
	if err != nil {
		return nil, err
	}
	tInM, err := cmatrix.Mul(tii, inM)
	if err != nil {
		return nil, err
	}
	q := &Quadruple{}
	for _, p := range []struct {
		dst      **cmatrix.Matrix
		out, in  *cmatrix.Matrix
		identity bool
	}{
		{&q.Tpp, outP, tInP, true},
		{&q.Rpm, outP, tInM, false},
		{&q.Tmm, outM, tInM, true},
		{&q.Rmp, outM, tInP, false},
	} {
		if *p.dst, err = cmatrix.Mul(p.out, p.in); err != nil {
			return nil, err
		}
		if p.identity {
			(*p.dst).AddIdentity()
		}
	}
	return q, nil
}
