package layer

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/qm"
)

// planeFirst reorders the atoms so that the most populated plane comes
// first and returns the number of atoms in it.
func planeFirst(atoms []crystal.Atom) ([]crystal.Atom, int) {
	best, count := 0, 0
	for i := range atoms {
		n := 0
		for j := range atoms {
			if math.Abs(atoms[j].Pos[2]-atoms[i].Pos[2]) < constants.GeometryTolerance {
				n++
			}
		}
		if n > count {
			best, count = i, n
		}
	}
	z := atoms[best].Pos[2]
	out := make([]crystal.Atom, 0, len(atoms))
	for _, a := range atoms {
		if math.Abs(a.Pos[2]-z) < constants.GeometryTolerance {
			out = append(out, a)
		}
	}
	for _, a := range atoms {
		if math.Abs(a.Pos[2]-z) >= constants.GeometryTolerance {
			out = append(out, a)
		}
	}
	return out, count
}

// Composite returns the diffraction matrices of a layer with several atoms
// per unit cell. All multiple scattering between the atoms is included
// through the matrix (I - T G)^-1 over all atoms, whose block for the most
// populated plane is inverted separately.
func Composite(c *Cache, e *Energy, lay *crystal.Layer, set []beams.Selected) (*Quadruple, error) {
	atoms, nPlane := planeFirst(lay.Atoms)

	lMax := 1
	diagonal := true
	for _, a := range atoms {
		t, err := e.tmatrix(a.Type)
		if err != nil {
			return nil, err
		}
		lMax = max(lMax, t.MaxL(e.Epsilon))
		diagonal = diagonal && t.IsDiagonal()
	}
	n := qm.LMCount(lMax)
	nAtoms := len(atoms)
	en := c.entry(e, lay, set, lMax)
	k := set[0].K
	kIn := [2]float64{set[0].Kx, set[0].Ky}

	ts := make([]*cmatrix.Matrix, nAtoms)
	for i, a := range atoms {
		tii, some := en.tiiComp[a.Type]
		if !some {
			t, err := e.tmatrix(a.Type)
			if err != nil {
				return nil, err
			}
			llm, err := en.planeSum(e, lay, set, lMax)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
			}
			if tii, err = tmatII(t, llm, lMax); err != nil {
				return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
			}
			tii = tii.Scale(-1 / (2 * k))
			en.tiiComp[a.Type] = tii
		}
		ts[i] = tii
	}

	mbg := cmatrix.New(nAtoms*n, nAtoms*n)
	for i := range nAtoms {
		for j := i + 1; j < nAtoms; j++ {
			var d [3]float64
			for x := range 3 {
				d[x] = atoms[j].Pos[x] - atoms[i].Pos[x]
			}
			lij, lji, err := SumIJ(k, kIn, lay.A1, lay.A2, d, 2*lMax, e.Epsilon)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
			}
			ji, err := tmatIJ(lij, ts[j], lMax)
			if err != nil {
				return nil, err
			}
			ij, err := tmatIJ(lji, ts[i], lMax)
			if err != nil {
				return nil, err
			}
			if err := cmatrix.Insert(mbg, ji, j*n, i*n); err != nil {
				return nil, err
			}
			if err := cmatrix.Insert(mbg, ij, i*n, j*n); err != nil {
				return nil, err
			}
		}
	}
	mbg.AddIdentity()

	inv, err := PartInv(mbg, nPlane, lMax, diagonal)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", lay.Index, err)
	}

	nb := len(set)
	rP, rM := cmatrix.New(nAtoms*n, nb), cmatrix.New(nAtoms*n, nb)
	lP, lM := cmatrix.New(nb, nAtoms*n), cmatrix.New(nb, nAtoms*n)
	pref := make([]complex128, nb)
	for x := range set {
		pref[x] = 1i * complex(-16*math.Pi*math.Pi/lay.RelArea, 0) * set[x].Akz
	}
	up, down := make([]complex128, nb), make([]complex128, nb)
	zMin, zMax := math.Inf(1), math.Inf(-1)
	for i, a := range atoms {
		z := a.Pos[2]
		zMin, zMax = min(zMin, z), max(zMax, z)
		for x := range set {
			up[x] = cmplx.Exp(1i * set[x].Kz * complex(z, 0))
			down[x] = 1 / up[x]
		}
		at := [2]float64{a.Pos[0] - lay.RegShift[0], a.Pos[1] - lay.RegShift[1]}
		outP, outM := en.yOut(set, lMax, lay.Bulk, at, pref)
		inP, inM := en.yIn(set, lMax, lay.Bulk, at)

		rp, err := cmatrix.Mul(ts[i], inM)
		if err != nil {
			return nil, err
		}
		rp.ScaleCols(up)
		rm, err := cmatrix.Mul(ts[i], inP)
		if err != nil {
			return nil, err
		}
		rm.ScaleCols(down)
		outM.ScaleRows(down)
		outP.ScaleRows(up)
		for _, b := range []struct {
			dst, src *cmatrix.Matrix
			r0, c0   int
		}{{rP, rp, i * n, 0}, {rM, rm, i * n, 0}, {lP, outM, 0, i * n}, {lM, outP, 0, i * n}} {
			if err := cmatrix.Insert(b.dst, b.src, b.r0, b.c0); err != nil {
				return nil, err
			}
		}
	}

	invRP, err := cmatrix.Mul(inv, rP)
	if err != nil {
		return nil, err
	}
	invRM, err := cmatrix.Mul(inv, rM)
	if err != nil {
		return nil, err
	}
	q := &Quadruple{}
	if q.Tpp, err = cmatrix.Mul(lP, invRP); err != nil {
		return nil, err
	}
	if q.Rmp, err = cmatrix.Mul(lM, invRP); err != nil {
		return nil, err
	}
	if q.Tmm, err = cmatrix.Mul(lM, invRM); err != nil {
		return nil, err
	}
	if q.Rpm, err = cmatrix.Mul(lP, invRM); err != nil {
		return nil, err
	}

	// move the reference planes to the outermost atoms
	top, bottom := make([]complex128, nb), make([]complex128, nb)
	for x := range set {
		top[x] = cmplx.Exp(1i * set[x].Kz * complex(zMax, 0))
		bottom[x] = cmplx.Exp(-1i * set[x].Kz * complex(zMin, 0))
	}
	q.Tpp.ScaleRows(top)
	q.Tpp.ScaleCols(bottom)
	q.Tmm.ScaleRows(bottom)
	q.Tmm.ScaleCols(top)
	q.Rpm.ScaleRows(top)
	q.Rpm.ScaleCols(top)
	q.Rmp.ScaleRows(bottom)
	q.Rmp.ScaleCols(bottom)
	for x := range set {
		q.Tpp.AddAt(x, x, top[x]*bottom[x])
		q.Tmm.AddAt(x, x, top[x]*bottom[x])
	}
	return q, nil
}
