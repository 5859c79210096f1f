package layer

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/tmatrix"
)

const a = 5.

var (
	a1 = [2]float64{a, 0}
	a2 = [2]float64{0, a}
)

func TestSumIISquareLattice(t *testing.T) {
	k := cmplx.Sqrt(complex(4, 0.3))
	llm, err := SumII(k, [2]float64{}, a1, a2, 6, 1e-3)
	require.NoError(t, err)

	assert.Greater(t, cmplx.Abs(llm[qm.LMIndex(0, 0)]), 1e-6)
	for l := 0; l <= 6; l++ {
		for m := -l; m <= l; m++ {
			if m%4 != 0 || (l+m)%2 != 0 {
				assert.InDelta(t, 0, cmplx.Abs(llm[qm.LMIndex(l, m)]), 1e-10, "l=%d m=%d", l, m)
			}
		}
	}
}

func TestSumIIRequiresDamping(t *testing.T) {
	_, err := SumII(2, [2]float64{}, a1, a2, 4, 1e-3)
	assert.ErrorIs(t, err, ErrDampingTooSmall)

	_, err = SumII(2, [2]float64{}, a1, a2, 4, 20)
	assert.ErrorIs(t, err, ErrDampingTooSmall, "a fixed radius still needs damping")

	_, _, err = SumIJ(complex(2, -0.1), [2]float64{}, a1, a2, [3]float64{0, 0, 1}, 4, 20)
	assert.ErrorIs(t, err, ErrDampingTooSmall)

	_, err = SumII(complex(2, 0.1), [2]float64{}, a1, a2, 4, 20)
	assert.NoError(t, err)
}

func TestSumIJOpposite(t *testing.T) {
	k := cmplx.Sqrt(complex(4, 0.3))
	kIn := [2]float64{0.3, -0.1}
	d := [3]float64{1.2, 0.7, -1.5}
	plus, minus, err := SumIJ(k, kIn, a1, a2, d, 4, 1e-3)
	require.NoError(t, err)
	back, _, err := SumIJ(k, kIn, a1, a2, [3]float64{-d[0], -d[1], -d[2]}, 4, 1e-3)
	require.NoError(t, err)

	for i := range minus {
		assert.InDelta(t, 0, cmplx.Abs(minus[i]-back[i]), 1e-8*cmplx.Abs(back[i])+1e-12, "lm=%d", i)
	}
	assert.Greater(t, cmplx.Abs(plus[0]), 0.)
}

func TestTmatIIWithoutNeighbours(t *testing.T) {
	const lMax = 3
	tm := tmatrix.TMatrix{Kind: phaseshift.Diagonal, LMax: lMax, Diag: []complex128{0.3 + 0.2i, -0.1 + 0.4i, 0.05i, 0.01}}
	tii, err := tmatII(tm, make([]complex128, qm.LMCount(2*lMax)), lMax)
	require.NoError(t, err)

	diag := make([]complex128, qm.LMCount(lMax))
	for l := 0; l <= lMax; l++ {
		for m := -l; m <= l; m++ {
			diag[qm.LMIndex(l, m)] = tm.Diag[l]
		}
	}
	assert.True(t, cmatrix.EqualApprox(cmatrix.Diagonal(diag), tii, 1e-15))
}

func TestPartInv(t *testing.T) {
	const lMax, nAtoms, nPlane = 1, 3, 2
	n := qm.LMCount(lMax)
	r := rand.New(rand.NewPCG(1, 2))
	m := cmatrix.New(nAtoms*n, nAtoms*n)
	for i := range nAtoms * n {
		for j := range nAtoms * n {
			li, lj := parityOf(i%n), parityOf(j%n)
			if i < nPlane*n && j < nPlane*n && li != lj {
				continue
			}
			m.Set(i, j, complex(r.Float64()-0.5, r.Float64()-0.5)*0.3)
		}
	}
	m.AddIdentity()

	want, err := cmatrix.Inverse(m)
	require.NoError(t, err)
	for _, diagonal := range []bool{true, false} {
		inv, err := PartInv(m, nPlane, lMax, diagonal)
		require.NoError(t, err)
		assert.True(t, cmatrix.EqualApprox(want, inv, 1e-10), "diagonal=%v", diagonal)
	}
}

func parityOf(lm int) int {
	for l := 0; ; l++ {
		if lm < qm.LMCount(l) {
			return (l + lm - qm.LMIndex(l, 0)) % 2
		}
	}
}

func singleAtomSetup(t *testing.T) (*Energy, *crystal.Layer, []beams.Selected) {
	t.Helper()
	c, err := crystal.New(crystal.Geometry{
		A1:   [3]float64{a, 0, 0},
		A2:   [3]float64{0, a, 0},
		A3:   [3]float64{0, 0, -a},
		Bulk: []crystal.Atom{{}},
		Vr:   -10 / constants.Hartree,
	})
	require.NoError(t, err)
	const eps = 1e-3
	const theta, phi, engV = 0.2, 0.4, 60 / constants.Hartree
	list := beams.Generate(c, theta, phi, eps, engV)
	engR := engV - c.Vr
	kPar := math.Sin(theta) * math.Sqrt(2*engV)
	kIn := [2]float64{kPar * math.Cos(phi), kPar * math.Sin(phi)}
	set := beams.Select(list, engR, 0.15, kIn, eps, c.DMin)
	require.NotEmpty(t, set)

	e := &Energy{
		Eng:     engR,
		LMax:    3,
		Epsilon: eps,
		T: []tmatrix.TMatrix{{
			Kind: phaseshift.Diagonal,
			LMax: 3,
			Diag: []complex128{0.4 + 0.3i, -0.2 + 0.25i, 0.1 + 0.05i, 0.02 + 0.01i},
		}},
	}
	return e, &c.Bulk[0], set
}

func TestCompositeSingleAtomMatchesBravais(t *testing.T) {
	e, lay, set := singleAtomSetup(t)
	cache := NewCache()

	brav, err := Bravais(cache, e, lay, set)
	require.NoError(t, err)
	comp, err := Composite(cache, e, lay, set)
	require.NoError(t, err)

	tol := 1e-9 * brav.Rpm.MaxAbs()
	assert.True(t, cmatrix.EqualApprox(brav.Tpp, comp.Tpp, tol), "Tpp")
	assert.True(t, cmatrix.EqualApprox(brav.Tmm, comp.Tmm, tol), "Tmm")
	assert.True(t, cmatrix.EqualApprox(brav.Rpm, comp.Rpm, tol), "Rpm")
	assert.True(t, cmatrix.EqualApprox(brav.Rmp, comp.Rmp, tol), "Rmp")
}

func TestCompositeSplitAtomsDiffer(t *testing.T) {
	e, lay, set := singleAtomSetup(t)
	cache := NewCache()
	brav, err := Bravais(cache, e, lay, set)
	require.NoError(t, err)

	pair := *lay
	pair.Atoms = []crystal.Atom{{}, {Pos: [3]float64{a / 2, a / 2, -1.8}}}
	q, err := Scatter(cache, e, &pair, set)
	require.NoError(t, err)

	assert.Equal(t, brav.Rpm.Rows(), q.Rpm.Rows())
	assert.False(t, cmatrix.EqualApprox(brav.Rpm, q.Rpm, 1e-6))
}

// asFull returns e with its diagonal scattering matrix stored as a full one.
func asFull(e *Energy) *Energy {
	diag := e.T[0]
	n := qm.LMCount(diag.LMax)
	tl := make([]complex128, n)
	for l := 0; l <= diag.LMax; l++ {
		for m := -l; m <= l; m++ {
			tl[qm.LMIndex(l, m)] = diag.Diag[l]
		}
	}
	full := *e
	full.T = []tmatrix.TMatrix{{Kind: phaseshift.NonDiagonal, LMax: diag.LMax, Full: cmatrix.Diagonal(tl)}}
	return &full
}

func TestNonDiagonalCompositeMatchesBravais(t *testing.T) {
	e, lay, set := singleAtomSetup(t)
	full := asFull(e)
	cache := NewCache()

	brav, err := Bravais(cache, full, lay, set)
	require.NoError(t, err)
	comp, err := Composite(cache, full, lay, set)
	require.NoError(t, err)

	tol := 1e-9 * brav.Rpm.MaxAbs()
	assert.True(t, cmatrix.EqualApprox(brav.Tpp, comp.Tpp, tol), "Tpp")
	assert.True(t, cmatrix.EqualApprox(brav.Rpm, comp.Rpm, tol), "Rpm")
	assert.True(t, cmatrix.EqualApprox(brav.Rmp, comp.Rmp, tol), "Rmp")
}

func TestNonDiagonalCloseToDiagonal(t *testing.T) {
	e, lay, set := singleAtomSetup(t)

	diag, err := Bravais(NewCache(), e, lay, set)
	require.NoError(t, err)
	full, err := Bravais(NewCache(), asFull(e), lay, set)
	require.NoError(t, err)

	// the two paths differ in the transposition of the plane matrix
	tol := 0.05 * diag.Rpm.MaxAbs()
	assert.True(t, cmatrix.EqualApprox(diag.Rpm, full.Rpm, tol), "Rpm")
}

func TestScatterMissingType(t *testing.T) {
	e, lay, set := singleAtomSetup(t)
	bad := *lay
	bad.Atoms = []crystal.Atom{{Type: 2}}
	_, err := Scatter(NewCache(), e, &bad, set)
	assert.Error(t, err)
}
