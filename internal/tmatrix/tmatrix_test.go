package tmatrix

import (
	"math"
	"math/cmplx"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/qm"
)

func TestTL(t *testing.T) {
	tl := TL([]float64{0, math.Pi / 2, 0.3})
	assert.Equal(t, complex128(0), tl[0])
	assert.InDelta(t, 0., cmplx.Abs(tl[1]-1i), 1e-15)
	assert.InDelta(t, 0., cmplx.Abs(tl[2]-complex(math.Sin(0.3), 0)*cmplx.Exp(0.3i)), 1e-15)
}

func TestDebyeWithoutVibrationIsIdentity(t *testing.T) {
	tl := TL([]float64{0.9, -0.4, 0.25, 0.05})
	out := DebyeCorrect(tl, 0, 1.5, 5)
	require.Len(t, out, 6)
	for l := range tl {
		assert.InDelta(t, 0., cmplx.Abs(out[l]-tl[l]), 1e-13, "l=%d", l)
	}
	assert.InDelta(t, 0., cmplx.Abs(out[4]), 1e-15)
	assert.InDelta(t, 0., cmplx.Abs(out[5]), 1e-15)

	truncated := DebyeCorrect(tl, 0, 1.5, 1)
	require.Len(t, truncated, 2)
	assert.InDelta(t, 0., cmplx.Abs(truncated[1]-tl[1]), 1e-13)
}

func TestDebyeSpreadsIntoHigherL(t *testing.T) {
	tl := TL([]float64{0.9, -0.4, 0.25, 0.05})
	hot := DebyeCorrect(tl, 0.05, 3., 6)
	assert.Greater(t, cmplx.Abs(hot[5]), 0.)
	assert.Greater(t, cmplx.Abs(hot[6]), 0.)
}

func TestMomentsSquareToIdentity(t *testing.T) {
	lMax := 4
	ms, err := NewMoments(lMax)
	require.NoError(t, err)
	sum, err := cmatrix.Add(ms.MM[0], ms.MM[1])
	require.NoError(t, err)
	sum, err = cmatrix.Add(sum, ms.MM[2])
	require.NoError(t, err)

	for l1 := 0; l1 < lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			for l3 := 0; l3 < lMax; l3++ {
				for m3 := -l3; m3 <= l3; m3++ {
					want := complex128(0)
					if l1 == l3 && m1 == m3 {
						want = 1
					}
					got := sum.At(qm.LMIndex(l1, m1), qm.LMIndex(l3, m3))
					assert.InDelta(t, 0., cmplx.Abs(got-want), 1e-12, "(%d %d, %d %d)", l1, m1, l3, m3)
				}
			}
		}
	}
	first, err := MomentsFor(3)
	require.NoError(t, err)
	second, err := MomentsFor(3)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCumulantWithoutVibrationIsDiagonal(t *testing.T) {
	tl := TL([]float64{0.9, -0.4, 0.25})
	m, err := Cumulant(tl, [3]float64{}, 2., 3)
	require.NoError(t, err)
	require.Equal(t, 16, m.Rows())
	for l := 0; l <= 3; l++ {
		for mm := -l; mm <= l; mm++ {
			i := qm.LMIndex(l, mm)
			want := complex128(0)
			if l < len(tl) {
				want = tl[l]
			}
			assert.InDelta(t, 0., cmplx.Abs(m.At(i, i)-want), 1e-14)
		}
	}
	assert.InDelta(t, 0., m.AbsSum()-diagAbsSum(m), 1e-15)
}

func TestCumulantIsotropicMatchesDebye(t *testing.T) {
	tl := TL([]float64{0.9, -0.4, 0.25, 0.05})
	lMax := 10
	for _, c := range []struct{ u, energy float64 }{{0.05, 2}, {0.1, 4}, {0.2, 8}} {
		m, err := Cumulant(tl, [3]float64{c.u, c.u, c.u}, c.energy, lMax)
		require.NoError(t, err)
		debye := DebyeCorrect(tl, 3*c.u*c.u, c.energy, lMax)
		for l := 0; l <= lMax/2; l++ {
			for mm := -l; mm <= l; mm++ {
				i := qm.LMIndex(l, mm)
				assert.InDelta(t, 0., cmplx.Abs(m.At(i, i)-debye[l]), 1e-5, "u=%g E=%g l=%d m=%d", c.u, c.energy, l, mm)
			}
		}
		assert.InDelta(t, 0., m.AbsSum()-diagAbsSum(m), 1e-8, "u=%g E=%g", c.u, c.energy)
	}
}

func TestCumulantNotConverged(t *testing.T) {
	tl := TL([]float64{0.9, -0.4, 0.25, 0.05})
	_, err := Cumulant(tl, [3]float64{10, 10, 10}, 50, 3)
	assert.ErrorIs(t, err, ErrCumulantNotConverged)
}

func diagAbsSum(m *cmatrix.Matrix) (s float64) {
	for i := range m.Rows() {
		s += cmplx.Abs(m.At(i, i))
	}
	return
}

func TestBuildDispatchesOnKind(t *testing.T) {
	set, err := phaseshift.Read(strings.NewReader("2 2\n1.0\n0.1 0.2 0.3\n3.0\n0.3 0.4 0.5\n"), "test")
	require.NoError(t, err)

	set.Kind = phaseshift.Diagonal
	diag, extrapolated, err := Build(set, 2., 4)
	require.NoError(t, err)
	assert.False(t, extrapolated)
	assert.True(t, diag.IsDiagonal())
	assert.Len(t, diag.Diag, 5)
	assert.Nil(t, diag.Full)
	assert.Equal(t, 2, diag.MaxL(1e-6))

	set.Kind = phaseshift.NonDiagonal
	full, extrapolated, err := Build(set, 4., 4)
	require.NoError(t, err)
	assert.True(t, extrapolated)
	assert.Equal(t, 25, full.Full.Rows())
	assert.Equal(t, 4, full.MaxL(1e-6))

	_, _, err = Build(set, 0.5, 4)
	assert.ErrorIs(t, err, phaseshift.ErrEnergyOutOfRange)
}
