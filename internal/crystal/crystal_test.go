package crystal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	a = 6.8
	d = 3.4
)

func assertVec(t *testing.T, want, got [3]float64, msg string) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-12, "%s[%d]", msg, i)
	}
}

func centered() Geometry {
	return Geometry{
		A1: [3]float64{a, 0, 0},
		A2: [3]float64{0, a, 0},
		A3: [3]float64{0, 0, -2 * d},
		Bulk: []Atom{
			{Pos: [3]float64{a / 2, a / 2, -d}},
			{Pos: [3]float64{0, 0, 0}},
		},
	}
}

func TestSplitBulkTwoBravaisLayers(t *testing.T) {
	c, err := New(centered())
	require.NoError(t, err)
	require.Len(t, c.Bulk, 2)

	bottom, top := c.Bulk[0], c.Bulk[1]
	assert.True(t, bottom.IsBravais())
	assert.True(t, top.IsBravais())
	assert.True(t, bottom.Periodic)
	assert.True(t, top.Periodic)
	assert.Equal(t, [2]float64{a / 2, a / 2}, bottom.Origin)

	assertVec(t, [3]float64{a / 2, a / 2, d}, bottom.VecFromLast, "bottom from")
	assertVec(t, [3]float64{-a / 2, -a / 2, d}, bottom.VecToNext, "bottom to")
	assertVec(t, [3]float64{-a / 2, -a / 2, d}, top.VecFromLast, "top from")
	assertVec(t, [3]float64{}, top.VecToNext, "top to")
	assert.InDelta(t, d, c.DMin, 1e-12)

	for _, l := range c.Bulk {
		assertVec(t, [3]float64{}, l.Atoms[0].Pos, "local position")
	}
}

func TestSplitBulkMergesCloseRepeat(t *testing.T) {
	layers, err := SplitBulk([]Atom{
		{Pos: [3]float64{0, 0, 0}, Type: 0},
		{Pos: [3]float64{a / 2, a / 2, -2}, Type: 1},
	}, [2]float64{a, 0}, [2]float64{0, a}, [3]float64{0, 0, -3})
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.False(t, layers[1].Periodic)
	assert.True(t, layers[0].Periodic)
	require.Len(t, layers[0].Atoms, 2)
	assertVec(t, [3]float64{a / 2, a / 2, 0}, layers[0].Atoms[0].Pos, "own atom")
	assertVec(t, [3]float64{0, 0, -1}, layers[0].Atoms[1].Pos, "repeated atom")
	assert.InDelta(t, 2., layers[0].VecFromLast[2], 1e-12)
}

func TestSplitBulkRejectsThinCell(t *testing.T) {
	_, err := SplitBulk([]Atom{{Pos: [3]float64{0, 0, 0}}},
		[2]float64{a, 0}, [2]float64{0, a}, [3]float64{0, 0, -1})
	assert.ErrorIs(t, err, ErrLayerSplit)
}

func TestSuperstructureAndOverlayer(t *testing.T) {
	g := centered()
	g.Super = [2][2]float64{{2, 0}, {0, 2}}
	g.Over = []Atom{
		{Pos: [3]float64{1, 0, 4}},
		{Pos: [3]float64{0, 0, 2}},
	}
	c, err := New(g)
	require.NoError(t, err)

	assert.Equal(t, 4., c.RelAreaSup)
	assert.Equal(t, [2]float64{2 * a, 0}, c.B1)
	for i := range 2 {
		for j := range 2 {
			assert.InDelta(t, c.Recip[i][j]/2, c.RecipSuper[i][j], 1e-12)
		}
	}

	require.Len(t, c.Over, 2)
	for _, l := range c.Over {
		assert.False(t, l.Periodic)
		assert.Equal(t, 4., l.RelArea)
	}
	assertVec(t, [3]float64{0, 0, 2}, c.Over[0].VecFromLast, "first overlayer from")
	assertVec(t, [3]float64{1, 0, 2}, c.Over[0].VecToNext, "first overlayer to")
	assertVec(t, [3]float64{}, c.Over[1].VecToNext, "last overlayer to")
	assert.Len(t, c.Layers(), 4)
	assert.Equal(t, 4, c.NumAtoms())
}

func TestFoldIntoCellDropsDeepAtoms(t *testing.T) {
	g := centered()
	g.Bulk = append(g.Bulk, Atom{Pos: [3]float64{0, 0, -3 * d}})
	g.Bulk[0].Pos[0] += 3 * a
	c, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumAtoms())
	assert.InDelta(t, a/2, c.Bulk[0].Origin[0], 1e-12)
}

func TestSymmetryOps(t *testing.T) {
	ops, err := Symmetry{NRot: 4}.Ops()
	require.NoError(t, err)
	assert.Len(t, ops, 4)

	ops, err = Symmetry{NRot: 4, Mirrors: []float64{0}}.Ops()
	require.NoError(t, err)
	assert.Len(t, ops, 8)

	ops, err = Symmetry{NRot: 3, Mirrors: []float64{math.Pi / 2}}.Ops()
	require.NoError(t, err)
	assert.Len(t, ops, 6)

	assert.ErrorIs(t, Symmetry{NRot: 5}.Validate(), ErrSymmetryMismatch)
	assert.ErrorIs(t, Symmetry{Mirrors: []float64{0, 0.1}}.Validate(), ErrSymmetryMismatch)

	v := Rotation(4).Apply([2]float64{1, 0})
	assert.InDelta(t, 0., v[0], 1e-15)
	assert.InDelta(t, 1., v[1], 1e-15)
}

func TestSymmetricCrystalCentersLayers(t *testing.T) {
	g := centered()
	g.Symmetry = Symmetry{NRot: 4, Mirrors: []float64{0}}
	c, err := New(g)
	require.NoError(t, err)

	for _, l := range c.Layers() {
		assert.Equal(t, [2]float64{}, l.Origin)
		assert.Equal(t, 0., l.VecFromLast[0])
		assert.Equal(t, 0., l.VecToNext[1])
	}
	assert.InDelta(t, a/2, math.Abs(c.Bulk[0].RegShift[0]), 1e-12)
	assert.Equal(t, [2]float64{}, c.Bulk[1].RegShift)
}

func TestSymmetryMismatch(t *testing.T) {
	_, err := New(Geometry{
		A1:       [3]float64{a, 0, 0},
		A2:       [3]float64{0, a, 0},
		A3:       [3]float64{0, 0, -d},
		Bulk:     []Atom{{Pos: [3]float64{a / 4, 0, 0}}},
		Symmetry: Symmetry{NRot: 4},
	})
	assert.ErrorIs(t, err, ErrSymmetryMismatch)
}
