package doubling

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/layer"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/tmatrix"
)

func nickelPlane(t *testing.T) (*layer.Energy, *crystal.Layer, []beams.Selected) {
	t.Helper()
	const a = 5.
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

	e := &layer.Energy{
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

// Two stacked atoms in one composite layer scatter like two Bravais planes
// joined by layer doubling, up to the angular momentum cutoff.
func TestCompositeMatchesStackedPlanes(t *testing.T) {
	e, lay, set := nickelPlane(t)
	cache := layer.NewCache()
	const d = 2.5

	brav, err := layer.Bravais(cache, e, lay, set)
	require.NoError(t, err)
	stack, err := TwoLayers(brav, brav, set, [3]float64{0, 0, d})
	require.NoError(t, err)

	pair := *lay
	pair.Atoms = []crystal.Atom{{}, {Pos: [3]float64{0, 0, d}}}
	comp, err := layer.Composite(cache, e, &pair, set)
	require.NoError(t, err)

	want := stack.Rpm.At(0, 0)
	require.Greater(t, cmplx.Abs(want), 1e-3)
	assert.InDelta(t, 0., cmplx.Abs(comp.Rpm.At(0, 0)-want), 0.02*cmplx.Abs(want),
		"composite %v, stacked %v", comp.Rpm.At(0, 0), want)
}
