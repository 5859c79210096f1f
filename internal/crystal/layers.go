package crystal

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/wildstyl3r/cleed/internal/constants"
)

// group is a run of atoms whose z coordinates lie within MinLayerDistance of
// their neighbours.
type group struct {
	atoms    []Atom
	origin   [2]float64
	zFirst   float64 // z of the first atom in sort order
	zLast    float64
	periodic bool
}

func groupByZ(atoms []Atom) []*group {
	var groups []*group
	for i, a := range atoms {
		if i == 0 || math.Abs(a.Pos[2]-atoms[i-1].Pos[2]) > constants.MinLayerDistance {
			groups = append(groups, &group{zFirst: a.Pos[2], periodic: true})
		}
		g := groups[len(groups)-1]
		g.atoms = append(g.atoms, a)
		g.zLast = a.Pos[2]
	}
	return groups
}

// localize places the frame of every single-atom group on its atom and
// expresses atom positions relative to (origin, zFirst).
func localize(groups []*group, merged bool) {
	for i, g := range groups {
		if len(g.atoms) == 1 && !(merged && i == len(groups)-1) {
			g.origin = [2]float64{g.atoms[0].Pos[0], g.atoms[0].Pos[1]}
		}
		for j := range g.atoms {
			g.atoms[j].Pos[0] -= g.origin[0]
			g.atoms[j].Pos[1] -= g.origin[1]
			g.atoms[j].Pos[2] -= g.zFirst
		}
	}
}

func between(from, to *group) [3]float64 {
	return [3]float64{to.origin[0] - from.origin[0], to.origin[1] - from.origin[1], to.zFirst - from.zLast}
}

func reduce(v [3]float64, a1, a2 [2]float64) [3]float64 {
	xy := shortest([2]float64{v[0], v[1]}, a1, a2)
	return [3]float64{xy[0], xy[1], v[2]}
}

// SplitBulk sorts the bulk atoms of one unit cell into layers ordered from
// the deepest upwards. Atoms closer than MinLayerDistance in z share a layer.
// If the top layer of the next cell below comes too close to the deepest
// layer, its atoms are merged into the deepest layer and the top layer is
// kept as a non-periodic termination.
func SplitBulk(atoms []Atom, a1, a2 [2]float64, a3 [3]float64) ([]Layer, error) {
	sorted := slices.Clone(atoms)
	slices.SortStableFunc(sorted, func(x, y Atom) int { return cmp.Compare(y.Pos[2], x.Pos[2]) })
	groups := groupByZ(sorted)
	n := len(groups)
	first, last := groups[0], groups[n-1]

	merged := false
	if math.Abs(first.zFirst+a3[2]-last.zLast) < constants.MinLayerDistance {
		if n == 1 {
			return nil, fmt.Errorf("%w: a3 = (%.3f %.3f %.3f) is shorter than the layer thickness",
				ErrLayerSplit, a3[0]*constants.Bohr, a3[1]*constants.Bohr, a3[2]*constants.Bohr)
		}
		for _, a := range first.atoms {
			a.Pos[0] += a3[0]
			a.Pos[1] += a3[1]
			a.Pos[2] += a3[2]
			last.atoms = append(last.atoms, a)
		}
		slices.SortStableFunc(last.atoms, func(x, y Atom) int { return cmp.Compare(y.Pos[2], x.Pos[2]) })
		last.zLast = last.atoms[len(last.atoms)-1].Pos[2]
		first.periodic = false
		merged = true
	}
	localize(groups, merged)

	// vecs[i] points from group i down to group i+1; the last one to the
	// first repeated group of the next unit cell.
	vecs := make([][3]float64, n)
	for i := 0; i < n-1; i++ {
		vecs[i] = between(groups[i], groups[i+1])
	}
	next := first
	if merged {
		next = groups[1]
	}
	vecs[n-1] = [3]float64{
		next.origin[0] + a3[0] - last.origin[0],
		next.origin[1] + a3[1] - last.origin[1],
		next.zFirst + a3[2] - last.zLast,
	}

	layers := make([]Layer, n)
	for i, g := range groups {
		j := n - 1 - i
		l := Layer{
			Index:       j,
			Bulk:        true,
			Periodic:    g.periodic,
			A1:          a1,
			A2:          a2,
			RelArea:     1,
			Origin:      g.origin,
			Atoms:       g.atoms,
			VecFromLast: neg(reduce(vecs[i], a1, a2)),
		}
		if i > 0 {
			l.VecToNext = neg(reduce(vecs[i-1], a1, a2))
		} else {
			l.VecToNext = [3]float64{-g.origin[0], -g.origin[1], -g.zFirst}
		}
		layers[j] = l
	}
	return layers, nil
}

// SplitOverlayer sorts the overlayer atoms into non-periodic layers ordered
// from the deepest upwards, on the superstructure lattice b1, b2.
func SplitOverlayer(atoms []Atom, b1, b2 [2]float64, relArea float64) []Layer {
	sorted := slices.Clone(atoms)
	slices.SortStableFunc(sorted, func(x, y Atom) int { return cmp.Compare(x.Pos[2], y.Pos[2]) })
	groups := groupByZ(sorted)
	localize(groups, false)

	layers := make([]Layer, len(groups))
	for i, g := range groups {
		l := Layer{
			Index:   i,
			A1:      b1,
			A2:      b2,
			RelArea: relArea,
			Origin:  g.origin,
			Atoms:   g.atoms,
		}
		if i == 0 {
			l.VecFromLast = [3]float64{g.origin[0], g.origin[1], g.zFirst}
		} else {
			l.VecFromLast = reduce(between(groups[i-1], g), b1, b2)
		}
		if i < len(groups)-1 {
			l.VecToNext = reduce(between(g, groups[i+1]), b1, b2)
		}
		layers[i] = l
	}
	return layers
}

func neg(v [3]float64) [3]float64 {
	return [3]float64{-v[0], -v[1], -v[2]}
}
