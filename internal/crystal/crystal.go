// Package crystal describes the scattering sample: the 2-D lattices, the
// atoms of bulk and overlayer grouped into layers, the symmetry of the
// surface and the optical potential.
package crystal

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

var (
	ErrGeometry         = errors.New("crystal: invalid geometry")
	ErrLayerSplit       = errors.New("crystal: bulk atoms are too close to be split into layers")
	ErrSymmetryMismatch = errors.New("crystal: geometry does not have the requested symmetry")
)

type Atom struct {
	Pos  [3]float64 // [bohr]
	Type int        // phase shift set id
	Kind phaseshift.Kind
}

type Layer struct {
	Index    int
	Bulk     bool
	Periodic bool
	A1, A2   [2]float64
	RelArea  float64
	Origin   [2]float64 // lateral position of the local frame
	RegShift [2]float64 // shift applied to the atoms when the frame sits on the symmetry axis

	VecFromLast [3]float64
	VecToNext   [3]float64
	Atoms       []Atom
}

// IsBravais reports whether the layer holds one atom per unit cell.
func (l *Layer) IsBravais() bool { return len(l.Atoms) == 1 }

type Geometry struct {
	A1, A2, A3 [3]float64 // bulk unit cell [bohr]; A3 points into the bulk
	Super      [2][2]float64
	Bulk, Over []Atom // absolute positions [bohr]
	Symmetry   Symmetry

	Vr, ViPre, ViExp float64 // [Hartree]
	Temperature      float64 // [K]
}

type Crystal struct {
	A1, A2     [2]float64
	A3         [3]float64
	Recip      [2][2]float64 // rows: a1*, a2*
	Area       float64
	Super      [2][2]float64 // b = Super a
	SuperRecip [2][2]float64 // b* = SuperRecip a*
	B1, B2     [2]float64
	RecipSuper [2][2]float64 // rows: b1*, b2*
	RelAreaSup float64

	Bulk []Layer // deepest first
	Over []Layer // deepest first
	DMin float64

	Symmetry Symmetry

	Vr, ViPre, ViExp float64
	Temperature      float64
}

// New groups the atoms into layers and derives the reciprocal lattices.
func New(g Geometry) (*Crystal, error) {
	c := &Crystal{
		A1:          [2]float64{g.A1[0], g.A1[1]},
		A2:          [2]float64{g.A2[0], g.A2[1]},
		A3:          g.A3,
		Super:       g.Super,
		Symmetry:    g.Symmetry,
		Vr:          g.Vr,
		ViPre:       g.ViPre,
		ViExp:       g.ViExp,
		Temperature: g.Temperature,
	}
	if c.Super == ([2][2]float64{}) {
		c.Super = [2][2]float64{{1, 0}, {0, 1}}
	}
	if c.Temperature == 0 {
		c.Temperature = constants.DefaultTemperature
	}
	if c.A3[2] > 0 {
		c.A3[2] = -c.A3[2]
	}
	if c.A3[2] == 0 {
		return nil, fmt.Errorf("%w: a3 has no z component", ErrGeometry)
	}

	det := cross(c.A1, c.A2)
	if math.Abs(det) < constants.GeometryTolerance {
		return nil, fmt.Errorf("%w: a1 and a2 are parallel", ErrGeometry)
	}
	c.Area = math.Abs(det)
	c.Recip = reciprocal(c.A1, c.A2)

	for i := range 2 {
		for j := range 2 {
			if math.Abs(c.Super[i][j]-math.Round(c.Super[i][j])) > constants.GeometryTolerance {
				return nil, fmt.Errorf("%w: superstructure matrix %v is not integer", ErrGeometry, c.Super)
			}
		}
	}
	detS := c.Super[0][0]*c.Super[1][1] - c.Super[0][1]*c.Super[1][0]
	if math.Abs(detS) < constants.GeometryTolerance {
		return nil, fmt.Errorf("%w: singular superstructure matrix", ErrGeometry)
	}
	c.RelAreaSup = math.Abs(detS)
	c.SuperRecip = [2][2]float64{
		{c.Super[1][1] / detS, -c.Super[1][0] / detS},
		{-c.Super[0][1] / detS, c.Super[0][0] / detS},
	}
	for i := range 2 {
		c.B1[i] = c.Super[0][0]*c.A1[i] + c.Super[0][1]*c.A2[i]
		c.B2[i] = c.Super[1][0]*c.A1[i] + c.Super[1][1]*c.A2[i]
	}
	c.RecipSuper = reciprocal(c.B1, c.B2)

	if len(g.Bulk) == 0 {
		return nil, fmt.Errorf("%w: no bulk atoms", ErrGeometry)
	}
	bulk := c.shiftToAxis(g.Bulk)
	bulk = c.foldIntoCell(bulk)
	var err error
	if c.Bulk, err = SplitBulk(bulk, c.A1, c.A2, c.A3); err != nil {
		return nil, err
	}
	if len(g.Over) > 0 {
		c.Over = SplitOverlayer(c.shiftToAxis(g.Over), c.B1, c.B2, c.RelAreaSup)
	}

	c.DMin = math.Abs(c.Bulk[0].VecFromLast[2])
	for i := 0; i < len(c.Bulk)-1; i++ {
		c.DMin = min(c.DMin, math.Abs(c.Bulk[i].VecToNext[2]))
	}

	if c.Symmetry.Enabled() {
		if err := c.Symmetry.Validate(); err != nil {
			return nil, err
		}
		c.centerOnAxis()
		if err := c.CheckSymmetry(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Layers returns the bulk layers followed by the overlayers.
func (c *Crystal) Layers() []*Layer {
	all := make([]*Layer, 0, len(c.Bulk)+len(c.Over))
	for i := range c.Bulk {
		all = append(all, &c.Bulk[i])
	}
	for i := range c.Over {
		all = append(all, &c.Over[i])
	}
	return all
}

// NumAtoms counts the atoms of all layers.
func (c *Crystal) NumAtoms() (n int) {
	for _, l := range c.Layers() {
		n += len(l.Atoms)
	}
	return
}

func (c *Crystal) shiftToAxis(atoms []Atom) []Atom {
	out := make([]Atom, len(atoms))
	copy(out, atoms)
	if !c.Symmetry.Enabled() {
		return out
	}
	for i := range out {
		out[i].Pos[0] -= c.Symmetry.Axis[0]
		out[i].Pos[1] -= c.Symmetry.Axis[1]
	}
	return out
}

// foldIntoCell moves every atom into the 2-D unit cell and drops atoms lying
// below the bulk unit cell along a3.
func (c *Crystal) foldIntoCell(atoms []Atom) []Atom {
	top := math.Inf(-1)
	for i := range atoms {
		x := (atoms[i].Pos[0]*c.Recip[0][0] + atoms[i].Pos[1]*c.Recip[0][1]) / (2 * math.Pi)
		y := (atoms[i].Pos[0]*c.Recip[1][0] + atoms[i].Pos[1]*c.Recip[1][1]) / (2 * math.Pi)
		fx, fy := math.Floor(x), math.Floor(y)
		for j := range 2 {
			atoms[i].Pos[j] -= fx*c.A1[j] + fy*c.A2[j]
		}
		top = max(top, atoms[i].Pos[2])
	}
	kept := atoms[:0]
	for _, a := range atoms {
		if a.Pos[2]-top < c.A3[2] {
			log.Printf("warning: bulk atom at z = %.4f A lies outside the bulk unit cell and is ignored", a.Pos[2]*constants.Bohr)
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// centerOnAxis moves the lateral origin of every layer onto the symmetry
// axis and records the former origin as registry shift.
func (c *Crystal) centerOnAxis() {
	for _, l := range c.Layers() {
		l.RegShift = shortest([2]float64{-l.Origin[0], -l.Origin[1]}, l.A1, l.A2)
		l.Origin = [2]float64{}
		l.VecFromLast[0], l.VecFromLast[1] = 0, 0
		l.VecToNext[0], l.VecToNext[1] = 0, 0
	}
}

func cross(a, b [2]float64) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

// reciprocal returns 2 pi (a1 a2)^-1 as rows a1*, a2*.
func reciprocal(a1, a2 [2]float64) [2][2]float64 {
	f := 2 * math.Pi / cross(a1, a2)
	return [2][2]float64{
		{f * a2[1], -f * a2[0]},
		{-f * a1[1], f * a1[0]},
	}
}

// shortest adds the lattice vector among {-1,0,1}a1 + {-1,0,1}a2 that makes
// v shortest.
func shortest(v, a1, a2 [2]float64) [2]float64 {
	best := v
	bestLen := floats.Dot(v[:], v[:])
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			w := [2]float64{v[0] + float64(i)*a1[0] + float64(j)*a2[0], v[1] + float64(i)*a1[1] + float64(j)*a2[1]}
			if d := floats.Dot(w[:], w[:]); d < bestLen {
				best, bestLen = w, d
			}
		}
	}
	return best
}
