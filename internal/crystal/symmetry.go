package crystal

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/cleed/internal/constants"
)

// maxGroupOrder is the order of the largest 2-D point group compatible with a
// lattice (6mm).
const maxGroupOrder = 12

// Op is a 2x2 point operation acting on lateral vectors.
type Op [2][2]float64

func (o Op) Apply(v [2]float64) [2]float64 {
	return [2]float64{o[0][0]*v[0] + o[0][1]*v[1], o[1][0]*v[0] + o[1][1]*v[1]}
}

func (o Op) mul(p Op) (r Op) {
	for i := range 2 {
		for j := range 2 {
			r[i][j] = o[i][0]*p[0][j] + o[i][1]*p[1][j]
		}
	}
	return
}

func (o Op) near(p Op) bool {
	for i := range 2 {
		for j := range 2 {
			if math.Abs(o[i][j]-p[i][j]) > constants.GeometryTolerance {
				return false
			}
		}
	}
	return true
}

// Rotation is the counter-clockwise rotation by 2 pi / n.
func Rotation(n int) Op {
	s, c := math.Sincos(2 * math.Pi / float64(n))
	return Op{{c, -s}, {s, c}}
}

// Mirror reflects at the line through the origin at angle [rad] to x.
func Mirror(angle float64) Op {
	s, c := math.Sincos(2 * angle)
	return Op{{c, s}, {s, -c}}
}

// Symmetry describes the point symmetry of the surface about the axis
// through Axis perpendicular to the surface. NRot <= 1 means no rotation.
type Symmetry struct {
	NRot    int
	Axis    [2]float64 // [bohr]
	Mirrors []float64  // [rad]
}

func (s Symmetry) Enabled() bool { return s.NRot > 1 || len(s.Mirrors) > 0 }

func (s Symmetry) Validate() error {
	switch s.NRot {
	case 0, 1, 2, 3, 4, 6:
	default:
		return fmt.Errorf("%w: %d-fold rotation is not a lattice symmetry", ErrSymmetryMismatch, s.NRot)
	}
	_, err := s.Ops()
	return err
}

// Ops returns the group generated by the rotation and the mirrors, starting
// with the identity.
func (s Symmetry) Ops() ([]Op, error) {
	ops := []Op{{{1, 0}, {0, 1}}}
	var gens []Op
	if s.NRot > 1 {
		gens = append(gens, Rotation(s.NRot))
	}
	for _, a := range s.Mirrors {
		gens = append(gens, Mirror(a))
	}
	for i := 0; i < len(ops); i++ {
		for _, g := range gens {
			p := g.mul(ops[i])
			known := false
			for _, o := range ops {
				if o.near(p) {
					known = true
					break
				}
			}
			if !known {
				if len(ops) == maxGroupOrder {
					return nil, fmt.Errorf("%w: mirrors %v and %d-fold rotation do not form a point group",
						ErrSymmetryMismatch, s.Mirrors, s.NRot)
				}
				ops = append(ops, p)
			}
		}
	}
	return ops, nil
}

// CheckSymmetry verifies that every layer is mapped onto itself by every
// operation of the group, up to lattice translations.
func (c *Crystal) CheckSymmetry() error {
	ops, err := c.Symmetry.Ops()
	if err != nil {
		return err
	}
	for _, l := range c.Layers() {
		recip := reciprocal(l.A1, l.A2)
		abs := make([][2]float64, len(l.Atoms))
		for i, a := range l.Atoms {
			abs[i] = [2]float64{a.Pos[0] - l.RegShift[0], a.Pos[1] - l.RegShift[1]}
		}
		for _, op := range ops[1:] {
			for i, a := range l.Atoms {
				p := op.Apply(abs[i])
				found := false
				for j, b := range l.Atoms {
					if b.Type != a.Type || math.Abs(b.Pos[2]-a.Pos[2]) > constants.GeometryTolerance {
						continue
					}
					if onLattice([2]float64{p[0] - abs[j][0], p[1] - abs[j][1]}, recip) {
						found = true
						break
					}
				}
				if !found {
					kind := "bulk"
					if !l.Bulk {
						kind = "overlayer"
					}
					return fmt.Errorf("%w: %s layer %d atom at (%.3f %.3f) A has no image under %v",
						ErrSymmetryMismatch, kind, l.Index, abs[i][0]*constants.Bohr, abs[i][1]*constants.Bohr, op)
				}
			}
		}
	}
	return nil
}

func onLattice(v [2]float64, recip [2][2]float64) bool {
	for _, r := range recip {
		f := (v[0]*r[0] + v[1]*r[1]) / (2 * math.Pi)
		if math.Abs(f-math.Round(f)) > constants.GeometryTolerance {
			return false
		}
	}
	return true
}
