// Package beams enumerates the diffracted beams of a crystal and selects
// those contributing at a given energy.
package beams

import (
	"cmp"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/utils"
)

var ErrSymmetryMismatch = errors.New("beams: beam list does not have the requested symmetry")

// Beam is one entry of the master beam list. Orbit holds the reciprocal
// vectors of all beams represented by this one (the beam itself first);
// BulkOrbit is the part of the orbit lying in the beam's own set.
type Beam struct {
	Ind1, Ind2 float64
	Kr         [2]float64
	KPar2      float64
	Set        int
	AkzR       float64

	Orbit     [][2]float64
	BulkOrbit [][2]float64
}

// NEqS is the number of beams represented in superstructure layers.
func (b *Beam) NEqS() int { return len(b.Orbit) }

// NEqB is the number of beams represented in 1x1 bulk layers.
func (b *Beam) NEqB() int { return len(b.BulkOrbit) }

type List struct {
	Beams     []Beam
	NSets     int
	Symmetric bool
}

// cutoff returns (ln(eps)/dmin)^2 + 2 engR, the squared largest parallel
// momentum whose amplitude survives between two layers.
func cutoff(eps, dmin, engR float64) float64 {
	f := math.Log(eps) / dmin
	return f*f + 2*engR
}

// Generate lists all beams needed up to engMax [Hartree] (vacuum energy),
// set by set, each set ordered by parallel momentum and indices.
func Generate(c *crystal.Crystal, theta, phi, eps, engMax float64) *List {
	kMax2 := cutoff(eps, c.DMin, engMax-c.Vr)
	kMax := math.Sqrt(kMax2)
	kIn := math.Sin(theta) * math.Sqrt(2*engMax)
	kInX, kInY := kIn*math.Cos(phi), kIn*math.Sin(phi)

	nSet := utils.Nint(c.RelAreaSup)
	offsets := [][2]float64{{0, 0}}
	m := c.SuperRecip
	for n1 := -nSet; n1 <= nSet; n1++ {
		for n2 := -nSet; n2 <= nSet && len(offsets) < nSet; n2++ {
			x := float64(n1)*m[0][0] + float64(n2)*m[1][0]
			y := float64(n1)*m[0][1] + float64(n2)*m[1][1]
			if x >= 0 && x+constants.KTolerance < 1 && y >= 0 && y+constants.KTolerance < 1 &&
				math.Hypot(x, y) > constants.KTolerance {
				offsets = append(offsets, [2]float64{x, y})
			}
		}
	}
	if len(offsets) != nSet {
		log.Printf("warning: found %d beam sets, expected %d", len(offsets), nSet)
	}

	g1, g2 := c.Recip[0][:], c.Recip[1][:]
	len1, len2 := floats.Norm(g1, 2), floats.Norm(g2, 2)
	cosPart := math.Abs(floats.Dot(g1, g2) / len1)
	sinPart := math.Abs((g1[0]*g2[1] - g1[1]*g2[0]) / len1)
	n2Max := 2 + int(kMax/sinPart+kIn/len2)
	n1Max := 2 + int(kMax/len1+float64(n2Max)*cosPart/len1+kIn/len1)

	l := &List{NSets: len(offsets)}
	for set, off := range offsets {
		start := len(l.Beams)
		for n1 := -n1Max; n1 <= n1Max; n1++ {
			for n2 := -n2Max; n2 <= n2Max; n2++ {
				i1, i2 := float64(n1)+off[0], float64(n2)+off[1]
				kx := i1*g1[0] + i2*g2[0]
				ky := i1*g1[1] + i2*g2[1]
				if (kx+kInX)*(kx+kInX)+(ky+kInY)*(ky+kInY) > kMax2+constants.KTolerance {
					continue
				}
				l.Beams = append(l.Beams, Beam{
					Ind1:      i1,
					Ind2:      i2,
					Kr:        [2]float64{kx, ky},
					KPar2:     kx*kx + ky*ky,
					Set:       set,
					AkzR:      1 / c.Area,
					Orbit:     [][2]float64{{kx, ky}},
					BulkOrbit: [][2]float64{{kx, ky}},
				})
			}
		}
		slices.SortStableFunc(l.Beams[start:], compareBeams)
	}
	return l
}

func compareBeams(a, b Beam) int {
	if math.Abs(a.KPar2-b.KPar2) >= constants.KTolerance {
		return cmp.Compare(a.KPar2, b.KPar2)
	}
	if c := cmp.Compare(a.Ind1, b.Ind1); c != 0 {
		return c
	}
	return cmp.Compare(a.Ind2, b.Ind2)
}

// GenerateSym generates the beam list and keeps one representative per
// orbit of the crystal's point group. Equivalent beam sets are merged into
// the one with the lowest id, and sets are renumbered contiguously.
func GenerateSym(c *crystal.Crystal, theta, phi, eps, engMax float64) (*List, error) {
	if math.Abs(math.Sin(theta)) > constants.GeometryTolerance {
		return nil, fmt.Errorf("%w: symmetry reduction needs normal incidence (theta = %.2f deg)",
			ErrSymmetryMismatch, theta*180/math.Pi)
	}
	ops, err := c.Symmetry.Ops()
	if err != nil {
		return nil, err
	}
	full := Generate(c, 0, phi, eps, engMax)
	if len(ops) == 1 {
		return full, nil
	}

	den := c.RelAreaSup
	key := func(v [2]float64) [2]int {
		i1 := floats.Dot(v[:], c.A1[:]) / (2 * math.Pi)
		i2 := floats.Dot(v[:], c.A2[:]) / (2 * math.Pi)
		return [2]int{utils.Nint(i1 * den), utils.Nint(i2 * den)}
	}
	index := make(map[[2]int]int, len(full.Beams))
	for i := range full.Beams {
		index[key(full.Beams[i].Kr)] = i
	}

	orbits := make([][]int, len(full.Beams))
	for i := range full.Beams {
		seen := map[int]bool{}
		for _, op := range ops {
			j, some := index[key(op.Apply(full.Beams[i].Kr))]
			if !some {
				return nil, fmt.Errorf("%w: image of beam (%.2f %.2f) under %v is not a beam",
					ErrSymmetryMismatch, full.Beams[i].Ind1, full.Beams[i].Ind2, op)
			}
			if !seen[j] {
				seen[j] = true
				orbits[i] = append(orbits[i], j)
			}
		}
		slices.Sort(orbits[i])
	}

	repSet := make([]int, full.NSets)
	for s := range repSet {
		repSet[s] = s
	}
	for i, b := range full.Beams {
		for _, j := range orbits[i] {
			repSet[b.Set] = min(repSet[b.Set], full.Beams[j].Set)
		}
	}
	newSet := map[int]int{}
	for s := range repSet {
		if repSet[s] == s {
			newSet[s] = len(newSet)
		}
	}

	l := &List{NSets: len(newSet), Symmetric: true}
	done := make([]bool, len(full.Beams))
	for i, b := range full.Beams {
		if done[i] || b.Set != repSet[b.Set] {
			continue
		}
		rep := b
		rep.Set = newSet[b.Set]
		rep.Orbit = [][2]float64{b.Kr}
		rep.BulkOrbit = [][2]float64{b.Kr}
		for _, j := range orbits[i] {
			done[j] = true
			if j == i {
				continue
			}
			rep.Orbit = append(rep.Orbit, full.Beams[j].Kr)
			if full.Beams[j].Set == b.Set {
				rep.BulkOrbit = append(rep.BulkOrbit, full.Beams[j].Kr)
			}
		}
		l.Beams = append(l.Beams, rep)
	}
	return l, nil
}
