// Package engine runs the energy scan: it updates the energy dependent
// parameters, stacks the layer matrices into the reflection matrix of the
// surface and distributes the energies over a pool of workers.
package engine

import (
	"fmt"
	"log"
	"math"

	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/layer"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/tmatrix"
)

// Params holds the parameters that change with the energy.
type Params struct {
	EngV float64 // vacuum energy [Hartree]
	EngR float64 // real part of the energy inside the crystal
	EngI float64 // optical potential, imaginary part of the energy
	KIn  [2]float64

	Theta, Phi float64
	LMax       int
	Epsilon    float64
	T          []tmatrix.TMatrix // by atom type
}

// Update moves p to vacuum energy engV: the energy inside the crystal, the
// damping, the parallel momentum of the incident beam and the scattering
// matrices of all atom types.
func (p *Params) Update(c *crystal.Crystal, sets []*phaseshift.Set, engV float64, verbose bool) error {
	p.EngV = engV
	p.EngR = engV - c.Vr
	p.EngI = c.ViPre
	if p.EngR >= constants.ViStart {
		p.EngI = c.ViPre * math.Pow(p.EngR/constants.ViStart, c.ViExp)
	}
	kPar := math.Sin(p.Theta) * math.Sqrt(2*engV)
	p.KIn = [2]float64{kPar * math.Cos(p.Phi), kPar * math.Sin(p.Phi)}

	p.T = make([]tmatrix.TMatrix, len(sets))
	for i, set := range sets {
		t, extrapolated, err := tmatrix.Build(set, p.EngR, p.LMax)
		if err != nil {
			return fmt.Errorf("E = %.2f eV: %w", engV*constants.Hartree, err)
		}
		if extrapolated && verbose {
			log.Printf("%s: phase shifts extrapolated to %.2f eV", set.File, p.EngR*constants.Hartree)
		}
		p.T[i] = t
	}
	return nil
}

// Energy is the view of p used by the layer code.
func (p *Params) Energy() *layer.Energy {
	return &layer.Energy{Eng: p.EngR, LMax: p.LMax, Epsilon: p.Epsilon, T: p.T}
}
