package engine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/config"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/doubling"
	"github.com/wildstyl3r/cleed/internal/layer"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
	"github.com/wildstyl3r/cleed/internal/utils"
)

// StepDistance is the distance between the topmost layer and the potential
// step [bohr].
const StepDistance = 1.25 / constants.Bohr

type Model struct {
	Parameters config.ModelParameters
	Crystal    *crystal.Crystal
	Sets       []*phaseshift.Set
	Beams      *beams.List

	Energies []float64 // vacuum energies of the scan [Hartree]
	Out      []int     // beams written to the output, indices into Beams.Beams
}

// NewModel reads the phase shifts, builds the crystal and the beam list of
// a unified model.
func NewModel(parameters config.ModelParameters) (*Model, error) {
	reg := phaseshift.NewRegistry()
	g, err := parameters.Geometry(reg)
	if err != nil {
		return nil, err
	}
	c, err := crystal.New(g)
	if err != nil {
		return nil, err
	}
	return New(parameters, c, reg.Sets)
}

// New prepares a run over an existing crystal and its phase shift sets.
func New(parameters config.ModelParameters, c *crystal.Crystal, sets []*phaseshift.Set) (*Model, error) {
	p := &parameters
	if p.Symmetric() {
		list, err := beams.GenerateSym(c, p.Theta, p.Phi, p.Epsilon, p.EnergyFinal)
		if err != nil {
			return nil, err
		}
		return Restore(parameters, c, sets, list)
	}
	return Restore(parameters, c, sets, beams.Generate(c, p.Theta, p.Phi, p.Epsilon, p.EnergyFinal))
}

// Restore prepares a run from a beam list generated earlier, e.g. one read
// back from a parameter file.
func Restore(parameters config.ModelParameters, c *crystal.Crystal, sets []*phaseshift.Set, list *beams.List) (*Model, error) {
	m := &Model{Parameters: parameters, Crystal: c, Sets: sets, Beams: list}
	p := &m.Parameters

	n := utils.Steps(p.EnergyInitial, p.EnergyFinal, p.EnergyStep, constants.EnergyTolerance)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty energy range", config.ErrConfig)
	}
	m.Energies = make([]float64, n)
	for i := range m.Energies {
		m.Energies[i] = p.EnergyInitial + float64(i)*p.EnergyStep
	}
	for _, s := range sets {
		if s.EMin() > p.EnergyInitial-c.Vr {
			return nil, fmt.Errorf("%s: %w: %.2f eV", s.File, phaseshift.ErrEnergyOutOfRange, (p.EnergyInitial-c.Vr)*constants.Hartree)
		}
	}
	m.Out = m.outputBeams()

	if p.Verbose() {
		fmt.Printf("Layers: %d bulk, %d overlayer; atoms: %d\n", len(c.Bulk), len(c.Over), c.NumAtoms())
		fmt.Printf("Beams: %d in %d sets, %d written\n", len(m.Beams.Beams), m.Beams.NSets, len(m.Out))
		fmt.Printf("Energies: %d from %.2f to %.2f eV\n", n,
			m.Energies[0]*constants.Hartree, m.Energies[n-1]*constants.Hartree)
	}
	return m, nil
}

// outputBeams keeps the beams that are not evanescent at the final energy.
func (m *Model) outputBeams() []int {
	kMax2 := 2 * m.Parameters.EnergyFinal
	var out []int
	for i := range m.Beams.Beams {
		if m.Beams.Beams[i].KPar2 <= kMax2 {
			out = append(out, i)
		}
	}
	return out
}

// NewParams returns the energy independent part of the parameters.
func (m *Model) NewParams() *Params {
	p := &m.Parameters
	return &Params{Theta: p.Theta, Phi: p.Phi, LMax: p.LMax, Epsilon: p.Epsilon}
}

// Result holds the intensities of the output beams at one energy.
type Result struct {
	Energy      float64 // vacuum [Hartree]
	Beams       int     // beams included in the calculation
	Intensities []float64
}

// bulkReflection returns the reflection matrix of the semi-infinite bulk
// for one beam set, referred to the topmost bulk layer.
func (m *Model) bulkReflection(cache *layer.Cache, e *layer.Energy, set []beams.Selected) (*cmatrix.Matrix, error) {
	bulk := m.Crystal.Bulk
	q, err := layer.Scatter(cache, e, &bulk[0], set)
	if err != nil {
		return nil, err
	}
	i := 1
	for ; i < len(bulk) && bulk[i].Periodic; i++ {
		s, err := layer.Scatter(cache, e, &bulk[i], set)
		if err != nil {
			return nil, err
		}
		if q, err = doubling.TwoLayers(q, s, set, bulk[i].VecFromLast); err != nil {
			return nil, fmt.Errorf("bulk layer %d: %w", i, err)
		}
	}
	rpm, _, err := doubling.Periodic(q, set, bulk[0].VecFromLast)
	if err != nil {
		return nil, err
	}
	if i < len(bulk) {
		top, err := layer.Scatter(cache, e, &bulk[i], set)
		if err != nil {
			return nil, err
		}
		if rpm, err = doubling.ReflectionOnly(rpm, top, set, bulk[i].VecFromLast); err != nil {
			return nil, fmt.Errorf("bulk layer %d: %w", i, err)
		}
	}
	return rpm, nil
}

// Step computes the intensities of the output beams at vacuum energy engV.
// p and cache belong to the calling worker.
func (m *Model) Step(p *Params, cache *layer.Cache, engV float64) (Result, error) {
	c := m.Crystal
	if err := p.Update(c, m.Sets, engV, m.Parameters.Verbose()); err != nil {
		return Result{}, err
	}
	e := p.Energy()
	sel := beams.Select(m.Beams, p.EngR, p.EngI, p.KIn, p.Epsilon, c.DMin)
	if len(sel) == 0 {
		return Result{}, fmt.Errorf("E = %.2f eV: no beams selected", engV*constants.Hartree)
	}

	// the sets do not couple in the bulk: r is block diagonal
	r := cmatrix.New(len(sel), len(sel))
	for s := range m.Beams.NSets {
		set := beams.Set(sel, s)
		if len(set) == 0 {
			continue
		}
		rpm, err := m.bulkReflection(cache, e, set)
		if err != nil {
			return Result{}, fmt.Errorf("E = %.2f eV, set %d: %w", engV*constants.Hartree, s, err)
		}
		pos := make([]int, 0, len(set))
		for k := range sel {
			if sel[k].Set == s {
				pos = append(pos, k)
			}
		}
		for i, pi := range pos {
			for j, pj := range pos {
				r.Set(pi, pj, rpm.At(i, j))
			}
		}
	}

	top := c.Bulk[len(c.Bulk)-1]
	for i := range c.Over {
		over := &c.Over[i]
		q, err := layer.Scatter(cache, e, over, sel)
		if err != nil {
			return Result{}, fmt.Errorf("E = %.2f eV: %w", engV*constants.Hartree, err)
		}
		vec := over.VecFromLast
		if i == 0 {
			for x := range vec {
				vec[x] += top.VecToNext[x]
			}
		}
		if r, err = doubling.ReflectionOnly(r, q, sel, vec); err != nil {
			return Result{}, fmt.Errorf("E = %.2f eV, overlayer %d: %w", engV*constants.Hartree, i, err)
		}
	}

	vec := [3]float64{0, 0, StepDistance}
	var amp []complex128
	if m.Parameters.PotentialStep {
		var err error
		if amp, err = doubling.PotStep(r, sel, engV, vec); err != nil {
			return Result{}, fmt.Errorf("E = %.2f eV: %w", engV*constants.Hartree, err)
		}
	} else {
		amp = doubling.PotStep0(r, sel, engV, vec)
	}
	return Result{Energy: engV, Beams: len(sel), Intensities: m.intensities(sel, amp, engV)}, nil
}

// intensities maps the amplitudes of the selected beams onto the output
// beams. Beams that are evanescent, not selected or below the intensity
// tolerance get zero.
func (m *Model) intensities(sel []beams.Selected, amp []complex128, engV float64) []float64 {
	index := make(map[int]int, len(sel))
	for k := range sel {
		index[sel[k].Index] = k
	}
	out := make([]float64, len(m.Out))
	for i, b := range m.Out {
		k, some := index[b]
		if !some || sel[k].Evanescent(engV) {
			continue
		}
		a := cmplx.Abs(amp[k])
		v := a * a / float64(sel[k].NEqS())
		if v > constants.IntensityTolerance && !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}
