// Package parfile stores a prepared run in a binary file so that it can be
// handed to another process: the crystal, the phase shifts, the control
// parameters, the energy grid and the beam list, followed by a checksum.
//
// All values are little endian. The checksum is the number of bytes that
// precede it.
package parfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/config"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/engine"
	"github.com/wildstyl3r/cleed/internal/phaseshift"
)

var (
	ErrChecksum = errors.New("parfile: checksum mismatch")
	ErrFormat   = errors.New("parfile: malformed file")
)

// maxCount bounds every length read from a file.
const maxCount = 1 << 24

type crystalHeader struct {
	A1, A2     [2]float64
	A3         [3]float64
	Recip      [2][2]float64
	Area       float64
	Super      [2][2]float64
	SuperRecip [2][2]float64
	B1, B2     [2]float64
	RecipSuper [2][2]float64
	RelAreaSup float64
	DMin       float64

	NRot     int32
	Axis     [2]float64
	NMirrors int32

	Vr, ViPre, ViExp float64
	Temperature      float64
	NBulk, NOver     int32
}

type layerHeader struct {
	Index       int32
	Bulk        bool
	Periodic    bool
	A1, A2      [2]float64
	RelArea     float64
	Origin      [2]float64
	RegShift    [2]float64
	VecFromLast [3]float64
	VecToNext   [3]float64
	NAtoms      int32
}

type atomRecord struct {
	Pos  [3]float64
	Type int32
	Kind int32
}

type setHeader struct {
	LMax      int32
	NEnergies int32
	DR2       float64
	U         [3]float64
	Kind      int32
	NameLen   int32
}

type controlRecord struct {
	Theta, Phi    float64
	LMax          int32
	Epsilon       float64
	PotentialStep bool
	MakeDir       bool
}

type gridRecord struct {
	Initial, Final, Step float64
}

type beamHeader struct {
	Ind1, Ind2 float64
	Kr         [2]float64
	KPar2      float64
	Set        int32
	AkzR       float64
	NOrbit     int32
	NBulkOrbit int32
}

type counter struct {
	w   io.Writer
	r   io.Reader
	n   uint64
	err error
}

func (c *counter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

func (c *counter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

func (c *counter) put(v any) {
	if c.err == nil {
		c.err = binary.Write(c, binary.LittleEndian, v)
	}
}

func (c *counter) get(v any) {
	if c.err == nil {
		c.err = binary.Read(c, binary.LittleEndian, v)
	}
}

// count reads a length and checks it against maxCount.
func (c *counter) count() int {
	var n int32
	c.get(&n)
	if c.err == nil && (n < 0 || n > maxCount) {
		c.err = fmt.Errorf("%w: length %d", ErrFormat, n)
	}
	if c.err != nil {
		return 0
	}
	return int(n)
}

// Write stores the prepared run m.
func Write(w io.Writer, m *engine.Model) error {
	c := &counter{w: w}
	writeCrystal(c, m.Crystal)

	c.put(int32(len(m.Sets)))
	for _, s := range m.Sets {
		c.put(setHeader{
			LMax:      int32(s.LMax),
			NEnergies: int32(len(s.Energies)),
			DR2:       s.Vib.DR2,
			U:         s.Vib.U,
			Kind:      int32(s.Kind),
			NameLen:   int32(len(s.File)),
		})
		c.put(s.Energies)
		for _, row := range s.Shifts {
			c.put(row)
		}
		c.put([]byte(s.File))
	}

	p := &m.Parameters
	c.put(controlRecord{
		Theta:         p.Theta,
		Phi:           p.Phi,
		LMax:          int32(p.LMax),
		Epsilon:       p.Epsilon,
		PotentialStep: p.PotentialStep,
		MakeDir:       p.MakeDir,
	})
	c.put(gridRecord{Initial: p.EnergyInitial, Final: p.EnergyFinal, Step: p.EnergyStep})

	c.put(int32(len(m.Beams.Beams)))
	c.put(int32(m.Beams.NSets))
	c.put(m.Beams.Symmetric)
	for i := range m.Beams.Beams {
		b := &m.Beams.Beams[i]
		c.put(beamHeader{
			Ind1: b.Ind1, Ind2: b.Ind2,
			Kr:         b.Kr,
			KPar2:      b.KPar2,
			Set:        int32(b.Set),
			AkzR:       b.AkzR,
			NOrbit:     int32(len(b.Orbit)),
			NBulkOrbit: int32(len(b.BulkOrbit)),
		})
		c.put(b.Orbit)
		c.put(b.BulkOrbit)
	}

	if c.err != nil {
		return c.err
	}
	return binary.Write(w, binary.LittleEndian, c.n)
}

func writeCrystal(c *counter, cr *crystal.Crystal) {
	c.put(crystalHeader{
		A1: cr.A1, A2: cr.A2, A3: cr.A3,
		Recip:      cr.Recip,
		Area:       cr.Area,
		Super:      cr.Super,
		SuperRecip: cr.SuperRecip,
		B1:         cr.B1, B2: cr.B2,
		RecipSuper: cr.RecipSuper,
		RelAreaSup: cr.RelAreaSup,
		DMin:       cr.DMin,
		NRot:       int32(cr.Symmetry.NRot),
		Axis:       cr.Symmetry.Axis,
		NMirrors:   int32(len(cr.Symmetry.Mirrors)),
		Vr:         cr.Vr, ViPre: cr.ViPre, ViExp: cr.ViExp,
		Temperature: cr.Temperature,
		NBulk:       int32(len(cr.Bulk)),
		NOver:       int32(len(cr.Over)),
	})
	c.put(cr.Symmetry.Mirrors)

	layers := append(append([]crystal.Layer{}, cr.Bulk...), cr.Over...)
	for i := range layers {
		l := &layers[i]
		c.put(layerHeader{
			Index:       int32(l.Index),
			Bulk:        l.Bulk,
			Periodic:    l.Periodic,
			A1:          l.A1,
			A2:          l.A2,
			RelArea:     l.RelArea,
			Origin:      l.Origin,
			RegShift:    l.RegShift,
			VecFromLast: l.VecFromLast,
			VecToNext:   l.VecToNext,
			NAtoms:      int32(len(l.Atoms)),
		})
	}
	for i := range layers {
		for _, a := range layers[i].Atoms {
			c.put(atomRecord{Pos: a.Pos, Type: int32(a.Type), Kind: int32(a.Kind)})
		}
	}
}

// Read restores a run stored by Write. parameters supplies the run time
// settings (verbosity, threads); everything else comes from the file.
func Read(r io.Reader, parameters config.ModelParameters) (*engine.Model, error) {
	c := &counter{r: r}
	cr := readCrystal(c)

	sets := make([]*phaseshift.Set, c.count())
	for i := range sets {
		var h setHeader
		c.get(&h)
		if c.err == nil && (h.LMax < 0 || h.NEnergies < 0 || h.NEnergies > maxCount || h.NameLen < 0 || h.NameLen > maxCount) {
			c.err = fmt.Errorf("%w: phase shift set %d", ErrFormat, i)
		}
		if c.err != nil {
			break
		}
		s := &phaseshift.Set{
			LMax:     int(h.LMax),
			Energies: make([]float64, h.NEnergies),
			Shifts:   make([][]float64, h.NEnergies),
			Vib:      phaseshift.Vibration{DR2: h.DR2, U: h.U},
			Kind:     phaseshift.Kind(h.Kind),
		}
		c.get(s.Energies)
		for j := range s.Shifts {
			s.Shifts[j] = make([]float64, h.LMax+1)
			c.get(s.Shifts[j])
		}
		name := make([]byte, h.NameLen)
		c.get(name)
		s.File = string(name)
		sets[i] = s
	}

	var control controlRecord
	var grid gridRecord
	c.get(&control)
	c.get(&grid)
	parameters.Theta, parameters.Phi = control.Theta, control.Phi
	parameters.LMax = int(control.LMax)
	parameters.Epsilon = control.Epsilon
	parameters.PotentialStep = control.PotentialStep
	parameters.MakeDir = control.MakeDir
	parameters.EnergyInitial, parameters.EnergyFinal, parameters.EnergyStep = grid.Initial, grid.Final, grid.Step

	list := &beams.List{Beams: make([]beams.Beam, c.count())}
	list.NSets = c.count()
	c.get(&list.Symmetric)
	for i := range list.Beams {
		var h beamHeader
		c.get(&h)
		if c.err == nil && (h.NOrbit < 0 || h.NOrbit > maxCount || h.NBulkOrbit < 0 || h.NBulkOrbit > maxCount) {
			c.err = fmt.Errorf("%w: beam %d", ErrFormat, i)
		}
		if c.err != nil {
			break
		}
		b := beams.Beam{
			Ind1: h.Ind1, Ind2: h.Ind2,
			Kr:        h.Kr,
			KPar2:     h.KPar2,
			Set:       int(h.Set),
			AkzR:      h.AkzR,
			Orbit:     make([][2]float64, h.NOrbit),
			BulkOrbit: make([][2]float64, h.NBulkOrbit),
		}
		c.get(b.Orbit)
		c.get(b.BulkOrbit)
		list.Beams[i] = b
	}
	if c.err != nil {
		if !errors.Is(c.err, ErrFormat) {
			c.err = fmt.Errorf("%w: %w", ErrFormat, c.err)
		}
		return nil, c.err
	}

	size := c.n
	var checksum uint64
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if checksum != size {
		return nil, fmt.Errorf("%w: %d bytes read, %d recorded", ErrChecksum, size, checksum)
	}
	return engine.Restore(parameters, cr, sets, list)
}

func readCrystal(c *counter) *crystal.Crystal {
	var h crystalHeader
	c.get(&h)
	if c.err == nil && (h.NMirrors < 0 || h.NMirrors > maxCount || h.NBulk < 0 || h.NBulk > maxCount || h.NOver < 0 || h.NOver > maxCount) {
		c.err = fmt.Errorf("%w: crystal header", ErrFormat)
	}
	if c.err != nil {
		return nil
	}
	cr := &crystal.Crystal{
		A1: h.A1, A2: h.A2, A3: h.A3,
		Recip:      h.Recip,
		Area:       h.Area,
		Super:      h.Super,
		SuperRecip: h.SuperRecip,
		B1:         h.B1, B2: h.B2,
		RecipSuper: h.RecipSuper,
		RelAreaSup: h.RelAreaSup,
		DMin:       h.DMin,
		Symmetry: crystal.Symmetry{
			NRot:    int(h.NRot),
			Axis:    h.Axis,
			Mirrors: make([]float64, h.NMirrors),
		},
		Vr: h.Vr, ViPre: h.ViPre, ViExp: h.ViExp,
		Temperature: h.Temperature,
	}
	c.get(cr.Symmetry.Mirrors)
	if h.NMirrors == 0 {
		cr.Symmetry.Mirrors = nil
	}

	layers := make([]crystal.Layer, h.NBulk+h.NOver)
	for i := range layers {
		var lh layerHeader
		c.get(&lh)
		if c.err == nil && (lh.NAtoms < 0 || lh.NAtoms > maxCount) {
			c.err = fmt.Errorf("%w: layer %d", ErrFormat, i)
		}
		if c.err != nil {
			return nil
		}
		layers[i] = crystal.Layer{
			Index:       int(lh.Index),
			Bulk:        lh.Bulk,
			Periodic:    lh.Periodic,
			A1:          lh.A1,
			A2:          lh.A2,
			RelArea:     lh.RelArea,
			Origin:      lh.Origin,
			RegShift:    lh.RegShift,
			VecFromLast: lh.VecFromLast,
			VecToNext:   lh.VecToNext,
			Atoms:       make([]crystal.Atom, lh.NAtoms),
		}
	}
	for i := range layers {
		for j := range layers[i].Atoms {
			var a atomRecord
			c.get(&a)
			layers[i].Atoms[j] = crystal.Atom{Pos: a.Pos, Type: int(a.Type), Kind: phaseshift.Kind(a.Kind)}
		}
	}
	cr.Bulk = layers[:h.NBulk:h.NBulk]
	cr.Over = layers[h.NBulk:]
	if h.NOver == 0 {
		cr.Over = nil
	}
	return cr
}
