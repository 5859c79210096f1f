// Package layer computes the diffraction matrices of single layers of
// atoms, Bravais and composite, in the basis of the beams of one set.
package layer

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/crystal"
	"github.com/wildstyl3r/cleed/internal/tmatrix"
)

// Quadruple holds the transmission and reflection matrices of a layer or a
// stack. Rows are outgoing beams, columns incident beams; + propagates
// towards the surface.
type Quadruple struct {
	Tpp, Tmm, Rpm, Rmp *cmatrix.Matrix
}

// Energy is what the layer code needs to know about the current energy.
type Energy struct {
	Eng     float64 // real part of the energy inside the crystal [Hartree]
	LMax    int
	Epsilon float64
	T       []tmatrix.TMatrix // by atom type
}

func (e *Energy) tmatrix(typ int) (tmatrix.TMatrix, error) {
	if typ < 0 || typ >= len(e.T) {
		return tmatrix.TMatrix{}, fmt.Errorf("layer: no scattering matrix for atom type %d", typ)
	}
	return e.T[typ], nil
}

type cacheKey struct {
	set, nBeams, lMax int
	bulk              bool
	a1, a2            [2]float64
}

type entry struct {
	llm     []complex128
	tii     map[int]*cmatrix.Matrix
	tiiComp map[int]*cmatrix.Matrix
	yRep    [][]complex128   // Y_lm at the representative beam angles
	yMem    [][][]complex128 // Y_lm at each orbit member
}

// Cache keeps what the layers of one beam set share at one energy: lattice
// sums, plane scattering matrices and spherical harmonics. It is owned by a
// single worker.
type Cache struct {
	eng     float64
	entries map[cacheKey]*entry
}

func NewCache() *Cache {
	return &Cache{eng: math.NaN()}
}

func (c *Cache) entry(e *Energy, lay *crystal.Layer, set []beams.Selected, lMax int) *entry {
	if c.entries == nil || e.Eng != c.eng {
		c.eng = e.Eng
		c.entries = map[cacheKey]*entry{}
	}
	key := cacheKey{set: set[0].Set, nBeams: len(set), lMax: lMax, bulk: lay.Bulk, a1: lay.A1, a2: lay.A2}
	if en, some := c.entries[key]; some {
		return en
	}
	en := &entry{tii: map[int]*cmatrix.Matrix{}, tiiComp: map[int]*cmatrix.Matrix{}}
	en.yRep, en.yMem = harmonics(set, lMax, lay.Bulk)
	c.entries[key] = en
	return en
}

// planeSum returns the in-plane lattice sum up to 2 lMax, evaluated at the
// parallel momentum of the first beam of the set.
func (en *entry) planeSum(e *Energy, lay *crystal.Layer, set []beams.Selected, lMax int) ([]complex128, error) {
	if en.llm != nil {
		return en.llm, nil
	}
	llm, err := SumII(set[0].K, [2]float64{set[0].Kx, set[0].Ky}, lay.A1, lay.A2, 2*lMax, e.Epsilon)
	if err != nil {
		return nil, err
	}
	en.llm = llm
	return llm, nil
}

// Scatter returns the diffraction matrices of lay for the beams in set,
// which must all belong to one beam set.
func Scatter(c *Cache, e *Energy, lay *crystal.Layer, set []beams.Selected) (*Quadruple, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("layer %d: no beams", lay.Index)
	}
	if lay.IsBravais() {
		return Bravais(c, e, lay, set)
	}
	return Composite(c, e, lay, set)
}
