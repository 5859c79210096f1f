package layer

import (
	"sync"

	"github.com/wildstyl3r/cleed/internal/qm"
	"github.com/wildstyl3r/cleed/internal/utils"
)

// gauntTable holds G(l1m1, l2m2, l3) = int Y_{l1,m1} Y_{l3,m2-m1} Y_{l2,-m2}
// for l1, l2 <= lMax and l3 <= 2 lMax. Both propagators of the layer code
// are contractions of this table with a lattice sum L(l3, m2-m1).
type gauntTable struct {
	lMax int
	n    int
	g    []float64
}

var (
	gauntMu    sync.Mutex
	gauntCache = map[int]*gauntTable{}
)

// gauntFor returns the shared, read-only table for lMax.
func gauntFor(lMax int) *gauntTable {
	gauntMu.Lock()
	defer gauntMu.Unlock()
	if t, some := gauntCache[lMax]; some {
		return t
	}
	t := newGauntTable(lMax)
	gauntCache[lMax] = t
	return t
}

func newGauntTable(lMax int) *gauntTable {
	n := qm.LMCount(lMax)
	t := &gauntTable{lMax: lMax, n: n, g: make([]float64, n*n*(2*lMax+1))}
	for l1 := 0; l1 <= lMax; l1++ {
		for m1 := -l1; m1 <= l1; m1++ {
			for l2 := 0; l2 <= lMax; l2++ {
				for m2 := -l2; m2 <= l2; m2++ {
					for l3 := l3Min(l1, l2, m2-m1); l3 <= l1+l2; l3 += 2 {
						t.g[t.index(qm.LMIndex(l1, m1), qm.LMIndex(l2, m2), l3)] =
							qm.Gaunt(l1, m1, l3, m2-m1, l2, -m2)
					}
				}
			}
		}
	}
	return t
}

func (t *gauntTable) index(lm1, lm2, l3 int) int {
	return (lm1*t.n+lm2)*(2*t.lMax+1) + l3
}

func (t *gauntTable) at(lm1, lm2, l3 int) float64 {
	return t.g[t.index(lm1, lm2, l3)]
}

// l3Min is the smallest l3 >= max(|m3|, |l1-l2|) with l1+l2+l3 even.
func l3Min(l1, l2, m3 int) int {
	l3 := max(utils.IntAbs(m3), utils.IntAbs(l1-l2))
	if (l1+l2+l3)%2 != 0 {
		l3++
	}
	return l3
}
