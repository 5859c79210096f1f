// Package doubling stacks layers: two different layers, a semi-infinite
// periodic stack by repeated doubling, and the surface potential step.
package doubling

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/wildstyl3r/cleed/internal/beams"
	"github.com/wildstyl3r/cleed/internal/cmatrix"
	"github.com/wildstyl3r/cleed/internal/constants"
	"github.com/wildstyl3r/cleed/internal/layer"
)

var ErrDoublingNotConverged = errors.New("doubling: layer doubling did not converge")

// propagators returns the plane wave factors from layer a to layer b:
//
//	P+ = exp(i ( kx vx + ky vy + kz vz))
//	P- = exp(i (-kx vx - ky vy + kz vz))
func propagators(set []beams.Selected, vec [3]float64) (pp, pm []complex128) {
	pp, pm = make([]complex128, len(set)), make([]complex128, len(set))
	for k := range set {
		s := &set[k]
		par := s.Kx*vec[0] + s.Ky*vec[1]
		z := s.Kz * complex(vec[2], 0)
		pp[k] = cmplx.Exp(1i * (complex(par, 0) + z))
		pm[k] = cmplx.Exp(1i * (complex(-par, 0) + z))
	}
	return
}

func scaledCols(m *cmatrix.Matrix, f []complex128) *cmatrix.Matrix {
	c := m.Clone()
	c.ScaleCols(f)
	return c
}

// oneMinus returns (I - a b)^-1.
func oneMinus(a, b *cmatrix.Matrix) (*cmatrix.Matrix, error) {
	ab, err := cmatrix.Mul(a, b)
	if err != nil {
		return nil, err
	}
	m := ab.Scale(-1)
	m.AddIdentity()
	return cmatrix.Inverse(m)
}

// TwoLayers combines layer a and layer b above it, vec pointing from a to
// b (vec[2] > 0):
//
//	Tab++ = Tb++ P+ (I - Ra+- P- Rb-+ P+)^-1 Ta++
//	Rab-+ = Ra-+ + Ta-- P- Rb-+ P+ (I - Ra+- P- Rb-+ P+)^-1 Ta++
//	Tab-- = Ta-- P- (I - Rb-+ P+ Ra+- P-)^-1 Tb--
//	Rab+- = Rb+- + Tb++ P+ Ra+- P- (I - Rb-+ P+ Ra+- P-)^-1 Tb--
func TwoLayers(a, b *layer.Quadruple, set []beams.Selected, vec [3]float64) (*layer.Quadruple, error) {
	pp, pm := propagators(set, vec)
	raP := scaledCols(a.Rpm, pm)
	rbP := scaledCols(b.Rmp, pp)
	tbP := scaledCols(b.Tpp, pp)
	taP := scaledCols(a.Tmm, pm)

	x, err := oneMinus(raP, rbP)
	if err != nil {
		return nil, fmt.Errorf("two layers: %w", err)
	}
	y, err := oneMinus(rbP, raP)
	if err != nil {
		return nil, fmt.Errorf("two layers: %w", err)
	}
	xT, err := cmatrix.Mul(x, a.Tpp)
	if err != nil {
		return nil, err
	}
	yT, err := cmatrix.Mul(y, b.Tmm)
	if err != nil {
		return nil, err
	}

	q := &layer.Quadruple{}
	if q.Tpp, err = cmatrix.Mul(tbP, xT); err != nil {
		return nil, err
	}
	if q.Tmm, err = cmatrix.Mul(taP, yT); err != nil {
		return nil, err
	}
	rmp, err := cmatrix.Product(taP, rbP, xT)
	if err != nil {
		return nil, err
	}
	if q.Rmp, err = cmatrix.Add(a.Rmp, rmp); err != nil {
		return nil, err
	}
	rpm, err := cmatrix.Product(tbP, raP, yT)
	if err != nil {
		return nil, err
	}
	if q.Rpm, err = cmatrix.Add(b.Rpm, rpm); err != nil {
		return nil, err
	}
	return q, nil
}

// ReflectionOnly returns Rab+- for a stack whose lower part is only known
// through its reflection matrix rpmA.
func ReflectionOnly(rpmA *cmatrix.Matrix, b *layer.Quadruple, set []beams.Selected, vec [3]float64) (*cmatrix.Matrix, error) {
	pp, pm := propagators(set, vec)
	raP := scaledCols(rpmA, pm)
	rbP := scaledCols(b.Rmp, pp)
	tbP := scaledCols(b.Tpp, pp)

	y, err := oneMinus(rbP, raP)
	if err != nil {
		return nil, fmt.Errorf("reflection: %w", err)
	}
	rpm, err := cmatrix.Product(tbP, raP, y, b.Tmm)
	if err != nil {
		return nil, err
	}
	return cmatrix.Add(b.Rpm, rpm)
}

// Periodic doubles the stack of identical units a, vec apart, until the
// transmission through the stack is negligible and returns its reflection
// matrix and the number of units included.
func Periodic(a *layer.Quadruple, set []beams.Selected, vec [3]float64) (*cmatrix.Matrix, int, error) {
	q := a
	abs := meanAbs(q.Tpp)
	n := 1
	for doublings := 0; abs > constants.DoublingTolerance; doublings++ {
		if doublings == constants.MaxDoublings {
			return nil, n, fmt.Errorf("%w: |Tpp| = %.1e after %d units", ErrDoublingNotConverged, abs, n)
		}
		var err error
		if q, err = TwoLayers(q, q, set, vec); err != nil {
			return nil, n, err
		}
		n *= 2
		abs = meanAbs(q.Tpp)
	}
	return q.Rpm, n, nil
}

func meanAbs(m *cmatrix.Matrix) float64 {
	return m.AbsSum() / float64(m.Rows()*m.Cols())
}
