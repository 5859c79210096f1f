package cmatrix

import (
	"math"
	"math/cmplx"
)

// relative pivot modulus below which a matrix is treated as singular
const singularThreshold = 1e-15

// LU holds an in-place LU factorisation with partial (row) pivoting.
type LU struct {
	lu    *Matrix
	pivot []int
}

// Factorize computes P*A = L*U. L has a unit diagonal and shares storage with U.
func Factorize(a *Matrix) (*LU, error) {
	if !a.IsSquare() {
		return nil, matrixErrorf("Factorize", ErrNotSquare, "%dx%d", a.Rows(), a.Cols())
	}
	n := a.Rows()
	f := &LU{lu: a.Clone(), pivot: make([]int, n)}
	if n == 0 {
		return f, nil
	}
	scale := a.MaxAbs()
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, matrixErrorf("Factorize", ErrSingular, "max element %g", scale)
	}

	for k := range n {
		p, pMax := k, cmplx.Abs(f.lu.At(k, k))
		for i := k + 1; i < n; i++ {
			if v := cmplx.Abs(f.lu.At(i, k)); v > pMax {
				p, pMax = i, v
			}
		}
		if pMax <= singularThreshold*scale {
			return nil, matrixErrorf("Factorize", ErrSingular, "pivot %g at column %d", pMax, k)
		}
		f.pivot[k] = p
		if p != k {
			rk, rp := f.lu.Row(k), f.lu.Row(p)
			for j := range rk {
				rk[j], rp[j] = rp[j], rk[j]
			}
		}
		rk := f.lu.Row(k)
		inv := 1 / rk[k]
		for i := k + 1; i < n; i++ {
			ri := f.lu.Row(i)
			if ri[k] == 0 {
				continue
			}
			ri[k] *= inv
			l := ri[k]
			for j := k + 1; j < n; j++ {
				ri[j] -= l * rk[j]
			}
		}
	}
	return f, nil
}

// Solve returns X with A*X = B.
func (f *LU) Solve(b *Matrix) (*Matrix, error) {
	n := f.lu.Rows()
	if b.Rows() != n {
		return nil, matrixErrorf("Solve", ErrDimensionMismatch, "%dx%d system, %d rhs rows", n, n, b.Rows())
	}
	x := b.Clone()
	for k := range n {
		if p := f.pivot[k]; p != k {
			rk, rp := x.Row(k), x.Row(p)
			for j := range rk {
				rk[j], rp[j] = rp[j], rk[j]
			}
		}
	}
	// forward substitution with unit lower triangle
	for i := range n {
		ri := x.Row(i)
		li := f.lu.Row(i)
		for k := range i {
			if li[k] == 0 {
				continue
			}
			rk := x.Row(k)
			for j := range ri {
				ri[j] -= li[k] * rk[j]
			}
		}
	}
	for i := n - 1; i >= 0; i-- {
		ri := x.Row(i)
		ui := f.lu.Row(i)
		for k := i + 1; k < n; k++ {
			if ui[k] == 0 {
				continue
			}
			rk := x.Row(k)
			for j := range ri {
				ri[j] -= ui[k] * rk[j]
			}
		}
		inv := 1 / ui[i]
		for j := range ri {
			ri[j] *= inv
		}
	}
	return x, nil
}

// Inverse returns the inverse of a square matrix.
func Inverse(a *Matrix) (*Matrix, error) {
	f, err := Factorize(a)
	if err != nil {
		return nil, err
	}
	return f.Solve(Identity(a.Rows()))
}
