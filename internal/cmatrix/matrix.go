// Package cmatrix is a dense complex matrix type with the operations the
// scattering code needs. Storage is a row-major cblas128.General so that
// products go through the gonum BLAS implementation.
package cmatrix

import (
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
)

type Matrix struct {
	g cblas128.General
}

// New returns a zeroed rows x cols matrix.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		panic("cmatrix: negative dimension")
	}
	return &Matrix{g: cblas128.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]complex128, rows*cols),
	}}
}

func Identity(n int) *Matrix {
	m := New(n, n)
	for i := range n {
		m.g.Data[i*m.g.Stride+i] = 1
	}
	return m
}

// FromRows copies a [][]complex128 into a new matrix. All rows must have equal length.
func FromRows(rows [][]complex128) *Matrix {
	if len(rows) == 0 {
		return New(0, 0)
	}
	m := New(len(rows), len(rows[0]))
	for i := range rows {
		if len(rows[i]) != m.g.Cols {
			panic("cmatrix: ragged rows")
		}
		copy(m.g.Data[i*m.g.Stride:], rows[i])
	}
	return m
}

// Diagonal returns a square matrix with d on its diagonal.
func Diagonal(d []complex128) *Matrix {
	m := New(len(d), len(d))
	for i := range d {
		m.g.Data[i*m.g.Stride+i] = d[i]
	}
	return m
}

func (m *Matrix) Rows() int { return m.g.Rows }
func (m *Matrix) Cols() int { return m.g.Cols }

func (m *Matrix) IsSquare() bool { return m.g.Rows == m.g.Cols }

func (m *Matrix) At(i, j int) complex128 {
	return m.g.Data[i*m.g.Stride+j]
}

func (m *Matrix) Set(i, j int, v complex128) {
	m.g.Data[i*m.g.Stride+j] = v
}

// AddAt adds v to element (i, j).
func (m *Matrix) AddAt(i, j int, v complex128) {
	m.g.Data[i*m.g.Stride+j] += v
}

// Row returns a view of row i.
func (m *Matrix) Row(i int) []complex128 {
	return m.g.Data[i*m.g.Stride : i*m.g.Stride+m.g.Cols]
}

// General exposes the underlying BLAS storage.
func (m *Matrix) General() cblas128.General { return m.g }

func (m *Matrix) Clone() *Matrix {
	c := New(m.g.Rows, m.g.Cols)
	for i := range m.g.Rows {
		copy(c.Row(i), m.Row(i))
	}
	return c
}

func Mul(a, b *Matrix) (*Matrix, error) {
	if a.g.Cols != b.g.Rows {
		return nil, matrixErrorf("Mul", ErrDimensionMismatch, "%dx%d * %dx%d", a.g.Rows, a.g.Cols, b.g.Rows, b.g.Cols)
	}
	c := New(a.g.Rows, b.g.Cols)
	if a.g.Rows == 0 || b.g.Cols == 0 || a.g.Cols == 0 {
		return c, nil
	}
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, a.g, b.g, 0, c.g)
	return c, nil
}

// Product multiplies the matrices left to right.
func Product(ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, matrixErrorf("Product", ErrDimensionMismatch, "no operands")
	}
	res := ms[0]
	for _, m := range ms[1:] {
		var err error
		if res, err = Mul(res, m); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func Add(a, b *Matrix) (*Matrix, error) {
	return combine("Add", a, b, func(x, y complex128) complex128 { return x + y })
}

func Sub(a, b *Matrix) (*Matrix, error) {
	return combine("Sub", a, b, func(x, y complex128) complex128 { return x - y })
}

func combine(op string, a, b *Matrix, f func(x, y complex128) complex128) (*Matrix, error) {
	if a.g.Rows != b.g.Rows || a.g.Cols != b.g.Cols {
		return nil, matrixErrorf(op, ErrDimensionMismatch, "%dx%d vs %dx%d", a.g.Rows, a.g.Cols, b.g.Rows, b.g.Cols)
	}
	c := New(a.g.Rows, a.g.Cols)
	for i := range a.g.Rows {
		ra, rb, rc := a.Row(i), b.Row(i), c.Row(i)
		for j := range rc {
			rc[j] = f(ra[j], rb[j])
		}
	}
	return c, nil
}

// Scale returns s*m.
func (m *Matrix) Scale(s complex128) *Matrix {
	c := m.Clone()
	for i := range c.g.Data {
		c.g.Data[i] *= s
	}
	return c
}

// ScaleRows multiplies row i by f[i] in place.
func (m *Matrix) ScaleRows(f []complex128) {
	for i := range m.g.Rows {
		row := m.Row(i)
		for j := range row {
			row[j] *= f[i]
		}
	}
}

// ScaleCols multiplies column j by f[j] in place.
func (m *Matrix) ScaleCols(f []complex128) {
	for i := range m.g.Rows {
		row := m.Row(i)
		for j := range row {
			row[j] *= f[j]
		}
	}
}

// AddIdentity adds 1 to every diagonal element in place.
func (m *Matrix) AddIdentity() {
	for i := range min(m.g.Rows, m.g.Cols) {
		m.g.Data[i*m.g.Stride+i] += 1
	}
}

func Transpose(m *Matrix) *Matrix {
	t := New(m.g.Cols, m.g.Rows)
	for i := range m.g.Rows {
		for j, v := range m.Row(i) {
			t.g.Data[j*t.g.Stride+i] = v
		}
	}
	return t
}

// Extract copies the rows x cols block starting at (rowOff, colOff).
func (m *Matrix) Extract(rowOff, colOff, rows, cols int) (*Matrix, error) {
	if rowOff < 0 || colOff < 0 || rowOff+rows > m.g.Rows || colOff+cols > m.g.Cols {
		return nil, matrixErrorf("Extract", ErrOutOfRange, "block %dx%d at (%d,%d) of %dx%d", rows, cols, rowOff, colOff, m.g.Rows, m.g.Cols)
	}
	b := New(rows, cols)
	for i := range rows {
		copy(b.Row(i), m.g.Data[(rowOff+i)*m.g.Stride+colOff:(rowOff+i)*m.g.Stride+colOff+cols])
	}
	return b, nil
}

// Insert writes src into dst at (rowOff, colOff).
func Insert(dst, src *Matrix, rowOff, colOff int) error {
	if rowOff < 0 || colOff < 0 || rowOff+src.g.Rows > dst.g.Rows || colOff+src.g.Cols > dst.g.Cols {
		return matrixErrorf("Insert", ErrOutOfRange, "block %dx%d at (%d,%d) of %dx%d", src.g.Rows, src.g.Cols, rowOff, colOff, dst.g.Rows, dst.g.Cols)
	}
	for i := range src.g.Rows {
		copy(dst.g.Data[(rowOff+i)*dst.g.Stride+colOff:], src.Row(i))
	}
	return nil
}

// AbsSum is the sum of the moduli of all elements.
func (m *Matrix) AbsSum() (s float64) {
	for i := range m.g.Rows {
		for _, v := range m.Row(i) {
			s += cmplx.Abs(v)
		}
	}
	return
}

// MaxAbs is the largest element modulus.
func (m *Matrix) MaxAbs() (s float64) {
	for i := range m.g.Rows {
		for _, v := range m.Row(i) {
			s = max(s, cmplx.Abs(v))
		}
	}
	return
}

// EqualApprox reports whether a and b have equal shape and all elements
// differ by at most tol in modulus.
func EqualApprox(a, b *Matrix, tol float64) bool {
	if a.g.Rows != b.g.Rows || a.g.Cols != b.g.Cols {
		return false
	}
	for i := range a.g.Rows {
		ra, rb := a.Row(i), b.Row(i)
		for j := range ra {
			if cmplx.Abs(ra[j]-rb[j]) > tol {
				return false
			}
		}
	}
	return true
}
