// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spqr is the numeric QR kernel the active-set core factors the
// working KKT matrix with. The core guarantees a fixed structural
// sparsity across iterations, so this package does no symbolic analysis
// of its own: it is handed a dense n×n working copy each iteration (the
// KKT is small enough, and changes only in value between iterations) and
// performs Householder reduction, tracking the smallest diagonal of R to
// detect rank deficiency and, on request, extracting a null vector by
// back-substitution against the singular row.
//
// The Householder sweep follows the classic reflect-and-accumulate loop
// (compute the reflector for column k, apply it to the trailing columns
// of R, accumulate it against the trailing columns of Q) rather than a
// sparse multifrontal factorization — adequate for the KKT sizes this
// solver targets, and it keeps the left/right null-vector extraction of
// §4.2/§4.4 simple: Q is available explicitly for forming Qᵀb and for
// refactoring the transpose to get the left null vector.
package spqr

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDimension is returned when Factorize is given a non-square matrix.
var ErrDimension = errors.New("spqr: matrix must be square")

// Factors holds the Householder QR factorization of one working KKT
// matrix: Q (accumulated explicitly) and the upper-triangular R.
type Factors struct {
	n int
	q *mat.Dense
	r *mat.Dense

	minAbsDiag float64
	minIdx     int
}

// Factorize computes the QR factorization of the dense n×n matrix a
// (a is read, not retained). Returns ErrDimension for non-square input.
func Factorize(a *mat.Dense) (*Factors, error) {
	rows, cols := a.Dims()
	if rows != cols {
		return nil, ErrDimension
	}
	n := rows

	r := mat.DenseCopyOf(a)
	q := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		q.Set(i, i, 1)
	}

	v := make([]float64, n)
	for k := 0; k < n; k++ {
		norm := 0.0
		for i := k; i < n; i++ {
			norm += r.At(i, k) * r.At(i, k)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue
		}

		alpha := -math.Copysign(norm, r.At(k, k))
		for i := 0; i < n; i++ {
			v[i] = 0
		}
		for i := k; i < n; i++ {
			v[i] = r.At(i, k)
		}
		v[k] -= alpha

		beta := 0.0
		for i := k; i < n; i++ {
			beta += v[i] * v[i]
		}
		if beta == 0 {
			continue
		}
		tau := 2.0 / beta

		for j := k; j < n; j++ {
			sum := 0.0
			for i := k; i < n; i++ {
				sum += v[i] * r.At(i, j)
			}
			sum *= tau
			for i := k; i < n; i++ {
				r.Set(i, j, r.At(i, j)-sum*v[i])
			}
		}
		for j := 0; j < n; j++ {
			sum := 0.0
			for i := k; i < n; i++ {
				sum += v[i] * q.At(i, j)
			}
			sum *= tau
			for i := k; i < n; i++ {
				q.Set(i, j, q.At(i, j)-sum*v[i])
			}
		}
	}

	f := &Factors{n: n, q: q, r: r}
	f.minAbsDiag = math.Inf(1)
	for i := 0; i < n; i++ {
		d := math.Abs(r.At(i, i))
		if d < f.minAbsDiag {
			f.minAbsDiag, f.minIdx = d, i
		}
	}
	// Q was accumulated as the product of reflectors applied in place,
	// i.e. it currently holds Qᵀ; transpose once so Solve can use it
	// directly as Q.
	f.q = mat.DenseCopyOf(q.T())

	return f, nil
}

// Singular reports whether the smallest |diag(R)| is below tol, returning
// that minimum and its row index.
func (f *Factors) Singular(tol float64) (singular bool, minAbsDiag float64, idx int) {
	return f.minAbsDiag < tol, f.minAbsDiag, f.minIdx
}

// Solve returns x solving the factored system A·x = b via x = R⁻¹Qᵀb.
// Only valid when Factors is non-singular; callers must check Singular
// first and take the ColComb path otherwise.
func (f *Factors) Solve(b []float64) []float64 {
	n := f.n
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			sum += f.q.At(j, i) * b[j]
		}
		y[i] = sum
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for j := i + 1; j < n; j++ {
			sum -= f.r.At(i, j) * x[j]
		}
		x[i] = sum / f.r.At(i, i)
	}
	return x
}

// ColComb returns a right null vector of the factored matrix, computed by
// fixing the deficient row imin's unknown to 1 and back-substituting the
// remaining rows through R (whose other diagonals are assumed non-zero —
// the solver only ever asks for one flip's worth of rank deficiency at a
// time). This is the qr_colcomb primitive of §4.2.
func (f *Factors) ColComb(imin int) []float64 {
	n := f.n
	x := make([]float64, n)
	x[imin] = 1
	for i := n - 1; i >= 0; i-- {
		if i == imin {
			continue
		}
		sum := 0.0
		for j := i + 1; j < n; j++ {
			sum += f.r.At(i, j) * x[j]
		}
		x[i] = -sum / f.r.At(i, i)
	}
	return x
}

// Dims returns the factored matrix size.
func (f *Factors) Dims() int { return f.n }

// DenseFromRows packs a row-major dense matrix (as produced by
// (*spmat.Matrix).Dense) into a gonum mat.Dense ready for Factorize.
func DenseFromRows(rows [][]float64) *mat.Dense {
	n := len(rows)
	flat := make([]float64, 0, n*n)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return mat.NewDense(n, n, flat)
}
