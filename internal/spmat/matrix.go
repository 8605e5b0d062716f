// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spmat provides the sparse matrix and dense vector primitives
// consumed by the active-set QP core: compressed-sparse-column storage,
// gaxpy/bilinear-form/transpose/projection operators and the handful of
// dense vector helpers (copy, fill, scal, axpy, dot) the solver's inner
// loop relies on.
//
// A Matrix never changes its Sparsity once built; the solver exploits
// this by building the symbolic KKT pattern once and only overwriting
// Vals on every iteration (see the qpactive package's kkt.go).
package spmat

import "sort"

// Sparsity is the symbolic non-zero pattern of a Rows×Cols matrix in
// compressed-sparse-column form. RowIdx is sorted ascending within each
// column range [ColPtr[c], ColPtr[c+1]).
type Sparsity struct {
	Rows, Cols int
	ColPtr     []int
	RowIdx     []int
}

// NNZ returns the number of structural non-zeros.
func (sp Sparsity) NNZ() int { return len(sp.RowIdx) }

// Find returns the position of (row, col) within RowIdx/Vals, or ok=false
// if that entry is not structurally present.
func (sp Sparsity) Find(row, col int) (pos int, ok bool) {
	lo, hi := sp.ColPtr[col], sp.ColPtr[col+1]
	rows := sp.RowIdx[lo:hi]
	i := sort.SearchInts(rows, row)
	if i < len(rows) && rows[i] == row {
		return lo + i, true
	}
	return 0, false
}

// Matrix is a sparse matrix stored in compressed-sparse-column format.
type Matrix struct {
	Sparsity
	Vals []float64
}

// Triplet is a single (row, col, val) entry used to build a Matrix.
type Triplet struct {
	Row, Col int
	Val      float64
}

// NewFromTriplets builds a CSC matrix from an unordered triplet list.
// Duplicate (row, col) pairs are summed, matching the usual sparse
// assembly convention.
func NewFromTriplets(rows, cols int, triplets []Triplet) *Matrix {
	byCol := make([][]Triplet, cols)
	for _, t := range triplets {
		byCol[t.Col] = append(byCol[t.Col], t)
	}

	colPtr := make([]int, cols+1)
	var rowIdx []int
	var vals []float64

	for c := 0; c < cols; c++ {
		col := byCol[c]
		sort.Slice(col, func(i, j int) bool { return col[i].Row < col[j].Row })
		for i := 0; i < len(col); {
			j := i + 1
			v := col[i].Val
			for j < len(col) && col[j].Row == col[i].Row {
				v += col[j].Val
				j++
			}
			rowIdx = append(rowIdx, col[i].Row)
			vals = append(vals, v)
			i = j
		}
		colPtr[c+1] = len(rowIdx)
	}

	return &Matrix{
		Sparsity: Sparsity{Rows: rows, Cols: cols, ColPtr: colPtr, RowIdx: rowIdx},
		Vals:     vals,
	}
}

// Zeros allocates a Matrix sharing sp's sparsity with all values zeroed.
// Used to materialize the once-built KKT pattern as a reusable buffer.
func Zeros(sp Sparsity) *Matrix {
	colPtr := append([]int(nil), sp.ColPtr...)
	rowIdx := append([]int(nil), sp.RowIdx...)
	return &Matrix{
		Sparsity: Sparsity{Rows: sp.Rows, Cols: sp.Cols, ColPtr: colPtr, RowIdx: rowIdx},
		Vals:     make([]float64, len(rowIdx)),
	}
}

// Dense expands m into a row-major dense matrix, mainly for tests and
// for handing the numeric QR kernel a working copy.
func (m *Matrix) Dense() [][]float64 {
	d := make([][]float64, m.Rows)
	for i := range d {
		d[i] = make([]float64, m.Cols)
	}
	for c := 0; c < m.Cols; c++ {
		for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
			d[m.RowIdx[k]][c] = m.Vals[k]
		}
	}
	return d
}

// Col returns the row indices and values of column c without copying.
func (m *Matrix) Col(c int) (rows []int, vals []float64) {
	lo, hi := m.ColPtr[c], m.ColPtr[c+1]
	return m.RowIdx[lo:hi], m.Vals[lo:hi]
}

// At returns the value stored at (row, col), or 0 if structurally absent.
func (m *Matrix) At(row, col int) float64 {
	if pos, ok := m.Sparsity.Find(row, col); ok {
		return m.Vals[pos]
	}
	return 0
}

// Set overwrites the value at (row, col); the entry must already be
// structurally present (the KKT sparsity is fixed across iterations).
func (m *Matrix) Set(row, col int, v float64) {
	pos, ok := m.Sparsity.Find(row, col)
	if !ok {
		panic("spmat: Set on structurally absent entry")
	}
	m.Vals[pos] = v
}

// ZeroCol sets every value in column c to zero without changing sparsity.
func (m *Matrix) ZeroCol(c int) {
	for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
		m.Vals[k] = 0
	}
}
