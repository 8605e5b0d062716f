// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spmat

// Mv performs the sparse gaxpy y ← y + M·x (trans=false) or y ← y + Mᵀ·x
// (trans=true). x and y are never aliased by the caller.
func Mv(m *Matrix, x, y []float64, trans bool) {
	if !trans {
		for c := 0; c < m.Cols; c++ {
			xc := x[c]
			if xc == 0 {
				continue
			}
			for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
				y[m.RowIdx[k]] += m.Vals[k] * xc
			}
		}
		return
	}
	for c := 0; c < m.Cols; c++ {
		sum := 0.0
		for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
			sum += m.Vals[k] * x[m.RowIdx[k]]
		}
		y[c] += sum
	}
}

// Bilin computes the bilinear form xᵀ·M·y for sparse M.
func Bilin(m *Matrix, x, y []float64) float64 {
	sum := 0.0
	for c := 0; c < m.Cols; c++ {
		yc := y[c]
		if yc == 0 {
			continue
		}
		for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
			sum += x[m.RowIdx[k]] * m.Vals[k] * yc
		}
	}
	return sum
}

// Trans returns the transpose of m as a new Matrix with its own sparsity.
func Trans(m *Matrix) *Matrix {
	triplets := make([]Triplet, 0, m.NNZ())
	for c := 0; c < m.Cols; c++ {
		for k := m.ColPtr[c]; k < m.ColPtr[c+1]; k++ {
			triplets = append(triplets, Triplet{Row: c, Col: m.RowIdx[k], Val: m.Vals[k]})
		}
	}
	return NewFromTriplets(m.Cols, m.Rows, triplets)
}

// Project copies the numeric values of src onto the (superset) sparsity
// dst, zeroing any entry of dst not structurally present in src. dst must
// contain every structural entry of src (dst ⊇ src).
func Project(src *Matrix, dst Sparsity) *Matrix {
	out := Zeros(dst)
	for c := 0; c < src.Cols; c++ {
		for k := src.ColPtr[c]; k < src.ColPtr[c+1]; k++ {
			row := src.RowIdx[k]
			pos, ok := dst.Find(row, c)
			if !ok {
				panic("spmat: Project target sparsity missing source entry")
			}
			out.Vals[pos] = src.Vals[k]
		}
	}
	return out
}

// ProjectInto copies src's numeric values into dst in place (dst keeps
// its own sparsity, which must be a superset of src's), zeroing every
// dst entry not present in src first. Unlike Project this allocates
// nothing, so the solver's per-iteration KKT refresh can reuse one
// buffer across the whole solve.
func ProjectInto(dst, src *Matrix) {
	Fill(dst.Vals, 0)
	for c := 0; c < src.Cols; c++ {
		for k := src.ColPtr[c]; k < src.ColPtr[c+1]; k++ {
			row := src.RowIdx[k]
			pos, ok := dst.Find(row, c)
			if !ok {
				panic("spmat: ProjectInto target sparsity missing source entry")
			}
			dst.Vals[pos] = src.Vals[k]
		}
	}
}

// Union returns the structural union of two same-shaped sparsities.
func Union(a, b Sparsity) Sparsity {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		panic("spmat: Union shape mismatch")
	}
	colPtr := make([]int, a.Cols+1)
	var rowIdx []int
	for c := 0; c < a.Cols; c++ {
		ar := a.RowIdx[a.ColPtr[c]:a.ColPtr[c+1]]
		br := b.RowIdx[b.ColPtr[c]:b.ColPtr[c+1]]
		i, j := 0, 0
		for i < len(ar) || j < len(br) {
			switch {
			case j >= len(br) || (i < len(ar) && ar[i] < br[j]):
				rowIdx = append(rowIdx, ar[i])
				i++
			case i >= len(ar) || br[j] < ar[i]:
				rowIdx = append(rowIdx, br[j])
				j++
			default:
				rowIdx = append(rowIdx, ar[i])
				i++
				j++
			}
		}
		colPtr[c+1] = len(rowIdx)
	}
	return Sparsity{Rows: a.Rows, Cols: a.Cols, ColPtr: colPtr, RowIdx: rowIdx}
}

// WithFullDiag returns sp with every diagonal entry structurally present,
// adding it where missing. sp must be square. This is the kktd_sp
// construction: the working KKT needs a structural diagonal so that
// pinning a variable via a ±unit column never changes the pattern.
func WithFullDiag(sp Sparsity) Sparsity {
	if sp.Rows != sp.Cols {
		panic("spmat: WithFullDiag on non-square sparsity")
	}
	diag := Sparsity{Rows: sp.Rows, Cols: sp.Cols, ColPtr: make([]int, sp.Cols+1)}
	diag.RowIdx = make([]int, sp.Cols)
	for c := 0; c < sp.Cols; c++ {
		diag.RowIdx[c] = c
		diag.ColPtr[c+1] = c + 1
	}
	return Union(sp, diag)
}
