// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spmat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func denseRef(rows, cols int, triplets []Triplet) [][]float64 {
	d := make([][]float64, rows)
	for i := range d {
		d[i] = make([]float64, cols)
	}
	for _, t := range triplets {
		d[t.Row][t.Col] += t.Val
	}
	return d
}

func TestNewFromTripletsDense(t *testing.T) {
	triplets := []Triplet{
		{Row: 0, Col: 0, Val: 2},
		{Row: 1, Col: 0, Val: 3},
		{Row: 0, Col: 0, Val: 1}, // duplicate: sums with the first entry
		{Row: 1, Col: 1, Val: 5},
	}
	m := NewFromTriplets(2, 2, triplets)
	require.Equal(t, denseRef(2, 2, triplets), m.Dense())
}

func TestMv(t *testing.T) {
	m := NewFromTriplets(2, 2, []Triplet{
		{0, 0, 2}, {1, 0, 1}, {1, 1, 4},
	})
	x := []float64{1, 2}
	y := []float64{0, 0}
	Mv(m, x, y, false)
	require.Equal(t, []float64{2, 9}, y) // [2 0; 1 4] * [1 2] = [2, 1+8]

	yt := []float64{0, 0}
	Mv(m, x, yt, true)
	require.Equal(t, []float64{4, 8}, yt) // Mᵀ = [2 1; 0 4], * [1 2] = [2+2, 8]
}

func TestBilin(t *testing.T) {
	m := NewFromTriplets(2, 2, []Triplet{{0, 0, 2}, {1, 1, 3}})
	got := Bilin(m, []float64{1, 2}, []float64{1, 2})
	require.Equal(t, 2.0*1*1+3.0*2*2, got)
}

func TestTrans(t *testing.T) {
	m := NewFromTriplets(2, 3, []Triplet{{0, 0, 1}, {1, 2, 5}})
	tr := Trans(m)
	require.Equal(t, 3, tr.Rows)
	require.Equal(t, 2, tr.Cols)
	require.Equal(t, 1.0, tr.At(0, 0))
	require.Equal(t, 5.0, tr.At(2, 1))
}

func TestProject(t *testing.T) {
	src := NewFromTriplets(2, 2, []Triplet{{0, 0, 7}})
	dst := WithFullDiag(src.Sparsity)
	out := Project(src, dst)
	require.Equal(t, 7.0, out.At(0, 0))
	require.Equal(t, 0.0, out.At(1, 1))
	_, ok := dst.Find(1, 1)
	require.True(t, ok, "diagonal must be structurally present after WithFullDiag")
}

func TestUnionAndWithFullDiag(t *testing.T) {
	a := NewFromTriplets(2, 2, []Triplet{{0, 0, 1}}).Sparsity
	b := NewFromTriplets(2, 2, []Triplet{{1, 0, 1}}).Sparsity
	u := Union(a, b)
	require.Equal(t, 2, u.NNZ())

	d := WithFullDiag(u)
	require.Equal(t, 3, d.NNZ()) // (0,0), (1,0), (1,1)
}

func TestZeroColAndSet(t *testing.T) {
	m := NewFromTriplets(2, 2, []Triplet{{0, 0, 1}, {1, 0, 2}})
	m.ZeroCol(0)
	require.Equal(t, []float64{0, 0}, m.Vals)
	m.Set(0, 0, 9)
	require.Equal(t, 9.0, m.At(0, 0))
}
