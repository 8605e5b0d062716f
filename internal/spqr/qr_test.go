// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spqr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFactorizeSolve(t *testing.T) {
	a := DenseFromRows([][]float64{
		{2, 1},
		{1, 3},
	})
	f, err := Factorize(a)
	require.NoError(t, err)

	singular, _, _ := f.Singular(1e-12)
	require.False(t, singular)

	x := f.Solve([]float64{5, 10})
	// verify A x == b
	got := []float64{2*x[0] + 1*x[1], 1*x[0] + 3*x[1]}
	require.InDeltaSlice(t, []float64{5, 10}, got, 1e-9)
}

func TestFactorizeNonSquare(t *testing.T) {
	a := mat.NewDense(2, 3, make([]float64, 6))
	_, err := Factorize(a)
	require.ErrorIs(t, err, ErrDimension)
}

func TestSingularAndColComb(t *testing.T) {
	// Rank deficient: second row is twice the first.
	a := DenseFromRows([][]float64{
		{1, 2},
		{2, 4},
	})
	f, err := Factorize(a)
	require.NoError(t, err)

	singular, minAbs, idx := f.Singular(1e-9)
	require.True(t, singular)
	require.InDelta(t, 0, minAbs, 1e-9)

	nv := f.ColComb(idx)
	// A * nullVector should be (near) zero.
	res := []float64{
		a.At(0, 0)*nv[0] + a.At(0, 1)*nv[1],
		a.At(1, 0)*nv[0] + a.At(1, 1)*nv[1],
	}
	for _, v := range res {
		require.True(t, math.Abs(v) < 1e-6, "A*nullvector should vanish, got %v", res)
	}
}
