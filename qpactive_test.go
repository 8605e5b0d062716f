// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

func diag(vals ...float64) *spmat.Matrix {
	n := len(vals)
	triplets := make([]spmat.Triplet, n)
	for i, v := range vals {
		triplets[i] = spmat.Triplet{Row: i, Col: i, Val: v}
	}
	return spmat.NewFromTriplets(n, n, triplets)
}

func rowMat(rows int, cols int, entries ...spmat.Triplet) *spmat.Matrix {
	return spmat.NewFromTriplets(rows, cols, entries)
}

// boundless returns n-vectors set well beyond bndInf so the resulting
// neverlower/neverupper flags are true (see Problem.BndInf).
func boundless(n int, bndInf float64) ([]float64, []float64) {
	lb, ub := make([]float64, n), make([]float64, n)
	for i := range lb {
		lb[i], ub[i] = -bndInf*10, bndInf*10
	}
	return lb, ub
}

func almostEqualSlice(t *testing.T, want, got []float64, tol float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.InDeltaf(t, want[i], got[i], tol, "index %d: want %v got %v", i, want, got)
	}
}

// Scenario 1: unconstrained minimum of a PD quadratic.
func TestSolveUnconstrained(t *testing.T) {
	lbx, ubx := boundless(2, 1e15)
	p := Problem{
		H:      diag(2, 2),
		G:      []float64{-4, -6},
		LBX:    lbx,
		UBX:    ubx,
		BndInf: 1e15,
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	almostEqualSlice(t, []float64{2, 3}, res.X, 1e-6)
	require.InDelta(t, -13, res.F, 1e-6)
	almostEqualSlice(t, []float64{0, 0}, res.LamX, 1e-6)
}

// Scenario 2: box-only.
func TestSolveBoxOnly(t *testing.T) {
	p := Problem{
		H:   diag(2, 2),
		G:   []float64{-4, -6},
		LBX: []float64{0, 0},
		UBX: []float64{1, 1},
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	almostEqualSlice(t, []float64{1, 1}, res.X, 1e-6)
	require.InDelta(t, -8, res.F, 1e-6)
	almostEqualSlice(t, []float64{2, 4}, res.LamX, 1e-6)
}

// Scenario 3: equality via tight bounds.
func TestSolveEqualityViaTightBounds(t *testing.T) {
	p := Problem{
		H:   diag(2, 2),
		G:   []float64{0, 0},
		LBX: []float64{1, 2},
		UBX: []float64{1, 2},
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)
	require.True(t, s.neverZero[0])
	require.True(t, s.neverZero[1])

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	almostEqualSlice(t, []float64{1, 2}, res.X, 1e-6)
	almostEqualSlice(t, []float64{-2, -4}, res.LamX, 1e-6)
}

// Scenario 4: one active linear constraint.
func TestSolveOneLinearConstraint(t *testing.T) {
	lbx, ubx := boundless(2, 1e15)
	p := Problem{
		H:      diag(1, 1),
		G:      []float64{0, 0},
		LBX:    lbx,
		UBX:    ubx,
		A:      rowMat(1, 2, spmat.Triplet{Row: 0, Col: 0, Val: 1}, spmat.Triplet{Row: 0, Col: 1, Val: 1}),
		LBA:    []float64{1},
		UBA:    []float64{1},
		BndInf: 1e15,
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	almostEqualSlice(t, []float64{0.5, 0.5}, res.X, 1e-6)
	require.InDelta(t, 0.25, res.F, 1e-6)
	almostEqualSlice(t, []float64{-0.5}, res.LamA, 1e-6)
}

// Scenario 5: degenerate problem with an all-zero Hessian row.
func TestSolveDegenerateAllZeroRow(t *testing.T) {
	p := Problem{
		H:   diag(1, 0),
		G:   []float64{0, 0},
		LBX: []float64{-1, -1},
		UBX: []float64{1, 1},
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)
	require.True(t, s.neverZero[1], "all-zero row must force neverzero on the box index")

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	require.InDelta(t, 0, res.X[0], 1e-6)
	require.NotEqual(t, 0.0, res.LamX[1])
}

// Scenario 6: rank-deficient working set triggers the singularity flip.
func TestSolveRankDeficientTriggersFlip(t *testing.T) {
	p := Problem{
		H: diag(0, 0),
		G: []float64{1, 1},
		A: rowMat(2, 2,
			spmat.Triplet{Row: 0, Col: 0, Val: 1},
			spmat.Triplet{Row: 1, Col: 0, Val: 1},
		),
		LBX: []float64{-10, -10},
		UBX: []float64{10, 10},
		LBA: []float64{0, 0},
		UBA: []float64{0, 0},
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)

	res, err := s.Solve(WarmStart{})
	require.NoError(t, err)
	require.NotEqual(t, SingularityUnrecoverable, res.Status)
	require.InDelta(t, 0, res.X[0], 1e-6)

	nonzero := 0
	for _, l := range res.LamA {
		if l != 0 {
			nonzero++
		}
	}
	require.Equal(t, 1, nonzero, "exactly one of the two redundant rows should carry a multiplier")
}

// Warm-start idempotence: starting already at a known optimum converges
// in a single iteration.
func TestSolveWarmStartIdempotence(t *testing.T) {
	p := Problem{
		H:   diag(2, 2),
		G:   []float64{-4, -6},
		LBX: []float64{0, 0},
		UBX: []float64{1, 1},
	}
	s, err := NewSolver(p, Options{})
	require.NoError(t, err)

	res, err := s.Solve(WarmStart{
		X:    []float64{1, 1},
		LamX: []float64{2, 4},
	})
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	require.Equal(t, 1, res.Iterations)
	almostEqualSlice(t, []float64{1, 1}, res.X, 1e-9)
}

func TestProblemValidateDimensionMismatch(t *testing.T) {
	p := Problem{
		H:   diag(1, 1),
		G:   []float64{0, 0, 0},
		LBX: []float64{0, 0, 0},
		UBX: []float64{1, 1, 1},
	}
	err := p.Validate()
	require.Error(t, err)
}

func TestProblemValidateBoundOrder(t *testing.T) {
	p := Problem{
		H:   diag(1),
		G:   []float64{0},
		LBX: []float64{1},
		UBX: []float64{0},
	}
	err := p.Validate()
	require.Error(t, err)
}

// A variable with an all-zero Hessian row and no bounds on either side
// can never be deactivated (the all-zero-row rule forces neverzero) nor
// activated (both bounds are infinite) — a fatal configuration caught at
// construction time.
func TestNewSolverRejectsInfeasibleSign(t *testing.T) {
	p := Problem{
		H:      diag(1, 0),
		G:      []float64{0, 0},
		LBX:    []float64{0, -1e20},
		UBX:    []float64{1, 1e20},
		BndInf: 1e15,
	}
	_, err := NewSolver(p, Options{})
	require.Error(t, err)
}

func TestOptionsDefaultsAndValidation(t *testing.T) {
	o := Options{}.withDefaults()
	require.Equal(t, 1000, o.MaxIter)
	require.Equal(t, 1e-8, o.Tol)
	require.NoError(t, o.validate())

	bad := Options{MaxIter: -5}.withDefaults()
	require.Equal(t, -5, bad.MaxIter)
	require.Error(t, bad.validate())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "converged", OK.String())
	require.Equal(t, "maximum number of iterations reached", MaxIterationsExceeded.String())
	require.Equal(t, "cannot restore feasibility", SingularityUnrecoverable.String())
}

func TestSignHelper(t *testing.T) {
	require.Equal(t, 1, sign(0.5))
	require.Equal(t, -1, sign(-0.5))
	require.Equal(t, 0, sign(0))
}

func TestDminIsSmallestNormalized(t *testing.T) {
	require.Equal(t, 2.2250738585072014e-308, dmin)
	require.True(t, dmin > 0)
	require.True(t, dmin/2 < dmin, "halving dmin must give a smaller (subnormal) value")
}
