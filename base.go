// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qpactive implements an active-set solver for convex quadratic
// programs
//
//	minimize    ½ xᵀHx + gᵀx
//	subject to  lbx ≤ x ≤ ubx,  lba ≤ Ax ≤ uba
//
// where H is a symmetric positive-semidefinite sparse n×n matrix and A
// is a sparse m×n matrix. Bounds may be ±∞ in either direction.
//
// # Working set as sign(λ)
//
// Rather than track a boolean active-set membership alongside a
// multiplier vector, the solver encodes the working set entirely in
// sign(λᵢ) ∈ {−, 0, +}: negative means the lower bound is active,
// positive means the upper bound is active, zero means inactive. A
// "barely active" multiplier is clamped to magnitude ≥ dmin so that
// ordinary arithmetic never collapses it back to exactly zero and
// silently deactivates the constraint.
//
// # Fixed-sparsity KKT
//
// The working KKT matrix
//
//	Kw = [ H   Aᵀ ]
//	     [ A   0  ]
//
// is rewritten column-by-column according to sign(λ) (see kkt.go), but
// its structural sparsity — the base KKT pattern unioned with a full
// diagonal — never changes across iterations. That lets every
// refactorization reuse the same symbolic analysis; only numeric values
// change.
//
// # Singularity recovery
//
// When the working KKT is numerically rank deficient, a left null
// vector identifies which column flip restores rank (flip.go), filtered
// so the flip cannot increase primal or dual error.
package qpactive

const (
	zero = 0.0
	one  = 1.0

	// dmin is the smallest strictly positive normalized float64
	// (2⁻¹⁰²²), used as a sentinel magnitude so an "active" multiplier's
	// sign survives arithmetic without ever reaching exactly zero.
	dmin = 2.2250738585072014e-308

	// singularTol is the QR diagonal threshold below which the working
	// KKT is treated as numerically rank-deficient.
	singularTol = 1e-12

	// flipEps is the minimum magnitude a direction component or
	// null-vector contribution must have to be considered by the
	// singularity-recovery flip search.
	flipEps = 1e-12

	// floorTol is the floor under prerr/duerr tolerances so a perfectly
	// converged iterate doesn't produce a zero-width feasibility band.
	floorTol = 1e-10
)

// Status is the outcome of a Solve call.
type Status int

const (
	// OK: the active set stopped changing — the solver converged.
	OK Status = iota
	// MaxIterationsExceeded: the iteration cap was reached before the
	// active set settled.
	MaxIterationsExceeded
	// SingularityUnrecoverable: the working KKT went singular and no
	// candidate flip could restore feasibility.
	SingularityUnrecoverable
)

// String renders a Status for trace messages and error text.
func (s Status) String() string {
	switch s {
	case OK:
		return "converged"
	case MaxIterationsExceeded:
		return "maximum number of iterations reached"
	case SingularityUnrecoverable:
		return "cannot restore feasibility"
	default:
		return "unknown status"
	}
}

// sign returns -1, 0 or +1 for a multiplier value, the canonical working
// set encoding described in the package doc.
func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
