// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

// Problem specifies one convex QP instance.
//
//	minimize    ½ xᵀHx + gᵀx
//	subject to  lbx ≤ x ≤ ubx,  lba ≤ Ax ≤ uba
type Problem struct {
	// H is the symmetric n×n objective Hessian.
	H *spmat.Matrix
	// A is the m×n linear constraint matrix. May be nil for m=0.
	A *spmat.Matrix
	// G is the n-vector linear objective term.
	G []float64
	// LBX, UBX are the n-vector box bounds; use ±Inf for one-sided.
	LBX, UBX []float64
	// LBA, UBA are the m-vector linear constraint bounds; use ±Inf for
	// one-sided. Ignored when A is nil.
	LBA, UBA []float64
	// BndInf is the magnitude beyond which a bound is treated as
	// infinite. Zero selects math.MaxFloat64, matching the teacher's
	// Problem.BndInf default in slsqp/optimize.go.
	BndInf float64
}

// n returns the number of variables.
func (p *Problem) n() int { return len(p.G) }

// m returns the number of linear constraints.
func (p *Problem) m() int {
	if p.A == nil {
		return 0
	}
	return p.A.Rows
}

// infBound resolves BndInf to its effective value.
func (p *Problem) infBound() float64 {
	if p.BndInf == zero {
		return math.MaxFloat64
	}
	return math.Abs(p.BndInf)
}

// Validate checks dimensions and bound consistency, returning a wrapped
// error describing the first problem found.
func (p *Problem) Validate() error {
	n := p.n()
	if n == 0 {
		return errors.New("qpactive: problem dimension must be greater than 0")
	}
	if p.H == nil {
		return errors.New("qpactive: Hessian H is required")
	}
	if p.H.Rows != n || p.H.Cols != n {
		return errors.Errorf("qpactive: H must be %d×%d, got %d×%d", n, n, p.H.Rows, p.H.Cols)
	}
	if len(p.LBX) != n || len(p.UBX) != n {
		return errors.New("qpactive: LBX/UBX must have length n")
	}

	m := p.m()
	if p.A != nil {
		if p.A.Cols != n {
			return errors.Errorf("qpactive: A must have %d columns, got %d", n, p.A.Cols)
		}
		if len(p.LBA) != m || len(p.UBA) != m {
			return errors.New("qpactive: LBA/UBA must have length m")
		}
	}

	for i := 0; i < n; i++ {
		if p.LBX[i] > p.UBX[i] {
			return errors.Errorf("qpactive: LBX[%d] > UBX[%d]", i, i)
		}
	}
	for j := 0; j < m; j++ {
		if p.LBA[j] > p.UBA[j] {
			return errors.Errorf("qpactive: LBA[%d] > UBA[%d]", j, j)
		}
	}
	return nil
}

// WarmStart is the caller-supplied starting point. A zero-value WarmStart
// is a cold start: x=0 and all multipliers inactive, except those of
// indices that may never be inactive (equality bounds, all-zero KKT box
// rows), which start at ±dmin.
type WarmStart struct {
	X         []float64 // length n
	LamX      []float64 // length n
	LamA      []float64 // length m
}

// Options configures the iteration and convergence behavior, playing the
// role of the teacher's slsqp.Termination.
type Options struct {
	// MaxIter caps the number of outer iterations. Default 1000.
	MaxIter int
	// Tol gates convergence alongside the primary criterion ("no
	// active-set change in this iteration"): acceptance additionally
	// requires max(prerr, duerr) ≤ Tol. Default 1e-8.
	Tol float64
}

// withDefaults fills unset (zero-valued) fields with their defaults.
// Explicit negative values are left untouched so validate reports them.
func (o Options) withDefaults() Options {
	if o.MaxIter == 0 {
		o.MaxIter = 1000
	}
	if o.Tol == 0 {
		o.Tol = 1e-8
	}
	return o
}

func (o Options) validate() error {
	if o.MaxIter <= 0 {
		return errors.New("qpactive: MaxIter must be greater than 0")
	}
	if o.Tol <= 0 {
		return errors.New("qpactive: Tol must be greater than 0")
	}
	return nil
}
