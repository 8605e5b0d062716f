// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"math"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

// Solver holds everything derived once from a Problem: the fixed KKT
// sparsity, the sign-feasibility flags, and the reusable iteration
// buffers. A Solver is not safe for concurrent Solve calls — it owns its
// workspace exclusively for the duration of one call, the same
// assumption the teacher's Workspace makes for one Fit.
type Solver struct {
	problem Problem
	opts    Options

	n, m, nm int

	at *spmat.Matrix // Aᵀ, n×m, built once

	lbz, ubz []float64 // length nm

	kSp  spmat.Sparsity // base KKT sparsity [[H Aᵀ][A 0]]
	kwSp spmat.Sparsity // kSp ∪ diag(nm) — the working KKT's fixed pattern
	k    *spmat.Matrix  // base KKT numeric values, sparsity kSp, constant across iterations
	kw   *spmat.Matrix  // working KKT buffer, sparsity kwSp, rewritten every iteration
	diagPos []int       // kw value-index of (i,i), one per row

	neverZero, neverUpper, neverLower []bool

	// Iteration state, reset at the top of every Solve.
	z, lam   []float64 // length nm
	glag     []float64 // length n
	infeas   []float64 // length n
	tinfeas  []float64 // length n
	dz, dlam []float64 // length nm

	newActiveSet bool
	singular     bool
	minAbsDiag   float64
	minDiagIdx   int
	singIdx      int
	singSign     int
	lastTau      float64

	// Per-iteration scalar errors, refreshed by solve.go's loop body and
	// consumed by both the trace and the ratio-test engine.
	fk                 float64
	prerr, duerr       float64
	prErrIdx, duErrIdx int

	// pendingFlip defers a singularity-recovery sign flip (chosen this
	// iteration with a near-zero tau_test) to the top of the next
	// iteration's post-step sign management, per §4.5 step 5.
	pendingFlip bool

	// scratch reused by the flip search, sized once.
	leftNull []float64
}

// NewSolver validates p and opts and builds the fixed KKT sparsity and
// sign-feasibility flags described in §3/§4.1.
func NewSolver(p Problem, opts Options) (*Solver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	n, m := p.n(), p.m()
	nm := n + m

	s := &Solver{
		problem: p,
		opts:    opts,
		n:       n, m: m, nm: nm,
	}

	if m > 0 {
		s.at = spmat.Trans(p.A)
	} else {
		s.at = spmat.NewFromTriplets(n, 0, nil)
	}

	s.lbz = make([]float64, nm)
	s.ubz = make([]float64, nm)
	copy(s.lbz[:n], p.LBX)
	copy(s.ubz[:n], p.UBX)
	copy(s.lbz[n:], p.LBA)
	copy(s.ubz[n:], p.UBA)

	s.buildBaseKKT()
	s.buildSignFlags()
	if err := s.checkFeasibleSigns(); err != nil {
		return nil, err
	}

	s.kw = spmat.Zeros(s.kwSp)
	s.diagPos = make([]int, nm)
	for i := 0; i < nm; i++ {
		pos, ok := s.kwSp.Find(i, i)
		if !ok {
			panic("qpactive: kktd_sp missing structural diagonal")
		}
		s.diagPos[i] = pos
	}

	s.z = make([]float64, nm)
	s.lam = make([]float64, nm)
	s.glag = make([]float64, n)
	s.infeas = make([]float64, n)
	s.tinfeas = make([]float64, n)
	s.dz = make([]float64, nm)
	s.dlam = make([]float64, nm)
	s.leftNull = make([]float64, nm)

	return s, nil
}

// buildBaseKKT assembles the immutable base KKT matrix K (and its
// sparsity) from H, A and Aᵀ. Values never change across iterations —
// only the working copy kw, rewritten per sign(λ), does.
func (s *Solver) buildBaseKKT() {
	n, m := s.n, s.m
	var triplets []spmat.Triplet

	h := s.problem.H
	for c := 0; c < n; c++ {
		for k := h.ColPtr[c]; k < h.ColPtr[c+1]; k++ {
			triplets = append(triplets, spmat.Triplet{Row: h.RowIdx[k], Col: c, Val: h.Vals[k]})
		}
	}
	if m > 0 {
		a := s.problem.A
		for c := 0; c < n; c++ {
			for k := a.ColPtr[c]; k < a.ColPtr[c+1]; k++ {
				// A block sits at rows n..n+m-1, same columns 0..n-1.
				triplets = append(triplets, spmat.Triplet{Row: n + a.RowIdx[k], Col: c, Val: a.Vals[k]})
			}
		}
		for c := 0; c < m; c++ {
			for k := s.at.ColPtr[c]; k < s.at.ColPtr[c+1]; k++ {
				// Aᵀ block sits at rows 0..n-1, columns n..n+m-1.
				triplets = append(triplets, spmat.Triplet{Row: s.at.RowIdx[k], Col: n + c, Val: s.at.Vals[k]})
			}
		}
	}

	s.k = spmat.NewFromTriplets(s.nm, s.nm, triplets)
	s.kSp = s.k.Sparsity
	s.kwSp = spmat.WithFullDiag(s.kSp)
}

// buildSignFlags computes neverzero/neverupper/neverlower from the
// problem's bounds and from K's structurally-and-numerically zero rows
// (§4.1's all-zero-row rule).
func (s *Solver) buildSignFlags() {
	n, m, nm := s.n, s.m, s.nm
	inf := s.problem.infBound()

	s.neverZero = make([]bool, nm)
	s.neverUpper = make([]bool, nm)
	s.neverLower = make([]bool, nm)

	for i := 0; i < n; i++ {
		lb, ub := s.lbz[i], s.ubz[i]
		s.neverLower[i] = isLowerInf(lb, inf)
		s.neverUpper[i] = isUpperInf(ub, inf)
		s.neverZero[i] = lb == ub
	}
	for j := 0; j < m; j++ {
		i := n + j
		lb, ub := s.lbz[i], s.ubz[i]
		s.neverLower[i] = isLowerInf(lb, inf)
		s.neverUpper[i] = isUpperInf(ub, inf)
		s.neverZero[i] = lb == ub
	}

	rowNZ := make([]bool, nm)
	for c := 0; c < s.k.Cols; c++ {
		for k := s.k.ColPtr[c]; k < s.k.ColPtr[c+1]; k++ {
			if s.k.Vals[k] != 0 {
				rowNZ[s.k.RowIdx[k]] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		if !rowNZ[i] {
			s.neverZero[i] = true
		}
	}
	for j := 0; j < m; j++ {
		i := n + j
		if !rowNZ[i] {
			s.neverUpper[i] = true
			s.neverLower[i] = true
		}
	}
}

// checkFeasibleSigns enforces invariant 1 of §3: every index must admit
// at least one sign.
func (s *Solver) checkFeasibleSigns() error {
	for i := 0; i < s.nm; i++ {
		if s.neverZero[i] && s.neverUpper[i] && s.neverLower[i] {
			return errNoAdmissibleSign(i)
		}
	}
	return nil
}

func isLowerInf(v, inf float64) bool { return math.IsInf(v, -1) || v <= -inf }
func isUpperInf(v, inf float64) bool { return math.IsInf(v, 1) || v >= inf }
