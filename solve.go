// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"math"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

// Result is the outcome of one Solve call.
type Result struct {
	X, LamX, LamA []float64
	F             float64
	Status        Status
	Iterations    int
	Trace         []IterationTrace
}

// Solve runs the active-set iteration of §4.5 from the given warm start
// (the zero value is a cold start: x=0, multipliers inactive except
// indices flagged neverZero, which start at ±dmin) and
// returns the primal-dual optimum or the reason iteration stopped short
// of one. A Solver's workspace is reused across calls; it is not safe to
// call Solve concurrently on the same Solver.
func (s *Solver) Solve(ws WarmStart) (*Result, error) {
	n, m, nm := s.n, s.m, s.nm

	spmat.Fill(s.z, 0)
	spmat.Fill(s.lam, 0)
	copyInto(s.z[:n], ws.X)
	copyInto(s.lam[:n], ws.LamX)
	copyInto(s.lam[n:], ws.LamA)
	if m > 0 {
		spmat.Mv(s.problem.A, s.z[:n], s.z[n:], false)
	}

	for i := 0; i < nm; i++ {
		s.lam[i] = s.projectInitialSign(i, s.lam[i])
	}

	s.newActiveSet = false
	s.singular = false
	s.singIdx = -1
	s.pendingFlip = false
	s.lastTau = 0

	var trace []IterationTrace
	result := &Result{}

	for iter := 0; ; iter++ {
		if m > 0 {
			spmat.Fill(s.z[n:], 0)
			spmat.Mv(s.problem.A, s.z[:n], s.z[n:], false)
		}

		copy(s.glag, s.problem.G)
		spmat.Mv(s.problem.H, s.z[:n], s.glag, false)
		if m > 0 {
			spmat.Mv(s.at, s.lam[n:], s.glag, false)
		}

		for i := 0; i < n; i++ {
			switch {
			case s.lam[i] > 0:
				s.lam[i] = math.Max(-s.glag[i], dmin)
			case s.lam[i] < 0:
				s.lam[i] = math.Min(-s.glag[i], -dmin)
			}
		}

		s.fk = 0.5*spmat.Bilin(s.problem.H, s.z[:n], s.z[:n]) + spmat.Dot(s.problem.G, s.z[:n])
		s.computeErrors()

		if !s.newActiveSet {
			switch {
			case s.pendingFlip:
				s.lam[s.singIdx] = signToLam(s.singSign)
				s.pendingFlip = false
				s.newActiveSet = true
			case s.prErrIdx >= 0 && s.lam[s.prErrIdx] == 0:
				s.activateViolated()
			}
		}

		s.refreshKKT()
		f, err := s.factorizeKKT()
		if err != nil {
			return nil, err
		}

		converged := !s.newActiveSet && math.Max(s.prerr, s.duerr) <= s.opts.Tol
		trace = append(trace, s.makeTrace(iter, converged))

		if converged {
			result.Status = OK
			break
		}
		// Active set may be stable but the tolerance isn't met yet (can
		// happen under ill-conditioning); force one more Newton pass.
		s.newActiveSet = true

		if iter >= s.opts.MaxIter {
			result.Status = MaxIterationsExceeded
			trace[len(trace)-1].Message = result.Status.String()
			break
		}

		s.newActiveSet = false
		s.direction(f)

		if s.singular {
			zeroStep, ok := s.resolveSingularity()
			if !ok {
				result.Status = SingularityUnrecoverable
				trace[len(trace)-1].Message = result.Status.String()
				break
			}
			if zeroStep {
				s.pendingFlip = true
				s.lastTau = 0
				continue
			}
			step := s.ratioTest()
			s.lastTau = step.tau
			s.applyStep(step)
			s.lam[s.singIdx] = signToLam(s.singSign)
			s.newActiveSet = true
			continue
		}

		if allZero(s.dz) && allZero(s.dlam) {
			s.lastTau = 0
			trace[len(trace)-1].Message = "no search direction"
			continue
		}

		step := s.ratioTest()
		s.lastTau = step.tau
		s.newActiveSet = s.newActiveSet || step.newActiveSet
		s.applyStep(step)
	}

	result.X = append([]float64(nil), s.z[:n]...)
	result.LamX = append([]float64(nil), s.lam[:n]...)
	result.LamA = append([]float64(nil), s.lam[n:]...)
	result.F = s.fk
	result.Iterations = len(trace)
	result.Trace = trace
	return result, nil
}

// computeErrors refreshes prerr/duerr (and infeas) from the current
// iterate, per §4.5 step 4.
func (s *Solver) computeErrors() {
	s.prerr, s.prErrIdx = 0, -1
	for i := 0; i < s.nm; i++ {
		v := math.Max(s.z[i]-s.ubz[i], math.Max(s.lbz[i]-s.z[i], 0))
		if v > s.prerr {
			s.prerr, s.prErrIdx = v, i
		}
	}
	s.duerr, s.duErrIdx = 0, -1
	for i := 0; i < s.n; i++ {
		s.infeas[i] = s.glag[i] + s.lam[i]
		v := math.Abs(s.infeas[i])
		if v > s.duerr {
			s.duerr, s.duErrIdx = v, i
		}
	}
}

// activateViolated implements the second bullet of §4.5 step 5: the most
// primal-infeasible index, if still inactive, is activated in the sign
// that pulls it toward feasibility.
func (s *Solver) activateViolated() {
	i := s.prErrIdx
	if s.z[i] < s.lbz[i] {
		s.lam[i] = -dmin
	} else {
		s.lam[i] = dmin
	}
	s.newActiveSet = true
}

// projectInitialSign maps a caller-supplied warm-start multiplier onto an
// admissible sign for index i, per §4.5's initialization step 4.
func (s *Solver) projectInitialSign(i int, raw float64) float64 {
	sg := sign(raw)
	if sg == 1 && s.neverUpper[i] {
		sg = 0
	}
	if sg == -1 && s.neverLower[i] {
		sg = 0
	}
	if sg == 0 && s.neverZero[i] {
		if s.z[i] <= s.lbz[i] {
			sg = -1
		} else {
			sg = 1
		}
	}
	return signToLam(sg)
}

// makeTrace builds this iteration's observability record.
func (s *Solver) makeTrace(iter int, converged bool) IterationTrace {
	msg := ""
	switch {
	case converged:
		msg = "converged"
	case s.singular:
		msg = "singular working KKT"
	}
	return IterationTrace{
		Iter:       iter,
		Singular:   s.singular,
		Cost:       s.fk,
		PrErr:      s.prerr,
		PrErrIdx:   s.prErrIdx,
		DuErr:      s.duerr,
		DuErrIdx:   s.duErrIdx,
		MinAbsDiag: s.minAbsDiag,
		MinDiagIdx: s.minDiagIdx,
		Tau:        s.lastTau,
		Message:    msg,
	}
}

func signToLam(sg int) float64 {
	switch sg {
	case 1:
		return dmin
	case -1:
		return -dmin
	default:
		return 0
	}
}

func copyInto(dst, src []float64) {
	if src == nil {
		return
	}
	copy(dst, src)
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
