// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"math"
	"sort"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

// stepResult is the outcome of one call to ratioTest: the accepted step
// length and, if a primal bound was hit at that exact length, which index
// and sign to activate.
type stepResult struct {
	tau          float64
	boundIdx     int // -1 if no primal bound was hit
	boundSign    int
	newActiveSet bool
}

// crossing is a candidate dual sign-crossing point along the current
// direction, tau_i = -lam_i/dlam_i, used by the dual bracket.
type crossing struct {
	idx int
	tau float64
}

// ratioTest implements §4.3: the composite primal/dual step-length
// engine. It may mutate s.lam, s.dlam, s.infeas and s.tinfeas in place as
// dual sign-crossings are accepted along the scan; z and the remaining
// lam entries are updated afterward by the caller's step application.
func (s *Solver) ratioTest() stepResult {
	ePr := math.Max(s.prerr, floorTol)
	eDu := math.Max(s.duerr, floorTol)

	res := s.primalBracket(ePr)
	if res.tau == zero {
		return res
	}

	crossings := s.dualCrossings(res.tau)
	sort.Slice(crossings, func(a, b int) bool { return crossings[a].tau < crossings[b].tau })

	prevTau := zero
	for _, cr := range crossings {
		dtau := cr.tau - prevTau
		if dtau < zero {
			dtau = zero
		}

		if clipTau, hit := s.dualOverflow(dtau, prevTau, eDu); hit {
			res.tau = clipTau
			res.boundIdx = -1 // the dual bracket, not the recorded primal bound, now limits tau
			res.newActiveSet = true
			return res
		}

		spmat.Axpy(s.infeas, dtau, s.tinfeas)
		s.snapCrossing(cr.idx)
		prevTau = cr.tau
	}

	return res
}

// primalBracket scans every direction component for a bound it would
// violate by more than ePr, shrinking tau monotonically. An index already
// outside its bound by more than ePr, moving the wrong way, halts the
// scan immediately with tau=0.
func (s *Solver) primalBracket(ePr float64) stepResult {
	res := stepResult{tau: one, boundIdx: -1}
	for i := 0; i < s.nm; i++ {
		di := s.dz[i]
		if di == zero {
			continue
		}
		lowViol := s.lbz[i] - s.z[i]
		upViol := s.z[i] - s.ubz[i]
		if lowViol > ePr && di <= zero {
			return stepResult{tau: zero, boundIdx: i, boundSign: -1}
		}
		if upViol > ePr && di >= zero {
			return stepResult{tau: zero, boundIdx: i, boundSign: 1}
		}
		if di < zero {
			if s.z[i]+res.tau*di < s.lbz[i]-ePr {
				t := (s.lbz[i] - ePr - s.z[i]) / di
				if t < zero {
					t = zero
				}
				if t < res.tau {
					res.tau, res.boundIdx, res.boundSign = t, i, -1
				}
			}
		} else {
			if s.z[i]+res.tau*di > s.ubz[i]+ePr {
				t := (s.ubz[i] + ePr - s.z[i]) / di
				if t < zero {
					t = zero
				}
				if t < res.tau {
					res.tau, res.boundIdx, res.boundSign = t, i, 1
				}
			}
		}
	}
	return res
}

// dualCrossings collects every multiplier whose sign would flip were the
// full step tau taken, each with its exact crossing point.
func (s *Solver) dualCrossings(tau float64) []crossing {
	var out []crossing
	for i := 0; i < s.nm; i++ {
		li, dli := s.lam[i], s.dlam[i]
		if li == zero || dli == zero {
			continue
		}
		if sign(li+tau*dli) == sign(li) {
			continue
		}
		t := -li / dli
		if t < zero {
			t = zero
		}
		if t > tau {
			t = tau
		}
		out = append(out, crossing{idx: i, tau: t})
	}
	return out
}

// dualOverflow checks whether accepting the segment of width dtau
// (starting at tauK, the previous crossing point) would push some
// component of dual infeasibility beyond eDu, returning the clipped tau
// at the earliest offending index.
func (s *Solver) dualOverflow(dtau, tauK, eDu float64) (float64, bool) {
	clipped := false
	var clipTau float64
	for k := 0; k < s.n; k++ {
		if math.Abs(s.infeas[k]+dtau*s.tinfeas[k]) <= eDu {
			continue
		}
		if s.tinfeas[k] == zero {
			continue
		}
		t := tauK - dtau*s.infeas[k]/s.tinfeas[k]
		if t < zero {
			t = zero
		}
		if !clipped || t < clipTau {
			clipped, clipTau = true, t
		}
	}
	return clipTau, clipped
}

// snapCrossing accepts the dual sign-crossing at idx: its multiplier is
// driven to zero (or ±dmin if neverZero requires a nonzero sign) and its
// contribution is removed from tinfeas so later segments see the updated
// tangent.
func (s *Solver) snapCrossing(idx int) {
	if idx < s.n {
		s.tinfeas[idx] -= s.lam[idx]
	} else {
		j := idx - s.n
		for k := s.at.ColPtr[j]; k < s.at.ColPtr[j+1]; k++ {
			row := s.at.RowIdx[k]
			s.tinfeas[row] -= s.at.Vals[k] * s.lam[idx]
		}
	}
	if s.neverZero[idx] {
		if s.lam[idx] > 0 {
			s.lam[idx] = dmin
		} else {
			s.lam[idx] = -dmin
		}
	} else {
		s.lam[idx] = 0
	}
	s.dlam[idx] = 0
}

// applyStep executes the step application rule of §4.3: z advances by
// tau*dz (x-block only, the a-block is refreshed from A·z next
// iteration), lam advances by tau*dlam, every index is clamped back to
// ±dmin if arithmetic pushed an active multiplier's magnitude below it
// without a sign crossing, and the recorded primal-bracket bound (if
// tau<1) is projected onto its required sign.
func (s *Solver) applyStep(res stepResult) {
	n := s.n
	spmat.Axpy(s.z[:n], res.tau, s.dz[:n])
	spmat.Axpy(s.lam, res.tau, s.dlam)

	for i := 0; i < s.nm; i++ {
		switch {
		case s.lam[i] > 0 && s.lam[i] < dmin:
			s.lam[i] = dmin
		case s.lam[i] < 0 && s.lam[i] > -dmin:
			s.lam[i] = -dmin
		}
	}

	if res.tau == one || res.boundIdx < 0 {
		return
	}

	i, want := res.boundIdx, res.boundSign
	if sign(s.lam[i]) == want {
		return
	}
	switch want {
	case 1:
		s.lam[i] = dmin
	case -1:
		s.lam[i] = -dmin
	default:
		s.lam[i] = 0
	}
	s.newActiveSet = true
}
