// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"math"

	"github.com/nullspace-labs/qpactive/internal/spmat"
)

// flipCandidate is one admissible rank-restoring column flip found by the
// search in resolveSingularity.
type flipCandidate struct {
	idx     int
	sign    int
	tauTest float64
}

// resolveSingularity implements §4.4. It must be called right after
// direction() has populated s.dz/s.dlam from a right null-vector of the
// singular working KKT and s.leftNull from the left null vector of its
// transpose. On success it scales the direction (dz, dlam) and the dual
// tangent tinfeas by the chosen candidate's tau so that tau=1 is exactly
// the flip point and the ratio test that follows sees a tangent
// consistent with the scaled direction; it records s.singIdx/s.singSign
// and reports whether the caller should take a genuine zero step (the
// flip is scheduled for next iteration's post-step handling). It returns
// false when no candidate restores rank.
func (s *Solver) resolveSingularity() (zeroStep bool, ok bool) {
	kwVec := make([]float64, s.nm)
	spmat.Mv(s.k, s.leftNull, kwVec, false)

	var best flipCandidate
	haveBest := false

	for i := 0; i < s.nm; i++ {
		d := s.flipRankDelta(i, kwVec)
		if math.Abs(d) < flipEps {
			continue
		}
		if !s.flipDirectionMeaningful(i) {
			continue
		}
		if !s.flipKeepsErrorMonotone(i) {
			continue
		}

		cand, admissible := s.flipTauTest(i)
		if !admissible {
			continue
		}
		if !haveBest || math.Abs(cand.tauTest) < math.Abs(best.tauTest) {
			best, haveBest = cand, true
		}
	}

	if !haveBest {
		return false, false
	}

	s.singIdx = best.idx
	s.singSign = best.sign

	if math.Abs(best.tauTest) < singularTol {
		return true, true
	}

	spmat.Scal(s.dz, best.tauTest)
	spmat.Scal(s.dlam, best.tauTest)
	spmat.Scal(s.tinfeas, best.tauTest)
	return false, true
}

// flipRankDelta evaluates d = wᵀΔc_i, the rank change induced by flipping
// column i between its active (±unit) and base-KKT form. kwVec is K·w,
// the base (non-working) KKT applied to the left null vector w.
func (s *Solver) flipRankDelta(i int, kwVec []float64) float64 {
	if i < s.n {
		return s.leftNull[i] - kwVec[i]
	}
	return -s.leftNull[i] - kwVec[i]
}

// flipDirectionMeaningful is filter 1 of §4.4: the direction component
// that would actually move under this flip must be non-negligible.
func (s *Solver) flipDirectionMeaningful(i int) bool {
	if s.lam[i] == zero {
		return math.Abs(s.dz[i]) >= flipEps
	}
	return math.Abs(s.dlam[i]) >= flipEps
}

// flipKeepsErrorMonotone is filter 2 of §4.4: a flip of a currently active
// index must not increase dual error at the component(s) it touches.
func (s *Solver) flipKeepsErrorMonotone(i int) bool {
	if s.lam[i] == zero {
		return true
	}
	if i < s.n {
		return sign(s.glag[i]) == sign(s.lam[i])
	}
	j := i - s.n
	for k := s.at.ColPtr[j]; k < s.at.ColPtr[j+1]; k++ {
		row := s.at.RowIdx[k]
		if row != s.duErrIdx {
			continue
		}
		if sign(s.glag[row]) != sign(s.lam[i]) {
			return false
		}
	}
	return true
}

// flipTauTest computes the candidate's tau_test and sign per §4.4, and
// applies the admissibility rejections (sign forbidden, negligible
// inactive move, would-increase-error).
func (s *Solver) flipTauTest(i int) (flipCandidate, bool) {
	var tau float64
	var signOut int

	if s.lam[i] == zero {
		di := s.dz[i]
		if di == zero {
			return flipCandidate{}, false
		}
		switch {
		case !s.neverLower[i]:
			tau, signOut = (s.lbz[i]-s.z[i])/di, -1
		case !s.neverUpper[i]:
			tau, signOut = (s.ubz[i]-s.z[i])/di, 1
		default:
			return flipCandidate{}, false
		}
		if math.Abs(tau) < 1e-16 {
			return flipCandidate{}, false
		}
	} else {
		if s.neverZero[i] {
			return flipCandidate{}, false
		}
		di := s.dlam[i]
		if di == zero {
			return flipCandidate{}, false
		}
		tau, signOut = -s.lam[i]/di, 0
	}

	if s.flipWouldIncreaseError(tau) {
		return flipCandidate{}, false
	}

	return flipCandidate{idx: i, sign: signOut, tauTest: tau}, true
}

// flipWouldIncreaseError implements the "reject sign of tau_test that
// would increase max(prerr,duerr)" rule, using the signed tangent of
// whichever error currently dominates.
func (s *Solver) flipWouldIncreaseError(tau float64) bool {
	var derr float64
	if s.prerr >= s.duerr {
		if s.prErrIdx < 0 {
			return false
		}
		derr = s.dz[s.prErrIdx]
		if s.z[s.prErrIdx] < s.lbz[s.prErrIdx] {
			derr = -derr
		}
	} else {
		if s.duErrIdx < 0 {
			return false
		}
		derr = s.tinfeas[s.duErrIdx]
		if s.glag[s.duErrIdx]+s.lam[s.duErrIdx] < zero {
			derr = -derr
		}
	}
	return derr != zero && sign(derr) == sign(tau)
}
