// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import (
	"github.com/nullspace-labs/qpactive/internal/spmat"
	"github.com/nullspace-labs/qpactive/internal/spqr"
)

// factorizeKKT factors the current working KKT into dense Householder
// QR form and records the singularity state used by both direction() and
// the trace emitted each iteration.
func (s *Solver) factorizeKKT() (*spqr.Factors, error) {
	dense := spqr.DenseFromRows(s.kw.Dense())
	f, err := spqr.Factorize(dense)
	if err != nil {
		return nil, err
	}
	singular, minAbs, idx := f.Singular(singularTol)
	s.singular = singular
	s.minAbsDiag = minAbs
	s.minDiagIdx = idx
	return f, nil
}

// buildResidual fills r (length nm) per §4.2's right-hand side rule.
func (s *Solver) buildResidual(r []float64) {
	n := s.n
	for i := 0; i < s.nm; i++ {
		switch {
		case s.lam[i] > 0:
			r[i] = s.z[i] - s.ubz[i]
		case s.lam[i] < 0:
			r[i] = s.z[i] - s.lbz[i]
		case i < n:
			r[i] = s.glag[i]
		default:
			r[i] = -s.lam[i]
		}
	}
}

// direction computes (dz, dλ) and tinfeas for the current iterate and
// working KKT factorization, following §4.2. When f is singular, dz is
// instead a right null-vector column combination and s.leftNull is
// populated with a left null vector of Kw, for flip.go to consume.
func (s *Solver) direction(f *spqr.Factors) {
	n, m, nm := s.n, s.m, s.nm

	var d []float64
	if s.singular {
		d = f.ColComb(s.minDiagIdx)
		s.computeLeftNull()
	} else {
		r := make([]float64, nm)
		s.buildResidual(r)
		d = f.Solve(r)
		spmat.Scal(d, -one) // dz = -Kw⁻¹r
	}

	copy(s.dz[:n], d[:n])
	copy(s.dlam[n:nm], d[n:nm]) // dλ_a = d[n..nm) (copy)

	spmat.Fill(s.dlam[:n], 0)
	if m > 0 {
		spmat.Mv(s.problem.H, s.dz[:n], s.dlam[:n], false)
		spmat.Mv(s.at, s.dlam[n:nm], s.dlam[:n], false)
	} else {
		spmat.Mv(s.problem.H, s.dz[:n], s.dlam[:n], false)
	}
	spmat.Scal(s.dlam[:n], -one)
	for i := 0; i < n; i++ {
		if s.lam[i] == 0 {
			s.dlam[i] = 0
		}
	}

	if m > 0 {
		spmat.Fill(s.dz[n:nm], 0)
		spmat.Mv(s.problem.A, s.dz[:n], s.dz[n:nm], false)
	}

	spmat.Fill(s.tinfeas, 0)
	spmat.Mv(s.problem.H, s.dz[:n], s.tinfeas, false)
	if m > 0 {
		spmat.Mv(s.at, s.dlam[n:nm], s.tinfeas, false)
	}
	spmat.Axpy(s.tinfeas, one, s.dlam[:n])
}

// computeLeftNull refactors Kwᵀ and extracts its column combination at
// its own deficient row, giving a left null vector of Kw (§4.2, used by
// flip.go's rank-restoring candidate search).
func (s *Solver) computeLeftNull() {
	kt := spmat.Trans(s.kw)
	dense := spqr.DenseFromRows(kt.Dense())
	ft, err := spqr.Factorize(dense)
	if err != nil {
		spmat.Fill(s.leftNull, 0)
		return
	}
	_, _, idx := ft.Singular(singularTol)
	w := ft.ColComb(idx)
	copy(s.leftNull, w)
}
