// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import "github.com/nullspace-labs/qpactive/internal/spmat"

// refreshKKT rewrites s.kw in place from the base KKT s.k and the
// current sign(λ), per §4.1:
//
//   - box column c (c<n) with λ_c≠0 (active): column becomes the unit
//     vector e_c — pins dz_c to the residual computed in direction.go.
//   - linear column c (c≥n) with λ_c=0 (inactive): column becomes -e_c —
//     forces dλ_a,c to the residual, i.e. keeps it at zero.
//   - otherwise: the base KKT column is kept (via sparsity projection).
func (s *Solver) refreshKKT() {
	spmat.ProjectInto(s.kw, s.k)
	for c := 0; c < s.nm; c++ {
		switch {
		case c < s.n && s.lam[c] != 0:
			s.kw.ZeroCol(c)
			s.kw.Vals[s.diagPos[c]] = one
		case c >= s.n && s.lam[c] == 0:
			s.kw.ZeroCol(c)
			s.kw.Vals[s.diagPos[c]] = -one
		}
	}
}
