// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

import "github.com/pkg/errors"

// errNoAdmissibleSign reports the fatal configuration error of §3
// invariant 1: index i's bounds forbid every one of the three admissible
// signs of λᵢ.
func errNoAdmissibleSign(i int) error {
	return errors.Errorf("qpactive: index %d admits no feasible multiplier sign (neverzero, neverupper and neverlower all set)", i)
}
