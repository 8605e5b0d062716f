// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spmat

import "gonum.org/v1/gonum/floats"

// Copy sets dst ← src.
func Copy(dst, src []float64) { copy(dst, src) }

// Fill sets every element of x to v.
func Fill(x []float64, v float64) {
	for i := range x {
		x[i] = v
	}
}

// Scal performs x ← α·x.
func Scal(x []float64, alpha float64) { floats.Scale(alpha, x) }

// Axpy performs y ← y + α·x.
func Axpy(y []float64, alpha float64, x []float64) { floats.AddScaled(y, alpha, x) }

// Dot returns the inner product of x and y.
func Dot(x, y []float64) float64 { return floats.Dot(x, y) }
