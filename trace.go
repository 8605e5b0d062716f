// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qpactive

// IterationTrace is one per-iteration observability record: enough to
// reconstruct the "row" a printing driver would emit, without the core
// doing any string formatting itself.
type IterationTrace struct {
	Iter       int
	Singular   bool
	Cost       float64
	PrErr      float64
	PrErrIdx   int
	DuErr      float64
	DuErrIdx   int
	MinAbsDiag float64
	MinDiagIdx int
	Tau        float64
	Message    string
}
