/*
Copyright © 2024 the Kappa authors.
This file is part of Kappa.

Kappa is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Kappa is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Kappa.  If not, see <http://www.gnu.org/licenses/>.
*/

package kappa

import (
	"fmt"
	"math"

	"github.com/spatialmodel/kappa/harmonic"
	"gonum.org/v1/gonum/floats/scalar"
)

// degeneracyTolerance groups bands whose frequencies differ by less than
// this amount [THz].
const degeneracyTolerance = 1e-4

// GroupVelocity calculates the group velocities [THz·Å] of all bands at
// reduced wavevector q. The derivative of the dynamical matrix is taken
// by central differences with Cartesian step dq [1/Å]. Within a set of
// degenerate bands the eigenvectors are first rotated to diagonalize the
// derivative along a generic direction, which makes the velocities
// well defined. Bands at or below cutoff get zero velocity.
func GroupVelocity(dm DynamicalMatrix, cell [3][3]float64, q [3]float64, dq, cutoff float64) ([][3]float64, error) {
	if !(dq > 0) {
		return nil, fmt.Errorf("kappa: group velocity step %g must be positive", dq)
	}
	vals, vecs, err := dm.At(q).Eigen()
	if err != nil {
		return nil, err
	}
	factor := dm.FrequencyFactor()
	freqs := harmonic.Frequencies(vals, factor)

	norm := math.Sqrt(14)
	directions := [4][3]float64{
		{1 / norm, 2 / norm, 3 / norm},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	var ddm [4]*harmonic.Hermitian
	for k, d := range directions {
		var step [3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				step[i] += cell[i][j] * d[j] * dq
			}
		}
		var qp, qm [3]float64
		for i := range q {
			qp[i] = q[i] + step[i]
			qm[i] = q[i] - step[i]
		}
		ddm[k] = harmonic.Difference(dm.At(qp), dm.At(qm), 1/(2*dq))
	}

	gv := make([][3]float64, len(freqs))
	for _, set := range degenerateSets(freqs) {
		sub := make([][]complex128, len(set))
		for i, b := range set {
			sub[i] = vecs[b]
		}
		rotated, err := rotateSubspace(sub, ddm[0])
		if err != nil {
			return nil, err
		}
		for i, b := range set {
			for a := 0; a < 3; a++ {
				gv[b][a] = ddm[a+1].Expectation(rotated[i])
			}
		}
	}
	for b, f := range freqs {
		if f <= cutoff {
			gv[b] = [3]float64{}
			continue
		}
		for a := range gv[b] {
			gv[b][a] *= factor * factor / (2 * f)
		}
	}
	return gv, nil
}

// degenerateSets groups consecutive band indices whose frequencies are
// within degeneracyTolerance.
func degenerateSets(freqs []float64) [][]int {
	var sets [][]int
	for b, f := range freqs {
		if n := len(sets); n > 0 {
			last := sets[n-1]
			if scalar.EqualWithinAbs(f, freqs[last[len(last)-1]], degeneracyTolerance) {
				sets[n-1] = append(last, b)
				continue
			}
		}
		sets = append(sets, []int{b})
	}
	return sets
}

// rotateSubspace returns the basis of the subspace spanned by vecs that
// diagonalizes d.
func rotateSubspace(vecs [][]complex128, d *harmonic.Hermitian) ([][]complex128, error) {
	if len(vecs) == 1 {
		return vecs, nil
	}
	_, w, err := d.Project(vecs).Eigen()
	if err != nil {
		return nil, err
	}
	out := make([][]complex128, len(w))
	for k, c := range w {
		v := make([]complex128, len(vecs[0]))
		for j, coef := range c {
			for i := range v {
				v[i] += vecs[j][i] * coef
			}
		}
		out[k] = v
	}
	return out, nil
}
