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
	"context"
	"testing"

	"github.com/spatialmodel/kappa/harmonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStructure() *harmonic.Structure {
	return harmonic.SimpleCubic(2, 28, 2, 0.5)
}

func testForceConstants(t *testing.T) *harmonic.ForceConstants {
	fc, err := harmonic.NewForceConstants(testStructure())
	require.NoError(t, err)
	return fc
}

// finiteDifference returns df/dq_cart along axis a for every band.
func finiteDifference(t *testing.T, s harmonic.Solver, cell [3][3]float64, q [3]float64, a int, h float64) []float64 {
	var qp, qm [3]float64
	for i := range q {
		qp[i] = q[i] + cell[i][a]*h
		qm[i] = q[i] - cell[i][a]*h
	}
	pp, err := s.Phonon(context.Background(), qp)
	require.NoError(t, err)
	pm, err := s.Phonon(context.Background(), qm)
	require.NoError(t, err)
	d := make([]float64, len(pp.Frequencies))
	for b := range d {
		d[b] = (pp.Frequencies[b] - pm.Frequencies[b]) / (2 * h)
	}
	return d
}

func TestGroupVelocity(t *testing.T) {
	fc := testForceConstants(t)
	cell := testStructure().Cell
	solver := &harmonic.Direct{FC: fc}
	for _, q := range [][3]float64{{0.1, 0.2, 0.3}, {0.1, 0, 0}, {-0.3, 0.15, 0.05}} {
		gv, err := GroupVelocity(fc, cell, q, 1e-4, 1e-4)
		require.NoError(t, err)
		require.Len(t, gv, 3)
		for a := 0; a < 3; a++ {
			want := finiteDifference(t, solver, cell, q, a, 1e-6)
			for b := range want {
				assert.InDelta(t, want[b], gv[b][a], 1e-3, "q=%v band %d axis %d", q, b, a)
			}
		}
	}
}

func TestGroupVelocityDegenerate(t *testing.T) {
	fc := testForceConstants(t)
	gv, err := GroupVelocity(fc, testStructure().Cell, [3]float64{0.1, 0, 0}, 1e-4, 1e-4)
	require.NoError(t, err)
	assert.InDelta(t, gv[0][0], gv[1][0], 1e-8, "transverse modes move together")
	assert.Greater(t, gv[0][0], 0.)
	for b := 0; b < 2; b++ {
		assert.InDelta(t, 0, gv[b][1], 1e-8)
		assert.InDelta(t, 0, gv[b][2], 1e-8)
	}
}

func TestGroupVelocityGamma(t *testing.T) {
	fc := testForceConstants(t)
	gv, err := GroupVelocity(fc, testStructure().Cell, [3]float64{}, 1e-4, 1e-4)
	require.NoError(t, err)
	for b := range gv {
		assert.Equal(t, [3]float64{}, gv[b], "band %d", b)
	}
	_, err = GroupVelocity(fc, testStructure().Cell, [3]float64{}, 0, 1e-4)
	assert.Error(t, err)
}
