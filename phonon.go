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
	"math"

	"github.com/spatialmodel/kappa/harmonic"
)

// DynamicalMatrix evaluates the harmonic dynamical matrix of a crystal.
type DynamicalMatrix interface {
	// NumBands returns the matrix dimension.
	NumBands() int
	// At returns the dynamical matrix at reduced wavevector q.
	At(q [3]float64) *harmonic.Hermitian
	// FrequencyFactor converts sqrt(eigenvalue) to THz.
	FrequencyFactor() float64
}

// HarmonicSolver computes phonon frequencies and eigenvectors at a
// reduced wavevector. Returned values may be shared and must not be
// modified.
type HarmonicSolver interface {
	Phonon(ctx context.Context, q [3]float64) (*harmonic.Phonon, error)
}

// ModeHeatCapacity returns the heat capacity [eV/K] of a mode with
// the given energy [eV] at temperature t [K],
// kB·x²·eˣ/(eˣ-1)² with x = E/(kB·t).
func ModeHeatCapacity(t, energy float64) float64 {
	x := math.Abs(energy / (Kb * t))
	switch {
	case x == 0:
		return Kb
	case math.IsInf(x, 1), math.IsNaN(x):
		return 0
	}
	// Written in terms of e⁻ˣ, which cannot overflow.
	d := -math.Expm1(-x)
	return Kb * x * x * math.Exp(-x) / (d * d)
}

// HeatCapacities returns cv[temperature][band] for modes with the given
// frequencies [THz]. Modes at or below cutoff contribute nothing. For
// temperatures not above f/100 the mode is treated as frozen out; its
// heat capacity is then evaluated at a placeholder temperature and
// discarded, which keeps the exponential in range.
func HeatCapacities(temps, freqs []float64, cutoff float64) [][]float64 {
	const placeholderT = 10000.
	cv := make([][]float64, len(temps))
	for i := range cv {
		cv[i] = make([]float64, len(freqs))
	}
	for b, f := range freqs {
		if f <= cutoff {
			continue
		}
		for i, t := range temps {
			finite := t > f/100
			ts := placeholderT
			if finite {
				ts = t
			}
			c := ModeHeatCapacity(ts, f*THzToEv)
			if finite {
				cv[i][b] = c
			}
		}
	}
	return cv
}
