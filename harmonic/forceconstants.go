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

package harmonic

import (
	"fmt"
	"math"
	"math/cmplx"
)

// ForceConstants builds dynamical matrices from a Structure.
type ForceConstants struct {
	masses []float64
	terms  []ForceConstant
	factor float64
}

// NewForceConstants prepares the dynamical matrix of s.
func NewForceConstants(s *Structure) (*ForceConstants, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(s.ForceConstants) == 0 {
		return nil, fmt.Errorf("harmonic: structure %q has no force constants", s.Name)
	}
	fc := &ForceConstants{
		masses: make([]float64, len(s.Atoms)),
		terms:  s.ForceConstants,
		factor: s.FrequencyFactor,
	}
	if fc.factor == 0 {
		fc.factor = VaspToTHz
	}
	for i, a := range s.Atoms {
		fc.masses[i] = a.Mass
	}
	return fc, nil
}

// NumBands returns the number of phonon branches, three per atom.
func (fc *ForceConstants) NumBands() int { return 3 * len(fc.masses) }

// FrequencyFactor converts sqrt(eigenvalue) to THz.
func (fc *ForceConstants) FrequencyFactor() float64 { return fc.factor }

// At returns the mass-weighted dynamical matrix at reduced wavevector q,
// D_{iα,jβ}(q) = Σ_R Φ_{iα,jβ}(R) exp(2πi q·R) / sqrt(m_i m_j).
func (fc *ForceConstants) At(q [3]float64) *Hermitian {
	d := NewHermitian(fc.NumBands())
	for _, t := range fc.terms {
		var phase float64
		for k := 0; k < 3; k++ {
			phase += q[k] * float64(t.Translation[k])
		}
		w := cmplx.Exp(complex(0, 2*math.Pi*phase)) / complex(math.Sqrt(fc.masses[t.I]*fc.masses[t.J]), 0)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				d.Add(3*t.I+a, 3*t.J+b, complex(t.Matrix[a][b], 0)*w)
			}
		}
	}
	d.Symmetrize()
	return d
}

// Frequencies converts eigenvalues of the dynamical matrix to THz,
// carrying the sign of the eigenvalue for imaginary modes.
func Frequencies(eigenvalues []float64, factor float64) []float64 {
	f := make([]float64, len(eigenvalues))
	for i, v := range eigenvalues {
		f[i] = math.Copysign(math.Sqrt(math.Abs(v)), v) * factor
	}
	return f
}
