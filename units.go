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


// Package kappa calculates lattice thermal conductivity in the single-mode
// relaxation-time approximation from phonon frequencies, group velocities,
// heat capacities and linewidths sampled on a reciprocal-space mesh.
package kappa

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
)

// Physical constants.
const (
	THz      = 1.0e12         // [Hz]
	Angstrom = 1.0e-10        // [m]
	EV       = 1.60217733e-19 // [J]
	// Kb is the Boltzmann constant [eV/K].
	Kb = 8.6173382568083159e-05
	// THzToEv converts a frequency in THz to an energy in eV.
	THzToEv = 0.00413566733
)

// thermalConductivity is the dimension of W/(m·K).
var thermalConductivity = unit.Dimensions{
	unit.MassDim:        1,
	unit.LengthDim:      1,
	unit.TimeDim:        -3,
	unit.TemperatureDim: -1,
}

// ConversionFactor returns the factor converting
// Σ v⊗v [THz²Å²] · Cv [eV/K] / (2Γ) [THz] into W/(m·K) for a primitive
// cell of the given volume [Å³].
func ConversionFactor(volume float64) (float64, error) {
	if !(volume > 0) {
		return math.NaN(), fmt.Errorf("kappa: primitive cell volume %g must be positive", volume)
	}
	velocity := unit.New(THz*Angstrom, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1})
	energyPerK := unit.New(EV, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2, unit.TemperatureDim: -1})
	rate := unit.New(THz*2*math.Pi, unit.Dimensions{unit.TimeDim: -1})
	cell := unit.New(volume*Angstrom*Angstrom*Angstrom, unit.Dimensions{unit.LengthDim: 3})

	v2 := unit.Mul(velocity, velocity)
	k := unit.Div(unit.Mul(v2, energyPerK), rate, cell)
	if err := k.Check(thermalConductivity); err != nil {
		return math.NaN(), fmt.Errorf("kappa: conductivity conversion: %w", err)
	}
	return k.Value(), nil
}
