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


// Package interaction provides phonon-phonon interaction engines that
// compute imaginary self-energies (linewidths) at single grid points.
package interaction

import (
	"context"
	"fmt"
	"math"

	"github.com/spatialmodel/kappa"
)

// Phenomenological computes linewidths from a closed-form scattering law
//
//	γ(ν, T) = A·ν²·T·exp(-Θ/3T) + B·ν⁴
//
// combining Umklapp scattering (A, Θ) with point-defect scattering (B).
// Frequencies come from a harmonic solver. A Phenomenological is not safe
// for concurrent use; use one per worker.
type Phenomenological struct {
	Solver kappa.HarmonicSolver
	Mesh   [3]int
	// Umklapp is A [1/(THz·K)].
	Umklapp float64
	// DebyeTemperature is Θ [K].
	DebyeTemperature float64
	// PointDefect is B [1/THz³].
	PointDefect float64

	gp          int
	freqs       []float64
	sigma, temp float64
	ise         []float64
	ready       bool
}

// Params holds the scattering law coefficients.
type Params struct {
	Umklapp          float64
	DebyeTemperature float64
	PointDefect      float64
}

// Factory returns a function creating a fresh engine per call, for use as
// kappa.ComputedLinewidths.NewInteraction.
func Factory(solver kappa.HarmonicSolver, mesh [3]int, p Params) func() (kappa.Interaction, error) {
	return func() (kappa.Interaction, error) {
		if solver == nil {
			return nil, fmt.Errorf("interaction: no harmonic solver")
		}
		if p.Umklapp < 0 || p.PointDefect < 0 || p.DebyeTemperature < 0 {
			return nil, fmt.Errorf("interaction: scattering coefficients must not be negative: %+v", p)
		}
		return &Phenomenological{
			Solver:           solver,
			Mesh:             mesh,
			Umklapp:          p.Umklapp,
			DebyeTemperature: p.DebyeTemperature,
			PointDefect:      p.PointDefect,
			gp:               -1,
		}, nil
	}
}

// SetGridPoint implements kappa.Interaction.
func (p *Phenomenological) SetGridPoint(gp int) error {
	if n := p.Mesh[0] * p.Mesh[1] * p.Mesh[2]; gp < 0 || gp >= n {
		return fmt.Errorf("interaction: grid point %d is outside [0, %d)", gp, n)
	}
	p.gp = gp
	p.ready = false
	p.ise = nil
	return nil
}

// RunInteraction implements kappa.Interaction.
func (p *Phenomenological) RunInteraction(ctx context.Context) error {
	if p.gp < 0 {
		return fmt.Errorf("interaction: no grid point set")
	}
	q := kappa.QPoint(kappa.GridAddress(p.gp, p.Mesh), p.Mesh)
	ph, err := p.Solver.Phonon(ctx, q)
	if err != nil {
		return fmt.Errorf("interaction: grid point %d: %w", p.gp, err)
	}
	p.freqs = ph.Frequencies
	p.ready = true
	return nil
}

// NumTriplets implements kappa.Interaction. Every mesh point pairs with the
// current one.
func (p *Phenomenological) NumTriplets() int {
	return p.Mesh[0] * p.Mesh[1] * p.Mesh[2]
}

// PhononAtGridPoint implements kappa.Interaction.
func (p *Phenomenological) PhononAtGridPoint() ([]float64, error) {
	if !p.ready {
		return nil, fmt.Errorf("interaction: RunInteraction has not been called")
	}
	return p.freqs, nil
}

// SetSigma implements kappa.Interaction. The closed-form law has no
// smearing, so sigma is only recorded.
func (p *Phenomenological) SetSigma(sigma float64) { p.sigma = sigma }

// SetTemperature implements kappa.Interaction.
func (p *Phenomenological) SetTemperature(t float64) { p.temp = t }

// Run implements kappa.Interaction.
func (p *Phenomenological) Run() error {
	if !p.ready {
		return fmt.Errorf("interaction: RunInteraction has not been called")
	}
	p.ise = make([]float64, len(p.freqs))
	var umklapp float64
	if p.temp > 0 {
		umklapp = p.Umklapp * p.temp * math.Exp(-p.DebyeTemperature/(3*p.temp))
	}
	for i, f := range p.freqs {
		f2 := f * f
		p.ise[i] = umklapp*f2 + p.PointDefect*f2*f2
	}
	return nil
}

// ImagSelfEnergy implements kappa.Interaction.
func (p *Phenomenological) ImagSelfEnergy() []float64 { return p.ise }
