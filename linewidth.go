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
	"fmt"

	"github.com/ctessum/sparse"
)

// Interaction is a stateful phonon-phonon interaction engine that
// computes imaginary self-energies at one grid point at a time. An
// Interaction is not safe for concurrent use.
type Interaction interface {
	// SetGridPoint selects the dense grid point to work on.
	SetGridPoint(gp int) error
	// RunInteraction computes the interaction strengths for the current
	// grid point.
	RunInteraction(ctx context.Context) error
	// NumTriplets returns the number of triplets at the current grid point.
	NumTriplets() int
	// PhononAtGridPoint returns the frequencies [THz] at the current grid point.
	PhononAtGridPoint() ([]float64, error)
	SetSigma(sigma float64)
	SetTemperature(t float64)
	// Run computes the imaginary self-energy for the current sigma and
	// temperature.
	Run() error
	// ImagSelfEnergy returns the result of the last Run [THz], one value per band.
	ImagSelfEnergy() []float64
}

// LinewidthRequest identifies the grid point whose linewidths are needed.
type LinewidthRequest struct {
	// Index is the position of the grid point in the selected sampling.
	Index int
	// GridPoint is the dense grid point index.
	GridPoint int
	// Q is the reduced wavevector of GridPoint.
	Q            [3]float64
	Sigmas       []float64
	Temperatures []float64
}

// Linewidths holds the result of a LinewidthRequest.
type Linewidths struct {
	// Frequencies are in THz.
	Frequencies []float64
	// Gamma[sigma][temperature][band] is the half linewidth in THz.
	Gamma [][][]float64
	// NumTriplets is the number of triplets used, if known.
	NumTriplets int
}

// LinewidthProvider supplies phonon linewidths. Each concurrent caller
// obtains its own LinewidthWorker.
type LinewidthProvider interface {
	NewWorker() (LinewidthWorker, error)
}

// LinewidthWorker computes linewidths for one grid point at a time.
type LinewidthWorker interface {
	Linewidths(ctx context.Context, r *LinewidthRequest) (*Linewidths, error)
}

// ComputedLinewidths computes linewidths with an Interaction engine.
type ComputedLinewidths struct {
	// NewInteraction creates an engine for a single worker.
	NewInteraction func() (Interaction, error)
	// CutoffFrequency [THz]: bands at or below it get a linewidth of -1.
	CutoffFrequency float64
}

// NewWorker implements LinewidthProvider.
func (c *ComputedLinewidths) NewWorker() (LinewidthWorker, error) {
	e, err := c.NewInteraction()
	if err != nil {
		return nil, fmt.Errorf("kappa: creating interaction: %w", err)
	}
	return &computedWorker{e: e, cutoff: c.CutoffFrequency}, nil
}

type computedWorker struct {
	e      Interaction
	cutoff float64
}

func (w *computedWorker) Linewidths(ctx context.Context, r *LinewidthRequest) (*Linewidths, error) {
	if err := w.e.SetGridPoint(r.GridPoint); err != nil {
		return nil, err
	}
	if err := w.e.RunInteraction(ctx); err != nil {
		return nil, err
	}
	freqs, err := w.e.PhononAtGridPoint()
	if err != nil {
		return nil, err
	}
	out := &Linewidths{
		Frequencies: freqs,
		Gamma:       make([][][]float64, len(r.Sigmas)),
		NumTriplets: w.e.NumTriplets(),
	}
	for i, sigma := range r.Sigmas {
		w.e.SetSigma(sigma)
		out.Gamma[i] = make([][]float64, len(r.Temperatures))
		for j, t := range r.Temperatures {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			w.e.SetTemperature(t)
			if err := w.e.Run(); err != nil {
				return nil, err
			}
			ise := w.e.ImagSelfEnergy()
			if len(ise) != len(freqs) {
				return nil, fmt.Errorf("kappa: interaction returned %d self-energies for %d bands", len(ise), len(freqs))
			}
			g := make([]float64, len(freqs))
			for b, f := range freqs {
				if f > w.cutoff {
					g[b] = ise[b]
				} else {
					g[b] = -1
				}
			}
			out.Gamma[i][j] = g
		}
	}
	return out, nil
}

// InjectedLinewidths supplies previously computed linewidths, with
// frequencies from a harmonic solver.
type InjectedLinewidths struct {
	// Gamma has shape (sigma, grid point, temperature, band), with grid
	// points in the order of the selected sampling.
	Gamma  *sparse.DenseArray
	Solver HarmonicSolver
}

// NewWorker implements LinewidthProvider.
func (in *InjectedLinewidths) NewWorker() (LinewidthWorker, error) {
	if in.Solver == nil {
		return nil, fmt.Errorf("kappa: injected linewidths need a harmonic solver")
	}
	return in, nil
}

// Linewidths implements LinewidthWorker. It only reads shared state.
func (in *InjectedLinewidths) Linewidths(ctx context.Context, r *LinewidthRequest) (*Linewidths, error) {
	s := in.Gamma.Shape
	if len(s) != 4 || s[0] != len(r.Sigmas) || s[2] != len(r.Temperatures) || r.Index >= s[1] {
		return nil, fmt.Errorf("kappa: injected linewidth shape %v does not fit %d sigmas, %d temperatures and grid point %d",
			s, len(r.Sigmas), len(r.Temperatures), r.Index)
	}
	p, err := in.Solver.Phonon(ctx, r.Q)
	if err != nil {
		return nil, err
	}
	if len(p.Frequencies) != s[3] {
		return nil, fmt.Errorf("kappa: injected linewidths have %d bands, phonons have %d", s[3], len(p.Frequencies))
	}
	out := &Linewidths{
		Frequencies: p.Frequencies,
		Gamma:       make([][][]float64, s[0]),
	}
	for i := range r.Sigmas {
		out.Gamma[i] = make([][]float64, s[2])
		for j := range r.Temperatures {
			g := make([]float64, s[3])
			for b := range g {
				g[b] = in.Gamma.Get(i, r.Index, j, b)
			}
			out.Gamma[i][j] = g
		}
	}
	return out, nil
}
