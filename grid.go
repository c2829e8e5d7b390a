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
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// SamplingMode selects how grid points are chosen for a calculation.
type SamplingMode int

const (
	// AutomaticSampling uses the irreducible points of the coarse mesh.
	AutomaticSampling SamplingMode = iota
	// AllPoints uses every point of the coarse mesh with unit weights.
	AllPoints
	// ExplicitPoints uses caller-supplied dense grid points.
	ExplicitPoints
)

func (s SamplingMode) String() string {
	switch s {
	case AutomaticSampling:
		return "automatic"
	case AllPoints:
		return "all"
	case ExplicitPoints:
		return "explicit"
	default:
		return fmt.Sprintf("SamplingMode(%d)", int(s))
	}
}

// ErrNoGridPoints is returned when a sampling selects no grid points.
var ErrNoGridPoints = errors.New("kappa: no grid points selected")

// GridWeightError is returned when the irreducible weights do not sum to
// the number of coarse-mesh points.
type GridWeightError struct {
	Sum, Want int
}

func (e *GridWeightError) Error() string {
	return fmt.Sprintf("kappa: sum of grid point weights %d does not equal the number of coarse mesh points %d", e.Sum, e.Want)
}

// GridReducer finds the irreducible points of a mesh.
type GridReducer interface {
	// Reduce returns the irreducible coarse grid point indices in ascending
	// order together with the number of mesh points each one represents.
	Reduce(mesh [3]int, shifts [3]bool) (points, weights []int, err error)
}

// PointGroupReducer reduces a mesh by its reciprocal-space point group.
type PointGroupReducer struct {
	// Operations act on grid addresses. They must include the identity.
	Operations []Rotation
}

// Reduce implements GridReducer. A grid point's orbit is computed on
// doubled addresses 2a+s so that half-step shifts stay integral.
// Operations that do not map the mesh lattice onto itself, or that move
// the shift off the doubled lattice, are skipped. Each orbit is
// represented by its lowest index.
func (p PointGroupReducer) Reduce(mesh [3]int, shifts [3]bool) (points, weights []int, err error) {
	s := shiftVector(shifts)
	n := mesh[0] * mesh[1] * mesh[2]
	doubled := func(gp int) [3]int {
		a := GridAddress(gp, mesh)
		return [3]int{2*a[0] + s[0], 2*a[1] + s[1], 2*a[2] + s[2]}
	}
	undouble := func(d [3]int) int {
		var a [3]int
		for i := range d {
			a[i] = (d[i] - s[i]) / 2
		}
		return GridIndex(a, mesh)
	}

	var ops []Rotation
	for _, r := range p.Operations {
		if preservesLattice(r, mesh) && preservesShift(r, s) {
			ops = append(ops, r)
		}
	}
	if len(ops) == 0 {
		ops = []Rotation{Identity}
	}

	ir := make([]int, n)
	for gp := 0; gp < n; gp++ {
		ir[gp] = gp
		d := doubled(gp)
		for _, r := range ops {
			if img := undouble(r.Apply(d)); img < ir[gp] {
				ir[gp] = img
			}
		}
	}
	count := make(map[int]int)
	for _, g := range ir {
		count[g]++
	}
	points = make([]int, 0, len(count))
	for g := range count {
		points = append(points, g)
	}
	sort.Ints(points)
	weights = make([]int, len(points))
	for i, g := range points {
		weights[i] = count[g]
	}
	return points, weights, nil
}

func shiftVector(shifts [3]bool) [3]int {
	var s [3]int
	for i, sh := range shifts {
		if sh {
			s[i] = 1
		}
	}
	return s
}

// preservesLattice reports whether r maps the lattice of mesh periods onto
// itself, so that r·a mod mesh does not depend on which address stands
// for a grid point.
func preservesLattice(r Rotation, mesh [3]int) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if r[i][j]*mesh[j]%mesh[i] != 0 {
				return false
			}
		}
	}
	return true
}

// preservesShift reports whether r keeps doubled addresses with shift s
// on the doubled lattice.
func preservesShift(r Rotation, s [3]int) bool {
	rs := r.Apply(s)
	for i := range rs {
		if posMod(rs[i]-s[i], 2) != 0 {
			return false
		}
	}
	return true
}

// Operations returns the operations of ops that map the coarse mesh of m,
// including its shift, onto itself. An operation may only mix axes with
// equal divisors; then rotating a coarse point's dense address lands on
// the dense address of the rotated coarse point.
func (m *Mesh) Operations(ops []Rotation) []Rotation {
	s := shiftVector(m.Shifts)
	var o []Rotation
	for _, r := range ops {
		if !preservesLattice(r, m.Coarse) || !preservesShift(r, s) {
			continue
		}
		mixes := false
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				if r[i][j] != 0 && m.Divisors[i] != m.Divisors[j] {
					mixes = true
				}
			}
		}
		if !mixes {
			o = append(o, r)
		}
	}
	return o
}

// DefaultSamplingMode returns ExplicitPoints when grid points are given,
// AllPoints when star reduction is disabled and AutomaticSampling otherwise.
func DefaultSamplingMode(explicit []int, noStars bool) SamplingMode {
	switch {
	case len(explicit) > 0:
		return ExplicitPoints
	case noStars:
		return AllPoints
	default:
		return AutomaticSampling
	}
}

// Sampling holds the grid points selected for a calculation.
type Sampling struct {
	// Points are dense-mesh grid point indices.
	Points []int
	// Weights are the symmetry multiplicities of Points, or nil when
	// the points were given explicitly.
	Weights []int
}

// SampleMesh chooses grid points on m. explicit is only used with
// ExplicitPoints; reducer is only used with AutomaticSampling.
func SampleMesh(m *Mesh, mode SamplingMode, explicit []int, reducer GridReducer, log logrus.FieldLogger) (*Sampling, error) {
	switch mode {
	case ExplicitPoints:
		s := &Sampling{}
		n := m.NumPoints()
		for _, gp := range explicit {
			if gp < 0 || gp >= n {
				return nil, fmt.Errorf("kappa: grid point %d is outside [0, %d)", gp, n)
			}
			if !m.OnCoarseMesh(gp) {
				log.Warnf("kappa: grid point %d is not on the coarse mesh; skipping it", gp)
				continue
			}
			s.Points = append(s.Points, gp)
		}
		if len(s.Points) == 0 {
			return nil, ErrNoGridPoints
		}
		return s, nil
	case AllPoints:
		s := &Sampling{
			Points:  make([]int, m.NumCoarsePoints()),
			Weights: make([]int, m.NumCoarsePoints()),
		}
		for i := range s.Points {
			s.Points[i] = m.DenseIndex(GridAddress(i, m.Coarse))
			s.Weights[i] = 1
		}
		return s, nil
	case AutomaticSampling:
		if reducer == nil {
			return nil, fmt.Errorf("kappa: automatic sampling needs a grid reducer")
		}
		points, weights, err := reducer.Reduce(m.Coarse, m.Shifts)
		if err != nil {
			return nil, fmt.Errorf("kappa: reducing mesh %v: %w", m.Coarse, err)
		}
		if len(points) != len(weights) {
			return nil, fmt.Errorf("kappa: reducer returned %d points and %d weights", len(points), len(weights))
		}
		sum := 0
		for _, w := range weights {
			sum += w
		}
		if want := m.NumCoarsePoints(); sum != want {
			return nil, &GridWeightError{Sum: sum, Want: want}
		}
		s := &Sampling{Points: make([]int, len(points)), Weights: weights}
		for i, g := range points {
			s.Points[i] = m.DenseIndex(GridAddress(g, m.Coarse))
		}
		if len(s.Points) == 0 {
			return nil, ErrNoGridPoints
		}
		return s, nil
	default:
		return nil, fmt.Errorf("kappa: invalid sampling mode %v", mode)
	}
}
