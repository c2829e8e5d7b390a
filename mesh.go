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

	"github.com/sirupsen/logrus"
)

// GridAddress returns the integer address of grid point index gp on a
// mesh with the given dimensions. Index and address are related by
// gp = a0 + a1*m0 + a2*m0*m1 with each a in [0, m). The returned address
// is shifted into (-m/2, m/2] so that it is closest to the origin.
func GridAddress(gp int, mesh [3]int) [3]int {
	a := [3]int{
		gp % mesh[0],
		(gp / mesh[0]) % mesh[1],
		gp / (mesh[0] * mesh[1]),
	}
	for i := range a {
		if a[i] > mesh[i]/2 {
			a[i] -= mesh[i]
		}
	}
	return a
}

// GridIndex returns the grid point index of address a, which may lie
// outside [0, m) in any component.
func GridIndex(a, mesh [3]int) int {
	return posMod(a[0], mesh[0]) +
		posMod(a[1], mesh[1])*mesh[0] +
		posMod(a[2], mesh[2])*mesh[0]*mesh[1]
}

// QPoint returns the reduced wavevector of address a.
func QPoint(a, mesh [3]int) [3]float64 {
	return [3]float64{
		float64(a[0]) / float64(mesh[0]),
		float64(a[1]) / float64(mesh[1]),
		float64(a[2]) / float64(mesh[2]),
	}
}

func posMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Mesh describes the dense sampling mesh and the coarse mesh embedded in it.
type Mesh struct {
	// Dense is the number of divisions along each reciprocal axis.
	Dense [3]int
	// Divisors relate the dense mesh to the coarse mesh: Coarse = Dense / Divisors.
	Divisors [3]int
	// Coarse is the coarse mesh used for grid-point selection.
	Coarse [3]int
	// Shifts offset the coarse mesh by half a dense step along each axis.
	Shifts [3]bool
}

// NewMesh creates a Mesh. divisors may be empty (meaning 1,1,1) or have
// three elements. shifts may be empty (meaning none) or have three
// elements. A divisor that does not evenly divide the mesh falls back
// to 1, and a shift along an axis with an odd divisor is dropped;
// both are reported as warnings on log.
func NewMesh(dense [3]int, divisors []int, shifts []bool, log logrus.FieldLogger) (*Mesh, error) {
	m := &Mesh{Dense: dense, Divisors: [3]int{1, 1, 1}}
	for _, d := range dense {
		if d < 1 {
			return nil, fmt.Errorf("kappa: mesh %v must be positive along every axis", dense)
		}
	}
	switch len(divisors) {
	case 0:
	case 3:
		for i, d := range divisors {
			if d < 1 {
				return nil, fmt.Errorf("kappa: mesh divisor %d along axis %d must be positive", d, i)
			}
			if dense[i]%d != 0 {
				log.Warnf("kappa: mesh divisor %d does not divide mesh %d along axis %d; using 1", d, dense[i], i)
				continue
			}
			m.Divisors[i] = d
		}
	default:
		return nil, fmt.Errorf("kappa: need 3 mesh divisors, have %d", len(divisors))
	}
	switch len(shifts) {
	case 0:
	case 3:
		for i, s := range shifts {
			if s && m.Divisors[i]%2 != 0 {
				log.Warnf("kappa: coarse mesh shift along axis %d needs an even divisor (have %d); not shifting", i, m.Divisors[i])
				continue
			}
			m.Shifts[i] = s
		}
	default:
		return nil, fmt.Errorf("kappa: need 3 coarse mesh shifts, have %d", len(shifts))
	}
	for i := range m.Coarse {
		m.Coarse[i] = dense[i] / m.Divisors[i]
	}
	return m, nil
}

// NumPoints returns the number of dense grid points.
func (m *Mesh) NumPoints() int { return m.Dense[0] * m.Dense[1] * m.Dense[2] }

// NumCoarsePoints returns the number of coarse grid points.
func (m *Mesh) NumCoarsePoints() int { return m.Coarse[0] * m.Coarse[1] * m.Coarse[2] }

// offset returns the dense-mesh offset of the coarse lattice along axis i.
func (m *Mesh) offset(i int) int {
	if m.Shifts[i] {
		return m.Divisors[i] / 2
	}
	return 0
}

// DenseIndex maps a coarse-mesh address to the dense grid point index.
func (m *Mesh) DenseIndex(coarse [3]int) int {
	var a [3]int
	for i := range a {
		a[i] = coarse[i]*m.Divisors[i] + m.offset(i)
	}
	return GridIndex(a, m.Dense)
}

// OnCoarseMesh reports whether dense grid point gp lies on the (shifted)
// coarse lattice.
func (m *Mesh) OnCoarseMesh(gp int) bool {
	a := GridAddress(gp, m.Dense)
	for i := range a {
		if posMod(a[i], m.Divisors[i]) != m.offset(i) {
			return false
		}
	}
	return true
}

// TemperatureSeries returns tmin, tmin+step, ... up to and including tmax,
// allowing half a step of rounding on the upper bound.
func TemperatureSeries(tmin, tmax, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("kappa: temperature step %g must be positive", step)
	}
	if tmax < tmin {
		return nil, fmt.Errorf("kappa: maximum temperature %g is below minimum %g", tmax, tmin)
	}
	upper := tmax + step/2
	n := int(math.Ceil((upper - tmin) / step))
	t := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if v := tmin + float64(i)*step; v < upper {
			t = append(t, v)
		}
	}
	return t, nil
}
