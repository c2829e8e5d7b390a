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

// Package harmonic computes harmonic phonons from real-space force constants.
package harmonic

import (
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"
)

const (
	eV       = 1.60217733e-19
	amu      = 1.6605402e-27
	angstrom = 1.0e-10
)

// VaspToTHz converts sqrt(eV/Å²/amu) to THz.
var VaspToTHz = math.Sqrt(eV/angstrom/angstrom/amu) / (2 * math.Pi) / 1e12

// Atom is an atom in the primitive cell.
type Atom struct {
	Symbol string `toml:"symbol"`
	// Mass is in atomic mass units.
	Mass float64 `toml:"mass"`
	// Position is in reduced coordinates.
	Position [3]float64 `toml:"position"`
}

// ForceConstant is the 3×3 block Φ between atom I in the home cell and
// atom J in the cell displaced by Translation lattice vectors, in eV/Å².
type ForceConstant struct {
	I           int           `toml:"i"`
	J           int           `toml:"j"`
	Translation [3]int        `toml:"translation"`
	Matrix      [3][3]float64 `toml:"matrix"`
}

// Structure holds a crystal and its harmonic force constants.
type Structure struct {
	Name string `toml:"name"`
	// Cell rows are the lattice vectors in Å.
	Cell  [3][3]float64 `toml:"cell"`
	Atoms []Atom        `toml:"atoms"`
	// PointGroup holds the real-space rotations in reduced coordinates.
	// Empty means the identity only.
	PointGroup     [][3][3]int     `toml:"point_group"`
	ForceConstants []ForceConstant `toml:"force_constants"`
	// FrequencyFactor converts sqrt(eigenvalue) to THz. Zero means VaspToTHz.
	FrequencyFactor float64 `toml:"frequency_factor"`
}

// ReadStructure decodes a TOML structure description.
func ReadStructure(r io.Reader) (*Structure, error) {
	s := new(Structure)
	if _, err := toml.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("harmonic: decoding structure: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that s describes a usable crystal.
func (s *Structure) Validate() error {
	if len(s.Atoms) == 0 {
		return fmt.Errorf("harmonic: structure has no atoms")
	}
	for i, a := range s.Atoms {
		if a.Mass <= 0 {
			return fmt.Errorf("harmonic: atom %d (%s) has non-positive mass %g", i, a.Symbol, a.Mass)
		}
	}
	if v := s.Volume(); v <= 0 {
		return fmt.Errorf("harmonic: cell volume %g is not positive", v)
	}
	for k, fc := range s.ForceConstants {
		if fc.I < 0 || fc.I >= len(s.Atoms) || fc.J < 0 || fc.J >= len(s.Atoms) {
			return fmt.Errorf("harmonic: force constant %d refers to atoms (%d, %d) outside [0, %d)",
				k, fc.I, fc.J, len(s.Atoms))
		}
	}
	return nil
}

// Volume returns the cell volume in Å³.
func (s *Structure) Volume() float64 {
	c := s.Cell
	return c[0][0]*(c[1][1]*c[2][2]-c[1][2]*c[2][1]) -
		c[0][1]*(c[1][0]*c[2][2]-c[1][2]*c[2][0]) +
		c[0][2]*(c[1][0]*c[2][1]-c[1][1]*c[2][0])
}

// SimpleCubic returns a one-atom simple cubic crystal with lattice parameter a
// (Å) and atomic mass m (amu), coupled by central springs k1 to the six
// nearest and k2 to the twelve next-nearest neighbours (eV/Å²). The on-site
// block enforces the acoustic sum rule.
func SimpleCubic(a, m, k1, k2 float64) *Structure {
	s := &Structure{
		Name:  "simple-cubic",
		Cell:  [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}},
		Atoms: []Atom{{Symbol: "X", Mass: m}},
	}
	var onsite [3][3]float64
	addSpring := func(r [3]int, k float64) {
		var d [3]float64
		var n2 float64
		for i := range r {
			d[i] = float64(r[i])
			n2 += d[i] * d[i]
		}
		var blk [3][3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				blk[i][j] = -k * d[i] * d[j] / n2
				onsite[i][j] -= blk[i][j]
			}
		}
		s.ForceConstants = append(s.ForceConstants, ForceConstant{Translation: r, Matrix: blk})
	}
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				switch abs(x) + abs(y) + abs(z) {
				case 1:
					addSpring([3]int{x, y, z}, k1)
				case 2:
					addSpring([3]int{x, y, z}, k2)
				}
			}
		}
	}
	s.ForceConstants = append(s.ForceConstants, ForceConstant{Matrix: onsite})
	s.PointGroup = cubicPointGroup()
	return s
}

// cubicPointGroup returns the 48 signed permutation matrices of m-3m.
func cubicPointGroup() [][3][3]int {
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	var ops [][3][3]int
	for _, p := range perms {
		for signs := 0; signs < 8; signs++ {
			var r [3][3]int
			for i := 0; i < 3; i++ {
				s := 1
				if signs&(1<<uint(i)) != 0 {
					s = -1
				}
				r[i][p[i]] = s
			}
			ops = append(ops, r)
		}
	}
	return ops
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
