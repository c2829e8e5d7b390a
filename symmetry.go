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

	"gonum.org/v1/gonum/mat"
)

// Rotation is a point-group operation acting on integer coordinates.
type Rotation [3][3]int

// Identity is the identity operation.
var Identity = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Apply returns r·a.
func (r Rotation) Apply(a [3]int) [3]int {
	var o [3]int
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i] += r[i][j] * a[j]
		}
	}
	return o
}

// Transpose returns rᵀ.
func (r Rotation) Transpose() Rotation {
	var o Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = r[j][i]
		}
	}
	return o
}

// Neg returns -r.
func (r Rotation) Neg() Rotation {
	var o Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = -r[i][j]
		}
	}
	return o
}

// PointGroupOperations converts real-space rotations into the operations
// acting on reciprocal-space grid addresses. These are the transposes of
// the real-space rotations; when the group lacks inversion, the negated
// transposes are appended so that time-reversal symmetry is included.
func PointGroupOperations(rotations []Rotation) []Rotation {
	if len(rotations) == 0 {
		rotations = []Rotation{Identity}
	}
	ops := make([]Rotation, 0, 2*len(rotations))
	inversion := Identity.Neg()
	hasInversion := false
	for _, r := range rotations {
		t := r.Transpose()
		if t == inversion {
			hasInversion = true
		}
		ops = append(ops, t)
	}
	if !hasInversion {
		n := len(ops)
		for i := 0; i < n; i++ {
			ops = append(ops, ops[i].Neg())
		}
	}
	return ops
}

// Star returns the operations of ops that map address onto distinct
// grid points of mesh, keeping the first operation found for each image.
// With noStars set only the identity is returned.
func Star(address, mesh [3]int, ops []Rotation, noStars bool) []Rotation {
	if noStars {
		return []Rotation{Identity}
	}
	seen := make(map[int]bool, len(ops))
	star := make([]Rotation, 0, len(ops))
	for _, r := range ops {
		gp := GridIndex(r.Apply(address), mesh)
		if seen[gp] {
			continue
		}
		seen[gp] = true
		star = append(star, r)
	}
	return star
}

// CellMatrix returns the matrix whose rows are the real-space lattice
// vectors of cell. It is the inverse of the reciprocal lattice.
func CellMatrix(cell [3][3]float64) *mat.Dense {
	c := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c.Set(i, j, cell[i][j])
		}
	}
	return c
}

// ReciprocalLattice returns the matrix whose columns are the reciprocal
// lattice vectors (without the 2π factor) of a cell whose rows are the
// real-space lattice vectors.
func ReciprocalLattice(cell [3][3]float64) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(CellMatrix(cell)); err != nil {
		return nil, fmt.Errorf("kappa: inverting cell: %w", err)
	}
	return &inv, nil
}

// CartesianRotation returns B·r·B⁻¹, the Cartesian form of reciprocal-space
// rotation r for reciprocal lattice B. cell is B⁻¹, as returned by
// CellMatrix.
func CartesianRotation(r Rotation, reciprocal, cell mat.Matrix) *mat.Dense {
	rm := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm.Set(i, j, float64(r[i][j]))
		}
	}
	var o mat.Dense
	o.Product(reciprocal, rm, cell)
	return &o
}
