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
	"reflect"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/kappa/harmonic"
)

func cubicOperations() []Rotation {
	s := harmonic.SimpleCubic(1, 1, 1, 0)
	rots := make([]Rotation, len(s.PointGroup))
	for i, r := range s.PointGroup {
		rots[i] = Rotation(r)
	}
	return PointGroupOperations(rots)
}

func TestPointGroupReducer(t *testing.T) {
	tests := []struct {
		name       string
		ops        []Rotation
		mesh       [3]int
		shifts     [3]bool
		wantPoints int
	}{
		{name: "cubic", ops: cubicOperations(), mesh: [3]int{4, 4, 4}, wantPoints: 10},
		{name: "identity", ops: PointGroupOperations(nil), mesh: [3]int{2, 2, 2}, wantPoints: 8},
		{name: "identity odd", ops: PointGroupOperations(nil), mesh: [3]int{3, 1, 1}, wantPoints: 2},
		{name: "cubic shifted", ops: cubicOperations(), mesh: [3]int{2, 2, 2}, shifts: [3]bool{true, true, true}, wantPoints: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			points, weights, err := PointGroupReducer{Operations: test.ops}.Reduce(test.mesh, test.shifts)
			if err != nil {
				t.Fatal(err)
			}
			if len(points) != test.wantPoints {
				t.Errorf("points: have %d, want %d", len(points), test.wantPoints)
			}
			sum := 0
			for _, w := range weights {
				sum += w
			}
			if want := test.mesh[0] * test.mesh[1] * test.mesh[2]; sum != want {
				t.Errorf("weight sum: have %d, want %d", sum, want)
			}
			if points[0] != 0 {
				t.Errorf("first point: have %d, want 0", points[0])
			}
		})
	}
}

func TestMeshOperations(t *testing.T) {
	log, _ := test.NewNullLogger()
	tests := []struct {
		name     string
		divisors []int
		shifts   []bool
		want     int
	}{
		{name: "isotropic", divisors: []int{2, 2, 2}, want: 48},
		{name: "fallback divisor", divisors: []int{3, 2, 2}, want: 16},
		{name: "one shift", divisors: []int{2, 2, 2}, shifts: []bool{true, false, false}, want: 16},
		{name: "all shifts", divisors: []int{2, 2, 2}, shifts: []bool{true, true, true}, want: 48},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := NewMesh([3]int{4, 4, 4}, test.divisors, test.shifts, log)
			if err != nil {
				t.Fatal(err)
			}
			ops := m.Operations(cubicOperations())
			if len(ops) != test.want {
				t.Errorf("have %d operations, want %d", len(ops), test.want)
			}
			if ops[0] != Identity {
				t.Errorf("first operation: have %v, want identity", ops[0])
			}
		})
	}
}

// TestPointGroupReducerAnisotropic reduces a coarse mesh that lacks the
// cubic symmetry of the crystal. The irreducible stars must partition the
// mesh, with every weight equal to the size of its star.
func TestPointGroupReducerAnisotropic(t *testing.T) {
	log, _ := test.NewNullLogger()
	m, err := NewMesh([3]int{4, 4, 4}, []int{3, 2, 2}, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	if m.Coarse != [3]int{4, 2, 2} {
		t.Fatalf("coarse mesh: have %v", m.Coarse)
	}
	ops := cubicOperations()
	points, weights, err := PointGroupReducer{Operations: ops}.Reduce(m.Coarse, m.Shifts)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 9 {
		t.Errorf("have %d points, want 9", len(points))
	}
	retained := m.Operations(ops)
	covered := make(map[int]int)
	for i, g := range points {
		a := GridAddress(g, m.Coarse)
		star := Star(a, m.Coarse, retained, false)
		if len(star) != weights[i] {
			t.Errorf("point %d: weight %d, star %d", g, weights[i], len(star))
		}
		for _, r := range star {
			covered[GridIndex(r.Apply(a), m.Coarse)]++
		}
	}
	if len(covered) != m.NumCoarsePoints() {
		t.Errorf("stars cover %d of %d coarse points", len(covered), m.NumCoarsePoints())
	}
	for g, n := range covered {
		if n != 1 {
			t.Errorf("coarse point %d is in %d stars", g, n)
		}
	}
}

type badReducer struct{}

func (badReducer) Reduce(mesh [3]int, shifts [3]bool) (points, weights []int, err error) {
	return []int{0, 1}, []int{1, 1}, nil
}

func TestSampleMeshWeightError(t *testing.T) {
	log, _ := test.NewNullLogger()
	m, err := NewMesh([3]int{2, 2, 2}, nil, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	_, err = SampleMesh(m, AutomaticSampling, nil, badReducer{}, log)
	var werr *GridWeightError
	if !errors.As(err, &werr) {
		t.Fatalf("have error %v, want a GridWeightError", err)
	}
	if werr.Sum != 2 || werr.Want != 8 {
		t.Errorf("have %+v", werr)
	}
}

func TestSampleMesh(t *testing.T) {
	log, hook := test.NewNullLogger()
	m, err := NewMesh([3]int{4, 4, 4}, []int{2, 2, 2}, nil, log)
	if err != nil {
		t.Fatal(err)
	}

	s, err := SampleMesh(m, ExplicitPoints, []int{0, 1, 2}, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Points, []int{0, 2}) || s.Weights != nil {
		t.Errorf("explicit: have %v %v", s.Points, s.Weights)
	}
	if len(hook.Entries) != 1 {
		t.Errorf("explicit: have %d warnings, want 1", len(hook.Entries))
	}
	if _, err := SampleMesh(m, ExplicitPoints, []int{64}, nil, log); err == nil {
		t.Error("explicit: expected an error for an out-of-range grid point")
	}
	if _, err := SampleMesh(m, ExplicitPoints, []int{1}, nil, log); err != ErrNoGridPoints {
		t.Errorf("explicit: have %v, want %v", err, ErrNoGridPoints)
	}

	s, err = SampleMesh(m, AllPoints, nil, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	wantAll := []int{0, 2, 8, 10, 32, 34, 40, 42}
	if !reflect.DeepEqual(s.Points, wantAll) {
		t.Errorf("all: have %v, want %v", s.Points, wantAll)
	}

	s, err = SampleMesh(m, AutomaticSampling, nil, PointGroupReducer{Operations: cubicOperations()}, log)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Points, []int{0, 2, 10, 42}) {
		t.Errorf("automatic: have %v", s.Points)
	}
	if !reflect.DeepEqual(s.Weights, []int{1, 3, 3, 1}) {
		t.Errorf("automatic weights: have %v", s.Weights)
	}
}

func TestDefaultSamplingMode(t *testing.T) {
	if m := DefaultSamplingMode([]int{1}, true); m != ExplicitPoints {
		t.Errorf("have %v, want %v", m, ExplicitPoints)
	}
	if m := DefaultSamplingMode(nil, true); m != AllPoints {
		t.Errorf("have %v, want %v", m, AllPoints)
	}
	if m := DefaultSamplingMode(nil, false); m != AutomaticSampling {
		t.Errorf("have %v, want %v", m, AutomaticSampling)
	}
}
