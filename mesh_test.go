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
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestGridAddress(t *testing.T) {
	mesh := [3]int{4, 4, 4}
	tests := []struct {
		gp   int
		want [3]int
	}{
		{gp: 0, want: [3]int{0, 0, 0}},
		{gp: 2, want: [3]int{2, 0, 0}},
		{gp: 3, want: [3]int{-1, 0, 0}},
		{gp: 4, want: [3]int{0, 1, 0}},
		{gp: 63, want: [3]int{-1, -1, -1}},
	}
	for _, test := range tests {
		if have := GridAddress(test.gp, mesh); have != test.want {
			t.Errorf("grid point %d: have %v, want %v", test.gp, have, test.want)
		}
	}
	for gp := 0; gp < 64; gp++ {
		if have := GridIndex(GridAddress(gp, mesh), mesh); have != gp {
			t.Errorf("round trip of %d: have %d", gp, have)
		}
	}
}

func TestNewMesh(t *testing.T) {
	log, hook := test.NewNullLogger()
	tests := []struct {
		name         string
		divisors     []int
		shifts       []bool
		wantDivisors [3]int
		wantCoarse   [3]int
		wantShifts   [3]bool
		wantWarnings int
	}{
		{
			name:         "none",
			wantDivisors: [3]int{1, 1, 1},
			wantCoarse:   [3]int{4, 4, 4},
		},
		{
			name:         "even",
			divisors:     []int{2, 2, 2},
			shifts:       []bool{true, false, true},
			wantDivisors: [3]int{2, 2, 2},
			wantCoarse:   [3]int{2, 2, 2},
			wantShifts:   [3]bool{true, false, true},
		},
		{
			name:         "not dividing",
			divisors:     []int{3, 2, 4},
			wantDivisors: [3]int{1, 2, 4},
			wantCoarse:   [3]int{4, 2, 1},
			wantWarnings: 1,
		},
		{
			name:         "odd shift",
			divisors:     []int{1, 2, 2},
			shifts:       []bool{true, true, false},
			wantDivisors: [3]int{1, 2, 2},
			wantCoarse:   [3]int{4, 2, 2},
			wantShifts:   [3]bool{false, true, false},
			wantWarnings: 1,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hook.Reset()
			m, err := NewMesh([3]int{4, 4, 4}, test.divisors, test.shifts, log)
			if err != nil {
				t.Fatal(err)
			}
			if m.Divisors != test.wantDivisors {
				t.Errorf("divisors: have %v, want %v", m.Divisors, test.wantDivisors)
			}
			if m.Coarse != test.wantCoarse {
				t.Errorf("coarse: have %v, want %v", m.Coarse, test.wantCoarse)
			}
			if m.Shifts != test.wantShifts {
				t.Errorf("shifts: have %v, want %v", m.Shifts, test.wantShifts)
			}
			if len(hook.Entries) != test.wantWarnings {
				t.Errorf("warnings: have %d, want %d", len(hook.Entries), test.wantWarnings)
			}
			for _, e := range hook.Entries {
				if e.Level != logrus.WarnLevel {
					t.Errorf("log level: have %v, want warning", e.Level)
				}
			}
			for i := range m.Coarse {
				if m.Coarse[i]*m.Divisors[i] != m.Dense[i] {
					t.Errorf("axis %d: %d×%d != %d", i, m.Coarse[i], m.Divisors[i], m.Dense[i])
				}
			}
		})
	}
}

func TestNewMeshInvalid(t *testing.T) {
	log, _ := test.NewNullLogger()
	if _, err := NewMesh([3]int{4, 0, 4}, nil, nil, log); err == nil {
		t.Error("expected an error for a zero mesh")
	}
	if _, err := NewMesh([3]int{4, 4, 4}, []int{2, 2}, nil, log); err == nil {
		t.Error("expected an error for two divisors")
	}
}

func TestDenseIndex(t *testing.T) {
	log, _ := test.NewNullLogger()
	m, err := NewMesh([3]int{4, 4, 4}, []int{2, 2, 2}, nil, log)
	if err != nil {
		t.Fatal(err)
	}
	if have := m.DenseIndex([3]int{1, 0, 0}); have != 2 {
		t.Errorf("have %d, want 2", have)
	}
	if have := m.DenseIndex([3]int{0, 1, 0}); have != 8 {
		t.Errorf("have %d, want 8", have)
	}
	shifted, err := NewMesh([3]int{4, 4, 4}, []int{2, 2, 2}, []bool{true, true, true}, log)
	if err != nil {
		t.Fatal(err)
	}
	if have := shifted.DenseIndex([3]int{0, 0, 0}); have != 21 {
		t.Errorf("shifted: have %d, want 21", have)
	}
	if !shifted.OnCoarseMesh(21) || shifted.OnCoarseMesh(0) {
		t.Error("shifted coarse mesh membership is wrong")
	}
}

func TestTemperatureSeries(t *testing.T) {
	tests := []struct {
		min, max, step float64
		want           []float64
	}{
		{min: 0, max: 30, step: 10, want: []float64{0, 10, 20, 30}},
		{min: 100, max: 100, step: 10, want: []float64{100}},
		{min: 0, max: 24, step: 10, want: []float64{0, 10, 20}},
		{min: 0, max: 26, step: 10, want: []float64{0, 10, 20, 30}},
	}
	for _, test := range tests {
		have, err := TemperatureSeries(test.min, test.max, test.step)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(have, test.want) {
			t.Errorf("(%g, %g, %g): have %v, want %v", test.min, test.max, test.step, have, test.want)
		}
	}
	if _, err := TemperatureSeries(0, 10, 0); err == nil {
		t.Error("expected an error for a zero step")
	}
}
