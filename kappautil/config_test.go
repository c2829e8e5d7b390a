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

package kappautil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/kappa"
	"github.com/spatialmodel/kappa/harmonic"
	"github.com/spf13/viper"
)

// writeStructure saves a simple cubic crystal to a TOML file in a
// temporary directory and returns its path.
func writeStructure(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cubic.toml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(harmonic.SimpleCubic(2, 28, 2, 0.5)); err != nil {
		t.Fatal(err)
	}
	return path
}

// testViper returns a configuration holding the default option values
// and the given overrides.
func testViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	for _, o := range options {
		v.SetDefault(o.name, o.defaultVal)
	}
	for k, x := range overrides {
		v.Set(k, x)
	}
	return v
}

func TestLoadConfigData(t *testing.T) {
	path := writeStructure(t)
	cfg, err := LoadConfigData(testViper(map[string]interface{}{
		"Structure":        path,
		"Mesh":             "[4,4,4]",
		"MeshDivisors":     []interface{}{int64(2), int64(2), int64(2)},
		"CoarseMeshShifts": "false false true",
		"Sigmas":           "[0.100000,0.200000]",
		"TMax":             "300",
		"TStep":            100,
		"LogLevel":         "debug",
		"Output.Dir":       "/tmp/out",
	}))
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.Conductivity
	if c.Mesh != [3]int{4, 4, 4} {
		t.Errorf("mesh: have %v", c.Mesh)
	}
	if !reflect.DeepEqual(c.MeshDivisors, []int{2, 2, 2}) {
		t.Errorf("divisors: have %v", c.MeshDivisors)
	}
	if !reflect.DeepEqual(c.CoarseMeshShifts, []bool{false, false, true}) {
		t.Errorf("shifts: have %v", c.CoarseMeshShifts)
	}
	if !reflect.DeepEqual(c.Sigmas, []float64{0.1, 0.2}) {
		t.Errorf("sigmas: have %v", c.Sigmas)
	}
	if c.TMin != 0 || c.TMax != 300 || c.TStep != 100 {
		t.Errorf("temperatures: have %g %g %g", c.TMin, c.TMax, c.TStep)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Errorf("log level: have %v", cfg.LogLevel)
	}
	if want := filepath.Join("/tmp/out", "kappa.log"); cfg.LogFile != want {
		t.Errorf("log file: have %s, want %s", cfg.LogFile, want)
	}
	if cfg.SamplingMode() != kappa.AutomaticSampling {
		t.Errorf("sampling: have %v", cfg.SamplingMode())
	}
	if cfg.Structure.Name != "simple-cubic" || len(cfg.Structure.PointGroup) != 48 {
		t.Errorf("structure: have %s with %d operations", cfg.Structure.Name, len(cfg.Structure.PointGroup))
	}
	m, err := cfg.Model()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Solver.(*harmonic.Cached); !ok {
		t.Errorf("solver: have %T, want *harmonic.Cached", m.Solver)
	}
	if m.Volume() != 8 {
		t.Errorf("volume: have %g, want 8", m.Volume())
	}
}

func TestLoadConfigDataInvalid(t *testing.T) {
	path := writeStructure(t)
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{name: "short mesh", set: map[string]interface{}{"Mesh": []int{4, 4}}},
		{name: "zero mesh", set: map[string]interface{}{"Mesh": []int{4, 0, 4}}},
		{name: "bad mesh", set: map[string]interface{}{"Mesh": "4 x 4"}},
		{name: "no sigmas", set: map[string]interface{}{"Sigmas": []float64{}}},
		{name: "negative sigma", set: map[string]interface{}{"Sigmas": []float64{-0.1}}},
		{name: "zero step", set: map[string]interface{}{"TStep": 0.0}},
		{name: "inverted range", set: map[string]interface{}{"TMin": 500.0, "TMax": 100.0}},
		{name: "zero delta q", set: map[string]interface{}{"GVDeltaQ": 0.0}},
		{name: "solver", set: map[string]interface{}{"HarmonicSolver": "magic"}},
		{name: "format", set: map[string]interface{}{"Output.Format": "csv"}},
		{name: "log level", set: map[string]interface{}{"LogLevel": "loud"}},
		{name: "no structure", set: map[string]interface{}{"Structure": ""}},
		{name: "missing structure", set: map[string]interface{}{"Structure": path + ".missing"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			set := map[string]interface{}{"Structure": path}
			for k, v := range test.set {
				set[k] = v
			}
			if _, err := LoadConfigData(testViper(set)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSliceParsing(t *testing.T) {
	ints, err := intSlice("[1,2,3]")
	if err != nil || !reflect.DeepEqual(ints, []int{1, 2, 3}) {
		t.Errorf("flag ints: have %v, %v", ints, err)
	}
	ints, err = intSlice("4 4, 4")
	if err != nil || !reflect.DeepEqual(ints, []int{4, 4, 4}) {
		t.Errorf("env ints: have %v, %v", ints, err)
	}
	ints, err = intSlice("[]")
	if err != nil || len(ints) != 0 {
		t.Errorf("empty ints: have %v, %v", ints, err)
	}
	floats, err := float64Slice([]interface{}{0.5, int64(2)})
	if err != nil || !reflect.DeepEqual(floats, []float64{0.5, 2}) {
		t.Errorf("file floats: have %v, %v", floats, err)
	}
	bools, err := boolSlice("[true,false,true]")
	if err != nil || !reflect.DeepEqual(bools, []bool{true, false, true}) {
		t.Errorf("flag bools: have %v, %v", bools, err)
	}
	if _, err := float64Slice("0.1 x"); err == nil {
		t.Error("expected an error for a non-numeric value")
	}
	if _, err := intSlice(map[string]int{"a": 1}); err == nil {
		t.Error("expected an error for a map")
	}
}

func TestSettings(t *testing.T) {
	path := writeStructure(t)
	load := func(sigmas []float64) *ConfigData {
		cfg, err := LoadConfigData(testViper(map[string]interface{}{"Structure": path, "Sigmas": sigmas}))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}
	a, b, c := load([]float64{0.1}), load([]float64{0.1}), load([]float64{0.2})
	if a.Settings() != b.Settings() {
		t.Errorf("equal settings have keys %s and %s", a.Settings(), b.Settings())
	}
	if a.Settings() == c.Settings() {
		t.Errorf("different settings share key %s", a.Settings())
	}
}
