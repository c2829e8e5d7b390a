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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/kappa"
	"github.com/spatialmodel/kappa/harmonic"
	"github.com/spatialmodel/kappa/interaction"
	"github.com/spatialmodel/kappa/internal/hash"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Output formats accepted by Output.Format.
const (
	NetCDFFormat = "netcdf"
	SQLiteFormat = "sqlite"
	YAMLFormat   = "yaml"
)

// ConfigData holds the checked configuration of a calculation.
type ConfigData struct {
	// StructureFile is the path the structure was read from.
	StructureFile string
	Structure     *harmonic.Structure

	// Conductivity holds the calculation settings. Its Log field is set
	// by Run.
	Conductivity *kappa.Config

	// GridPoints are explicitly requested grid points.
	GridPoints []int

	HarmonicSolver    string
	HarmonicCacheSize int

	Interaction interaction.Params

	ReadGamma  string
	WriteGamma bool

	OutputFormat string
	OutputDir    string
	OutputStem   string

	LogFile  string
	LogLevel logrus.Level
}

// LoadConfigData checks the values in cfg and reads the structure file.
func LoadConfigData(cfg *viper.Viper) (*ConfigData, error) {
	d := &ConfigData{
		StructureFile:     os.ExpandEnv(cfg.GetString("Structure")),
		HarmonicSolver:    cfg.GetString("HarmonicSolver"),
		HarmonicCacheSize: cfg.GetInt("HarmonicCacheSize"),
		ReadGamma:         os.ExpandEnv(cfg.GetString("ReadGamma")),
		WriteGamma:        cfg.GetBool("WriteGamma"),
		OutputFormat:      strings.ToLower(cfg.GetString("Output.Format")),
		OutputDir:         os.ExpandEnv(cfg.GetString("Output.Dir")),
		OutputStem:        cfg.GetString("Output.Stem"),
		Interaction: interaction.Params{
			Umklapp:          cfg.GetFloat64("Interaction.Umklapp"),
			DebyeTemperature: cfg.GetFloat64("Interaction.DebyeTemperature"),
			PointDefect:      cfg.GetFloat64("Interaction.PointDefect"),
		},
	}

	mesh, err := intSlice(cfg.Get("Mesh"))
	if err != nil {
		return nil, fmt.Errorf("kappa: reading 'Mesh': %v", err)
	}
	if len(mesh) != 3 {
		return nil, fmt.Errorf("kappa: 'Mesh' needs 3 values but has %d", len(mesh))
	}
	for _, m := range mesh {
		if m <= 0 {
			return nil, fmt.Errorf("kappa: 'Mesh' values must be positive: %v", mesh)
		}
	}
	c := kappa.DefaultConfig([3]int{mesh[0], mesh[1], mesh[2]})
	d.Conductivity = c

	if c.MeshDivisors, err = intSlice(cfg.Get("MeshDivisors")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'MeshDivisors': %v", err)
	}
	if c.CoarseMeshShifts, err = boolSlice(cfg.Get("CoarseMeshShifts")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'CoarseMeshShifts': %v", err)
	}
	if d.GridPoints, err = intSlice(cfg.Get("GridPoints")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'GridPoints': %v", err)
	}
	if c.Sigmas, err = float64Slice(cfg.Get("Sigmas")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'Sigmas': %v", err)
	}
	if len(c.Sigmas) == 0 {
		return nil, fmt.Errorf("kappa: 'Sigmas' needs at least one smearing width")
	}
	for _, s := range c.Sigmas {
		if s <= 0 {
			return nil, fmt.Errorf("kappa: 'Sigmas' must be positive: %v", c.Sigmas)
		}
	}
	c.NoKappaStars = cfg.GetBool("NoKappaStars")
	if c.TMin, err = cast.ToFloat64E(cfg.Get("TMin")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'TMin': %v", err)
	}
	if c.TMax, err = cast.ToFloat64E(cfg.Get("TMax")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'TMax': %v", err)
	}
	if c.TStep, err = cast.ToFloat64E(cfg.Get("TStep")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'TStep': %v", err)
	}
	if _, err := kappa.TemperatureSeries(c.TMin, c.TMax, c.TStep); err != nil {
		return nil, err
	}
	c.GVDeltaQ = cfg.GetFloat64("GVDeltaQ")
	if c.GVDeltaQ <= 0 {
		return nil, fmt.Errorf("kappa: 'GVDeltaQ' must be positive but is %g", c.GVDeltaQ)
	}
	c.CutoffFrequency = cfg.GetFloat64("CutoffFrequency")
	if c.NumWorkers, err = cast.ToIntE(cfg.Get("NumWorkers")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'NumWorkers': %v", err)
	}

	switch d.HarmonicSolver {
	case harmonic.DirectSolver, harmonic.CachedSolver:
	default:
		return nil, fmt.Errorf("kappa: 'HarmonicSolver' must be %q or %q but is %q",
			harmonic.DirectSolver, harmonic.CachedSolver, d.HarmonicSolver)
	}
	switch d.OutputFormat {
	case NetCDFFormat, SQLiteFormat, YAMLFormat:
	default:
		return nil, fmt.Errorf("kappa: 'Output.Format' must be one of %s, %s or %s but is %q",
			NetCDFFormat, SQLiteFormat, YAMLFormat, d.OutputFormat)
	}
	if d.OutputStem == "" {
		d.OutputStem = "kappa"
	}
	if d.LogLevel, err = logrus.ParseLevel(cfg.GetString("LogLevel")); err != nil {
		return nil, fmt.Errorf("kappa: reading 'LogLevel': %v", err)
	}
	d.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), d.OutputDir, d.OutputStem)

	if d.StructureFile == "" {
		return nil, fmt.Errorf("kappa: you need to specify a structure file (for example: --Structure=si.toml)")
	}
	f, err := os.Open(d.StructureFile)
	if err != nil {
		return nil, fmt.Errorf("kappa: problem opening structure file: %v", err)
	}
	defer f.Close()
	if d.Structure, err = harmonic.ReadStructure(f); err != nil {
		return nil, fmt.Errorf("kappa: reading %s: %w", d.StructureFile, err)
	}
	return d, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, dir, stem string) string {
	if logFile == "" {
		logFile = filepath.Join(dir, stem+".log")
	}
	return logFile
}

// SamplingMode returns how grid points are chosen.
func (d *ConfigData) SamplingMode() kappa.SamplingMode {
	return kappa.DefaultSamplingMode(d.GridPoints, d.Conductivity.NoKappaStars)
}

// Settings returns a key identifying the structure and the settings that
// change the calculated conductivity.
func (d *ConfigData) Settings() string {
	c := d.Conductivity
	return hash.Hash(struct {
		Structure                 harmonic.Structure
		Mesh                      [3]int
		MeshDivisors              []int
		CoarseMeshShifts          []bool
		NoKappaStars              bool
		GridPoints                []int
		Sigmas                    []float64
		TMin, TMax, TStep         float64
		GVDeltaQ, CutoffFrequency float64
		Interaction               interaction.Params
		ReadGamma                 string
	}{
		*d.Structure, c.Mesh, c.MeshDivisors, c.CoarseMeshShifts, c.NoKappaStars, d.GridPoints,
		c.Sigmas, c.TMin, c.TMax, c.TStep, c.GVDeltaQ, c.CutoffFrequency, d.Interaction, d.ReadGamma,
	})
}

// Model builds the crystal model and its harmonic solver.
func (d *ConfigData) Model() (*kappa.Model, error) {
	fc, err := harmonic.NewForceConstants(d.Structure)
	if err != nil {
		return nil, err
	}
	var solver harmonic.Solver
	if d.HarmonicSolver == harmonic.CachedSolver && d.HarmonicCacheSize > 0 {
		solver = harmonic.NewCached(&harmonic.Direct{FC: fc}, d.HarmonicCacheSize)
	} else if solver, err = harmonic.NewSolver(d.HarmonicSolver, fc); err != nil {
		return nil, err
	}
	m := &kappa.Model{
		Cell:            d.Structure.Cell,
		DynamicalMatrix: fc,
		Solver:          solver,
	}
	for _, r := range d.Structure.PointGroup {
		m.PointGroup = append(m.PointGroup, kappa.Rotation(r))
	}
	return m, nil
}

// Values set with flags reach viper as strings like "[1,2,3]", values from
// configuration files as slices and values from the environment as
// space- or comma-separated strings.
func splitList(v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		f := strings.FieldsFunc(strings.Trim(strings.TrimSpace(t), "[]"), func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		o := make([]interface{}, len(f))
		for i, s := range f {
			o[i] = s
		}
		return o, nil
	case []int:
		o := make([]interface{}, len(t))
		for i, x := range t {
			o[i] = x
		}
		return o, nil
	case []float64:
		o := make([]interface{}, len(t))
		for i, x := range t {
			o[i] = x
		}
		return o, nil
	case []bool:
		o := make([]interface{}, len(t))
		for i, x := range t {
			o[i] = x
		}
		return o, nil
	case []string:
		o := make([]interface{}, len(t))
		for i, x := range t {
			o[i] = x
		}
		return o, nil
	default:
		return cast.ToSliceE(v)
	}
}

func intSlice(v interface{}) ([]int, error) {
	l, err := splitList(v)
	if err != nil {
		return nil, err
	}
	o := make([]int, len(l))
	for i, x := range l {
		if o[i], err = cast.ToIntE(x); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func float64Slice(v interface{}) ([]float64, error) {
	l, err := splitList(v)
	if err != nil {
		return nil, err
	}
	o := make([]float64, len(l))
	for i, x := range l {
		if o[i], err = cast.ToFloat64E(x); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func boolSlice(v interface{}) ([]bool, error) {
	l, err := splitList(v)
	if err != nil {
		return nil, err
	}
	o := make([]bool, len(l))
	for i, x := range l {
		if o[i], err = cast.ToBoolE(x); err != nil {
			return nil, err
		}
	}
	return o, nil
}
