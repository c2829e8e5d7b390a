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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/kappa"
	"github.com/spatialmodel/kappa/interaction"
	"github.com/spatialmodel/kappa/sink"
)

// Run calculates the conductivity as configured by cfg and writes the
// averaged tensor to out. Log messages go to out and to cfg.LogFile.
func Run(ctx context.Context, cfg *ConfigData, out io.Writer) (*kappa.Conductivity, error) {
	start := time.Now()

	if _, err := os.Stat(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("kappa: the Output.Dir directory doesn't exist: %v", err)
	}
	logfile, err := os.Create(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("kappa: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := newLogger(cfg.LogLevel, io.MultiWriter(out, logfile))
	cfg.Conductivity.Log = log
	log.WithFields(logrus.Fields{
		"version":   kappa.Version,
		"structure": cfg.StructureFile,
		"settings":  cfg.Settings(),
	}).Info("kappa: starting run")

	m, err := cfg.Model()
	if err != nil {
		return nil, err
	}
	provider := &kappa.ComputedLinewidths{
		NewInteraction:  interaction.Factory(m.Solver, cfg.Conductivity.Mesh, cfg.Interaction),
		CutoffFrequency: cfg.Conductivity.CutoffFrequency,
	}
	c, err := kappa.NewConductivity(m, cfg.Conductivity, provider)
	if err != nil {
		return nil, err
	}
	if err := c.SelectGridPoints(cfg.SamplingMode(), cfg.GridPoints); err != nil {
		return nil, err
	}

	if cfg.ReadGamma != "" {
		gamma, err := readGamma(cfg, c, m.DynamicalMatrix.NumBands())
		if err != nil {
			return nil, err
		}
		if err := c.SetLinewidth(gamma); err != nil {
			return nil, err
		}
		log.WithField("path", cfg.ReadGamma).Info("kappa: using precomputed linewidths")
	}

	var opts kappa.RunOptions
	closeSink := func() error { return nil }
	if cfg.WriteGamma {
		opts.WriteGamma = true
		if opts.Sink, closeSink, err = openSink(cfg, log); err != nil {
			return nil, err
		}
	}
	runErr := c.Run(ctx, opts)
	if err := closeSink(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}

	if err := WriteKappa(out, c, cfg.Conductivity.Sigmas); err != nil {
		return nil, err
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("kappa: run finished")
	return c, nil
}

// openSink creates the result sink for cfg.OutputFormat. The returned
// function must be called once the calculation has finished.
func openSink(cfg *ConfigData, log logrus.FieldLogger) (kappa.ResultSink, func() error, error) {
	switch cfg.OutputFormat {
	case NetCDFFormat:
		return &sink.NetCDF{Dir: cfg.OutputDir, Stem: cfg.OutputStem}, func() error { return nil }, nil
	case SQLiteFormat:
		path := filepath.Join(cfg.OutputDir, cfg.OutputStem+".db")
		s, err := sink.OpenSQLite(path, cfg.Conductivity.Mesh, cfg.Settings())
		if err != nil {
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{"path": path, "run_id": s.RunID()}).Info("kappa: writing results to database")
		return s, s.Close, nil
	case YAMLFormat:
		y := sink.NewYAML(cfg.Conductivity.Sigmas)
		path := YAMLGammaFile(cfg.OutputDir, cfg.OutputStem)
		return y, func() error {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("kappa: problem creating linewidth file: %v", err)
			}
			if err := y.Flush(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("kappa: invalid output format %q", cfg.OutputFormat)
	}
}

// YAMLGammaFile returns the path of the YAML linewidth file in dir.
func YAMLGammaFile(dir, stem string) string {
	return filepath.Join(dir, stem+"-gamma.yaml")
}

// readGamma reads the linewidths of the selected grid points of c from
// cfg.ReadGamma.
func readGamma(cfg *ConfigData, c *kappa.Conductivity, bands int) (*sparse.DenseArray, error) {
	switch strings.ToLower(filepath.Ext(cfg.ReadGamma)) {
	case ".yaml", ".yml":
		f, err := os.Open(cfg.ReadGamma)
		if err != nil {
			return nil, fmt.Errorf("kappa: problem opening linewidth file: %v", err)
		}
		defer f.Close()
		return sink.ReadYAMLGamma(f, c.GridPoints(), cfg.Conductivity.Sigmas, c.Temperatures(), bands)
	default:
		n := &sink.NetCDF{Dir: cfg.ReadGamma, Stem: cfg.OutputStem}
		return n.LoadNetCDFGamma(cfg.Conductivity.Mesh, c.MeshDivisors(), c.GridPoints(),
			cfg.Conductivity.Sigmas, c.Temperatures(), bands)
	}
}

// WriteKappa writes the conductivity tensor [W/(m·K)] of every smearing
// width and temperature.
func WriteKappa(w io.Writer, c *kappa.Conductivity, sigmas []float64) error {
	total := c.KappaTotal()
	if total == nil {
		return fmt.Errorf("kappa: no conductivity has been calculated")
	}
	for j, s := range sigmas {
		fmt.Fprintf(w, "# sigma = %g THz\n", s)
		fmt.Fprintf(w, "# %6s %10s %10s %10s %10s %10s %10s\n", "T(K)", "xx", "yy", "zz", "yz", "xz", "xy")
		for k, t := range c.Temperatures() {
			fmt.Fprintf(w, "%8.1f", t)
			for l := 0; l < 6; l++ {
				fmt.Fprintf(w, " %10.4g", total.Get(j, k, l))
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}
