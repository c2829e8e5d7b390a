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
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/kappa"
)

// Grid lists the grid points that Run would calculate with cfg.
func Grid(cfg *ConfigData, w io.Writer) error {
	cfg.Conductivity.Log = newLogger(cfg.LogLevel, os.Stderr)
	m, err := cfg.Model()
	if err != nil {
		return err
	}
	c, err := kappa.NewConductivity(m, cfg.Conductivity, nil)
	if err != nil {
		return err
	}
	mode := cfg.SamplingMode()
	if err := c.SelectGridPoints(mode, cfg.GridPoints); err != nil {
		return err
	}
	return WriteGrid(w, c, m, mode, cfg.Conductivity.NoKappaStars)
}

// WriteGrid writes one line per selected grid point of c: its position in
// the list, its index, its weight, the size of its star and its reduced
// wavevector.
func WriteGrid(w io.Writer, c *kappa.Conductivity, m *kappa.Model, mode kappa.SamplingMode, noStars bool) error {
	mesh := c.Mesh()
	ops := mesh.Operations(kappa.PointGroupOperations(m.PointGroup))
	weights := c.GridWeights()
	if _, err := fmt.Fprintf(w, "# mesh %d %d %d divisors %d %d %d sampling %s\n",
		mesh.Dense[0], mesh.Dense[1], mesh.Dense[2],
		mesh.Divisors[0], mesh.Divisors[1], mesh.Divisors[2], mode); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "# index grid_point weight k_star q_a q_b q_c"); err != nil {
		return err
	}
	total := 0
	for i, gp := range c.GridPoints() {
		weight := 1
		if weights != nil {
			weight = weights[i]
		}
		total += weight
		a := kappa.GridAddress(gp, mesh.Dense)
		q := kappa.QPoint(a, mesh.Dense)
		star := kappa.Star(a, mesh.Dense, ops, noStars)
		if _, err := fmt.Fprintf(w, "%5d %10d %6d %6d %8.4f %8.4f %8.4f\n",
			i+1, gp, weight, len(star), q[0], q[1], q[2]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "# %d grid points, total weight %d\n", len(c.GridPoints()), total)
	return err
}

// newLogger returns a logger writing text records to w.
func newLogger(level logrus.Level, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return log
}
