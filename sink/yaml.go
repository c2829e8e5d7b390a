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

package sink

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/kappa"
	"gopkg.in/yaml.v3"
)

// GammaFile is the YAML representation of a linewidth table.
type GammaFile struct {
	Mesh         [3]int           `yaml:"mesh,flow"`
	Sigmas       []float64        `yaml:"sigmas,flow"`
	Temperatures []float64        `yaml:"temperatures,flow"`
	GridPoints   []GammaGridPoint `yaml:"grid_points"`
}

// GammaGridPoint holds the linewidths of one grid point.
type GammaGridPoint struct {
	GridPoint   int       `yaml:"grid_point"`
	Frequencies []float64 `yaml:"frequencies,flow"`
	// Gamma is indexed by [sigma][temperature][band].
	Gamma [][][]float64 `yaml:"gamma,flow"`
}

// YAML collects results in memory and writes them as a single YAML
// document on Flush.
type YAML struct {
	mu     sync.Mutex
	points map[int]*GammaGridPoint
	file   GammaFile
}

// NewYAML returns a YAML sink for the given smearing widths.
func NewYAML(sigmas []float64) *YAML {
	return &YAML{
		points: make(map[int]*GammaGridPoint),
		file:   GammaFile{Sigmas: sigmas},
	}
}

// Write implements kappa.ResultSink.
func (y *YAML) Write(r *kappa.GridPointResult) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	j := -1
	for i, s := range y.file.Sigmas {
		if s == r.Sigma {
			j = i
		}
	}
	if j < 0 {
		return fmt.Errorf("sink: sigma %g is not one of %v", r.Sigma, y.file.Sigmas)
	}
	y.file.Mesh = r.Mesh
	y.file.Temperatures = r.Temperatures
	p, ok := y.points[r.GridPoint]
	if !ok {
		p = &GammaGridPoint{
			GridPoint:   r.GridPoint,
			Frequencies: r.Frequencies,
			Gamma:       make([][][]float64, len(y.file.Sigmas)),
		}
		y.points[r.GridPoint] = p
	}
	p.Gamma[j] = r.Gamma
	return nil
}

// Flush writes the collected results to w, ordered by grid point.
func (y *YAML) Flush(w io.Writer) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	f := y.file
	f.GridPoints = make([]GammaGridPoint, 0, len(y.points))
	for _, p := range y.points {
		f.GridPoints = append(f.GridPoints, *p)
	}
	sort.Slice(f.GridPoints, func(i, j int) bool { return f.GridPoints[i].GridPoint < f.GridPoints[j].GridPoint })
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("sink: encoding yaml: %w", err)
	}
	return enc.Close()
}

// ReadYAMLGamma reads a linewidth table of shape
// (sigma, grid point, temperature, band) for the given grid points.
func ReadYAMLGamma(r io.Reader, gridPoints []int, sigmas, temperatures []float64, bands int) (*sparse.DenseArray, error) {
	var f GammaFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("sink: decoding yaml: %w", err)
	}
	if len(f.Sigmas) != len(sigmas) {
		return nil, fmt.Errorf("sink: file has sigmas %v, want %v", f.Sigmas, sigmas)
	}
	for i := range sigmas {
		if f.Sigmas[i] != sigmas[i] {
			return nil, fmt.Errorf("sink: file has sigmas %v, want %v", f.Sigmas, sigmas)
		}
	}
	byPoint := make(map[int]GammaGridPoint, len(f.GridPoints))
	for _, p := range f.GridPoints {
		byPoint[p.GridPoint] = p
	}
	g := sparse.ZerosDense(len(sigmas), len(gridPoints), len(temperatures), bands)
	for i, gp := range gridPoints {
		p, ok := byPoint[gp]
		if !ok {
			return nil, fmt.Errorf("sink: no linewidths for grid point %d", gp)
		}
		if len(p.Gamma) != len(sigmas) {
			return nil, fmt.Errorf("sink: grid point %d has %d sigmas, want %d", gp, len(p.Gamma), len(sigmas))
		}
		for j := range sigmas {
			r := &kappa.GridPointResult{Gamma: p.Gamma[j]}
			if err := fill(g, r, j, i, len(temperatures), bands); err != nil {
				return nil, fmt.Errorf("sink: grid point %d: %w", gp, err)
			}
		}
	}
	return g, nil
}
