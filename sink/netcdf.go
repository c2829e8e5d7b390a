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


// Package sink persists per-grid-point conductivity results and reads
// them back as linewidth tables.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/kappa"
)

// NetCDF writes one netCDF file per grid point and smearing width.
type NetCDF struct {
	// Dir is the output directory.
	Dir string
	// Stem prefixes every file name.
	Stem string
}

// FileName returns the path of the file holding grid point gp at the given
// sigma.
func (n *NetCDF) FileName(mesh, divisors [3]int, gp int, sigma float64) string {
	stem := n.Stem
	if stem == "" {
		stem = "kappa"
	}
	name := fmt.Sprintf("%s-m%d%d%d", stem, mesh[0], mesh[1], mesh[2])
	if divisors != [3]int{1, 1, 1} && divisors != [3]int{} {
		name += fmt.Sprintf("-d%d%d%d", divisors[0], divisors[1], divisors[2])
	}
	name += fmt.Sprintf("-g%d-s%s.nc", gp, strconv.FormatFloat(sigma, 'g', -1, 64))
	return filepath.Join(n.Dir, name)
}

// Write implements kappa.ResultSink.
func (n *NetCDF) Write(r *kappa.GridPointResult) error {
	nt, nb := len(r.Temperatures), len(r.Frequencies)
	if nt == 0 || nb == 0 {
		return fmt.Errorf("sink: grid point %d has %d temperatures and %d bands", r.GridPoint, nt, nb)
	}
	h := cdf.NewHeader([]string{"temperature", "band", "cartesian"}, []int{nt, nb, 3})
	h.AddAttribute("", "comment", "Kappa linewidths at one grid point")
	h.AddAttribute("", "mesh", int32s(r.Mesh[:]))
	h.AddAttribute("", "mesh_divisors", int32s(r.MeshDivisors[:]))
	h.AddAttribute("", "grid_point", []int32{int32(r.GridPoint)})
	h.AddAttribute("", "sigma", []float64{r.Sigma})
	h.AddAttribute("", "num_kstar", []int32{int32(r.NumKStar)})

	vars := []struct {
		name, units string
		dims        []string
		data        *sparse.DenseArray
	}{
		{"temperature", "K", []string{"temperature"}, vector(r.Temperatures)},
		{"frequency", "THz", []string{"band"}, vector(r.Frequencies)},
		{"group_velocity", "THz Å", []string{"band", "cartesian"}, velocities(r.GroupVelocities)},
		{"heat_capacity", "eV/K", []string{"temperature", "band"}, matrix(r.HeatCapacities, nb)},
		{"gamma", "THz", []string{"temperature", "band"}, matrix(r.Gamma, nb)},
	}
	for _, v := range vars {
		h.AddVariable(v.name, v.dims, []float64{0})
		h.AddAttribute(v.name, "units", v.units)
	}
	h.Define()

	w, err := os.Create(n.FileName(r.Mesh, r.MeshDivisors, r.GridPoint, r.Sigma))
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return fmt.Errorf("sink: creating netcdf file: %w", err)
	}
	for _, v := range vars {
		if err := writeNCF(f, v.name, v.data); err != nil {
			w.Close()
			return fmt.Errorf("sink: writing variable %s to netcdf file: %w", v.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	end := f.Header.Lengths(name)
	n := 1
	for _, l := range end {
		n *= l
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	start := make([]int, len(end))
	_, err := f.Writer(name, start, end).Write(data.Elements)
	return err
}

// ReadNetCDF reads a file written by NetCDF.Write.
func ReadNetCDF(path string) (*kappa.GridPointResult, error) {
	rw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	defer rw.Close()
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("sink: opening %s: %w", path, err)
	}
	r := &kappa.GridPointResult{}
	copy(r.Mesh[:], ints(f.Header.GetAttribute("", "mesh")))
	copy(r.MeshDivisors[:], ints(f.Header.GetAttribute("", "mesh_divisors")))
	if gp := ints(f.Header.GetAttribute("", "grid_point")); len(gp) == 1 {
		r.GridPoint = gp[0]
	}
	if ks := ints(f.Header.GetAttribute("", "num_kstar")); len(ks) == 1 {
		r.NumKStar = ks[0]
	}
	if s, ok := f.Header.GetAttribute("", "sigma").([]float64); ok && len(s) == 1 {
		r.Sigma = s[0]
	}

	data := make(map[string]*sparse.DenseArray)
	for _, v := range []string{"temperature", "frequency", "group_velocity", "heat_capacity", "gamma"} {
		dims := f.Header.Lengths(v)
		if len(dims) == 0 {
			return nil, fmt.Errorf("sink: %s has no variable %s", path, v)
		}
		d := sparse.ZerosDense(dims...)
		if _, err := f.Reader(v, nil, nil).Read(d.Elements); err != nil {
			return nil, fmt.Errorf("sink: reading %s from %s: %w", v, path, err)
		}
		data[v] = d
	}
	r.Temperatures = data["temperature"].Elements
	r.Frequencies = data["frequency"].Elements
	nb := len(r.Frequencies)
	r.GroupVelocities = make([][3]float64, nb)
	for b := range r.GroupVelocities {
		for a := 0; a < 3; a++ {
			r.GroupVelocities[b][a] = data["group_velocity"].Get(b, a)
		}
	}
	r.HeatCapacities = rows(data["heat_capacity"])
	r.Gamma = rows(data["gamma"])
	return r, nil
}

// LoadNetCDFGamma assembles a linewidth table of shape
// (sigma, grid point, temperature, band) from the files written by n.
func (n *NetCDF) LoadNetCDFGamma(mesh, divisors [3]int, gridPoints []int, sigmas []float64, temperatures []float64, bands int) (*sparse.DenseArray, error) {
	g := sparse.ZerosDense(len(sigmas), len(gridPoints), len(temperatures), bands)
	for j, sigma := range sigmas {
		for i, gp := range gridPoints {
			path := n.FileName(mesh, divisors, gp, sigma)
			r, err := ReadNetCDF(path)
			if err != nil {
				return nil, err
			}
			if err := fill(g, r, j, i, len(temperatures), bands); err != nil {
				return nil, fmt.Errorf("sink: %s: %w", path, err)
			}
		}
	}
	return g, nil
}

// fill copies the linewidths of r into row (j, i) of g.
func fill(g *sparse.DenseArray, r *kappa.GridPointResult, j, i, nt, nb int) error {
	if len(r.Gamma) != nt {
		return fmt.Errorf("have %d temperatures, want %d", len(r.Gamma), nt)
	}
	for k, row := range r.Gamma {
		if len(row) != nb {
			return fmt.Errorf("have %d bands, want %d", len(row), nb)
		}
		for b, v := range row {
			g.Set(v, j, i, k, b)
		}
	}
	return nil
}

func int32s(v []int) []int32 {
	o := make([]int32, len(v))
	for i, x := range v {
		o[i] = int32(x)
	}
	return o
}

func ints(v interface{}) []int {
	a, ok := v.([]int32)
	if !ok {
		return nil
	}
	o := make([]int, len(a))
	for i, x := range a {
		o[i] = int(x)
	}
	return o
}

func vector(v []float64) *sparse.DenseArray {
	d := sparse.ZerosDense(len(v))
	copy(d.Elements, v)
	return d
}

func velocities(v [][3]float64) *sparse.DenseArray {
	d := sparse.ZerosDense(len(v), 3)
	for b, x := range v {
		for a := 0; a < 3; a++ {
			d.Set(x[a], b, a)
		}
	}
	return d
}

func matrix(v [][]float64, cols int) *sparse.DenseArray {
	d := sparse.ZerosDense(len(v), cols)
	for i, row := range v {
		for j := 0; j < cols && j < len(row); j++ {
			d.Set(row[j], i, j)
		}
	}
	return d
}

func rows(d *sparse.DenseArray) [][]float64 {
	o := make([][]float64, d.Shape[0])
	for i := range o {
		o[i] = make([]float64, d.Shape[1])
		for j := range o[i] {
			o[i][j] = d.Get(i, j)
		}
	}
	return o
}
