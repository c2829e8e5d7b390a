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
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// gammaFloor is the linewidth [THz] at or below which a mode is taken
// not to conduct heat.
const gammaFloor = 1e-12

// Model describes the crystal whose conductivity is calculated.
type Model struct {
	// Cell rows are the lattice vectors of the primitive cell [Å].
	Cell [3][3]float64
	// PointGroup holds the real-space rotations in reduced coordinates.
	PointGroup []Rotation
	// DynamicalMatrix is used for group velocities.
	DynamicalMatrix DynamicalMatrix
	// Solver supplies frequencies when linewidths are injected.
	Solver HarmonicSolver
}

// Volume returns the primitive cell volume [Å³].
func (m *Model) Volume() float64 {
	c := m.Cell
	return c[0][0]*(c[1][1]*c[2][2]-c[1][2]*c[2][1]) -
		c[0][1]*(c[1][0]*c[2][2]-c[1][2]*c[2][0]) +
		c[0][2]*(c[1][0]*c[2][1]-c[1][1]*c[2][0])
}

// Config holds the settings of a conductivity calculation.
type Config struct {
	// Mesh is the dense sampling mesh.
	Mesh             [3]int
	MeshDivisors     []int
	CoarseMeshShifts []bool
	// Sigmas are the smearing widths [THz].
	Sigmas []float64
	// TMin, TMax and TStep define the temperatures [K].
	TMin, TMax, TStep float64
	// NoKappaStars disables the symmetry-star sum.
	NoKappaStars bool
	// GVDeltaQ is the finite-difference step for group velocities [1/Å].
	GVDeltaQ float64
	// CutoffFrequency [THz] excludes the modes at or below it.
	CutoffFrequency float64
	// NumWorkers is the number of concurrent grid-point workers.
	// Zero means runtime.GOMAXPROCS(0).
	NumWorkers int
	// Reducer finds irreducible grid points for AutomaticSampling.
	// Nil means a PointGroupReducer over the point group operations
	// that map the coarse mesh onto itself.
	Reducer GridReducer
	Log     logrus.FieldLogger
}

// DefaultConfig returns the default settings for mesh.
func DefaultConfig(mesh [3]int) *Config {
	return &Config{
		Mesh:            mesh,
		Sigmas:          []float64{0.1},
		TMin:            0,
		TMax:            1500,
		TStep:           10,
		GVDeltaQ:        1e-4,
		CutoffFrequency: 1e-4,
		Log:             logrus.StandardLogger(),
	}
}

// Conductivity accumulates the RTA lattice thermal conductivity.
type Conductivity struct {
	model    *Model
	cfg      *Config
	log      logrus.FieldLogger
	mesh     *Mesh
	provider LinewidthProvider

	ops          []Rotation
	cartesian    map[Rotation]*mat.Dense
	conversion   float64
	temperatures []float64

	sampling *Sampling

	frequencies, gv, cv, gamma, kappa *sparse.DenseArray
	numKStar                          []int
	sumNumKStar                       int
}

// NewConductivity prepares a calculation. provider may be nil if
// SetLinewidth is called before Run.
func NewConductivity(model *Model, cfg *Config, provider LinewidthProvider) (*Conductivity, error) {
	if model.DynamicalMatrix == nil {
		return nil, fmt.Errorf("kappa: model has no dynamical matrix")
	}
	if len(cfg.Sigmas) == 0 {
		return nil, fmt.Errorf("kappa: no smearing widths given")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Conductivity{model: model, cfg: cfg, log: log, provider: provider}

	var err error
	if c.mesh, err = NewMesh(cfg.Mesh, cfg.MeshDivisors, cfg.CoarseMeshShifts, log); err != nil {
		return nil, err
	}
	if c.temperatures, err = TemperatureSeries(cfg.TMin, cfg.TMax, cfg.TStep); err != nil {
		return nil, err
	}
	if c.conversion, err = ConversionFactor(model.Volume()); err != nil {
		return nil, err
	}
	reciprocal, err := ReciprocalLattice(model.Cell)
	if err != nil {
		return nil, err
	}
	all := PointGroupOperations(model.PointGroup)
	c.ops = c.mesh.Operations(all)
	if len(c.ops) < len(all) {
		log.WithFields(logrus.Fields{
			"operations": len(all),
			"kept":       len(c.ops),
		}).Info("kappa: skipping point group operations that do not map the coarse mesh onto itself")
	}
	cell := CellMatrix(model.Cell)
	c.cartesian = make(map[Rotation]*mat.Dense, len(c.ops))
	for _, r := range append([]Rotation{Identity}, c.ops...) {
		c.cartesian[r] = CartesianRotation(r, reciprocal, cell)
	}
	log.WithFields(logrus.Fields{
		"mesh":          c.mesh.Dense,
		"coarse_mesh":   c.mesh.Coarse,
		"operations":    len(c.ops),
		"temperatures":  len(c.temperatures),
		"sigmas":        cfg.Sigmas,
		"no_kappa_star": cfg.NoKappaStars,
	}).Info("kappa: lifetime sampling mesh set up")
	return c, nil
}

// SelectGridPoints chooses the grid points to calculate. points is only
// used with ExplicitPoints.
func (c *Conductivity) SelectGridPoints(mode SamplingMode, points []int) error {
	reducer := c.cfg.Reducer
	if reducer == nil {
		reducer = PointGroupReducer{Operations: c.ops}
	}
	s, err := SampleMesh(c.mesh, mode, points, reducer, c.log)
	if err != nil {
		c.sampling = nil
		return err
	}
	c.sampling = s
	c.log.WithFields(logrus.Fields{"mode": mode, "grid_points": len(s.Points)}).Info("kappa: grid points selected")
	return nil
}

// SetLinewidth makes Run use precomputed linewidths of shape
// (sigma, grid point, temperature, band) instead of computing them.
// Frequencies then come from the model's harmonic solver.
func (c *Conductivity) SetLinewidth(gamma *sparse.DenseArray) error {
	if c.model.Solver == nil {
		return fmt.Errorf("kappa: injected linewidths need a harmonic solver")
	}
	if len(gamma.Shape) != 4 {
		return fmt.Errorf("kappa: linewidths must have 4 dimensions, have shape %v", gamma.Shape)
	}
	c.provider = &InjectedLinewidths{Gamma: gamma, Solver: c.model.Solver}
	return nil
}

// RunOptions modify a call to Run.
type RunOptions struct {
	// WriteGamma sends every grid point's results to Sink.
	WriteGamma bool
	Sink       ResultSink
}

// allocate sizes all result tables for the current sampling and resets
// the star counter.
func (c *Conductivity) allocate() {
	nsig, ngp, nt, nb := len(c.cfg.Sigmas), len(c.sampling.Points), len(c.temperatures), c.model.DynamicalMatrix.NumBands()
	c.kappa = sparse.ZerosDense(nsig, ngp, nt, nb, 6)
	c.gamma = sparse.ZerosDense(nsig, ngp, nt, nb)
	c.gv = sparse.ZerosDense(ngp, nb, 3)
	c.cv = sparse.ZerosDense(ngp, nt, nb)
	c.frequencies = sparse.ZerosDense(ngp, nb)
	c.numKStar = make([]int, ngp)
	c.sumNumKStar = 0
}

// Run calculates the conductivity at every selected grid point.
// Grid points are divided among concurrent workers; each worker has its
// own linewidth worker and writes only the rows of its grid points.
func (c *Conductivity) Run(ctx context.Context, opts RunOptions) error {
	if c.sampling == nil || len(c.sampling.Points) == 0 {
		return ErrNoGridPoints
	}
	if c.provider == nil {
		return fmt.Errorf("kappa: no linewidth provider")
	}
	if opts.WriteGamma && opts.Sink == nil {
		return fmt.Errorf("kappa: writing linewidths requires a result sink")
	}
	if in, ok := c.provider.(*InjectedLinewidths); ok {
		want := []int{len(c.cfg.Sigmas), len(c.sampling.Points), len(c.temperatures), c.model.DynamicalMatrix.NumBands()}
		for i, n := range want {
			if in.Gamma.Shape[i] != n {
				return fmt.Errorf("kappa: injected linewidths have shape %v, want %v", in.Gamma.Shape, want)
			}
		}
	}
	start := time.Now()
	c.allocate()
	points := c.sampling.Points

	var sink *queuedSink
	if opts.WriteGamma {
		sink = newQueuedSink(opts.Sink, len(points)*len(c.cfg.Sigmas))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nprocs := c.cfg.NumWorkers
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	if nprocs > len(points) {
		nprocs = len(points)
	}
	errc := make(chan error, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			w, err := c.provider.NewWorker()
			if err != nil {
				errc <- err
				cancel()
				return
			}
			for ii := pp; ii < len(points); ii += nprocs {
				if err := ctx.Err(); err != nil {
					errc <- err
					return
				}
				if err := c.gridPoint(ctx, w, ii, sink); err != nil {
					errc <- fmt.Errorf("kappa: grid point %d: %w", points[ii], err)
					cancel()
					return
				}
			}
		}(pp)
	}
	wg.Wait()
	close(errc)

	var runErr error
	for err := range errc {
		if runErr == nil || (errors.Is(runErr, context.Canceled) && !errors.Is(err, context.Canceled)) {
			runErr = err
		}
	}
	if sink != nil {
		if err := sink.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("kappa: writing results: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	for _, n := range c.numKStar {
		c.sumNumKStar += n
	}
	c.log.WithFields(logrus.Fields{
		"grid_points": len(points),
		"k_star":      c.sumNumKStar,
		"elapsed":     time.Since(start),
	}).Info("kappa: calculation finished")
	return nil
}

// pointState holds the quantities of one grid point while it is processed.
type pointState struct {
	q     [3]float64
	freqs []float64
	gv    [][3]float64
	cv    [][]float64
	gamma [][][]float64
}

// gridPoint calculates the i'th selected grid point.
func (c *Conductivity) gridPoint(ctx context.Context, w LinewidthWorker, i int, sink *queuedSink) error {
	gp := c.sampling.Points[i]
	address := GridAddress(gp, c.mesh.Dense)
	st := &pointState{q: QPoint(address, c.mesh.Dense)}
	log := c.log.WithFields(logrus.Fields{"grid_point": gp, "index": i + 1, "total": len(c.sampling.Points)})
	log.WithField("q", fmt.Sprintf("(%5.2f %5.2f %5.2f)", st.q[0], st.q[1], st.q[2])).Debug("kappa: grid point")

	lw, err := w.Linewidths(ctx, &LinewidthRequest{
		Index:        i,
		GridPoint:    gp,
		Q:            st.q,
		Sigmas:       c.cfg.Sigmas,
		Temperatures: c.temperatures,
	})
	if err != nil {
		return err
	}
	if lw.NumTriplets > 0 {
		log.WithField("triplets", lw.NumTriplets).Debug("kappa: interaction calculated")
	}
	st.freqs, st.gamma = lw.Frequencies, lw.Gamma
	nb := c.model.DynamicalMatrix.NumBands()
	if len(st.freqs) != nb {
		return fmt.Errorf("have %d frequencies, want %d", len(st.freqs), nb)
	}

	if st.gv, err = GroupVelocity(c.model.DynamicalMatrix, c.model.Cell, st.q, c.cfg.GVDeltaQ, c.cfg.CutoffFrequency); err != nil {
		return err
	}
	st.cv = HeatCapacities(c.temperatures, st.freqs, c.cfg.CutoffFrequency)

	rots := Star(address, c.mesh.Dense, c.ops, c.cfg.NoKappaStars)
	if c.sampling.Weights != nil && !c.cfg.NoKappaStars && len(rots) != c.sampling.Weights[i] {
		log.WithFields(logrus.Fields{"k_star": len(rots), "weight": c.sampling.Weights[i]}).
			Warn("kappa: number of elements in k* is unequal to number of equivalent grid points")
	}
	gvSum2 := c.starSum(st.gv, rots, log)
	c.numKStar[i] = len(rots)

	for b, f := range st.freqs {
		c.frequencies.Set(f, i, b)
		for a := 0; a < 3; a++ {
			c.gv.Set(st.gv[b][a], i, b, a)
		}
		for k := range c.temperatures {
			c.cv.Set(st.cv[k][b], i, k, b)
		}
	}
	for j := range c.cfg.Sigmas {
		for k := range c.temperatures {
			for b := range st.freqs {
				g := st.gamma[j][k][b]
				c.gamma.Set(g, j, i, k, b)
				if g <= gammaFloor {
					continue
				}
				for l := 0; l < 6; l++ {
					c.kappa.Set(gvSum2[l][b]*st.cv[k][b]/(2*g)*c.conversion, j, i, k, b, l)
				}
			}
		}
	}

	if sink != nil {
		for j, sigma := range c.cfg.Sigmas {
			sink.enqueue(&GridPointResult{
				Mesh:            c.mesh.Dense,
				MeshDivisors:    c.mesh.Divisors,
				GridPoint:       gp,
				Sigma:           sigma,
				Temperatures:    c.temperatures,
				Frequencies:     st.freqs,
				GroupVelocities: st.gv,
				HeatCapacities:  st.cv,
				Gamma:           st.gamma[j],
				NumKStar:        len(rots),
			})
		}
	}
	return nil
}

// tensorComponents lists the (i, j) indices of xx, yy, zz, yz, xz and xy.
var tensorComponents = [6][2]int{{0, 0}, {1, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}}

// starSum rotates each band's group velocity by every operation of the
// star and sums the six independent components of v⊗v.
func (c *Conductivity) starSum(gv [][3]float64, rots []Rotation, log logrus.FieldLogger) [6][]float64 {
	var sum [6][]float64
	for l := range sum {
		sum[l] = make([]float64, len(gv))
	}
	for _, r := range rots {
		rc := c.cartesian[r]
		for b, v := range gv {
			var vr [3]float64
			for x := 0; x < 3; x++ {
				for y := 0; y < 3; y++ {
					vr[x] += rc.At(x, y) * v[y]
				}
			}
			for l, ij := range tensorComponents {
				sum[l][b] += vr[ij[0]] * vr[ij[1]]
			}
			if e, ok := log.(*logrus.Entry); ok && e.Logger.IsLevelEnabled(logrus.TraceLevel) {
				e.WithFields(logrus.Fields{
					"band":     b,
					"rotation": r,
					"gv":       vr,
					"norm":     math.Sqrt(vr[0]*vr[0] + vr[1]*vr[1] + vr[2]*vr[2]),
				}).Trace("kappa: projected group velocity")
			}
		}
	}
	return sum
}

// Kappa returns the conductivity [W/(m·K)] with shape
// (sigma, grid point, temperature, band, 6), normalized by the total
// number of star members.
func (c *Conductivity) Kappa() *sparse.DenseArray {
	if c.kappa == nil {
		return nil
	}
	if c.sumNumKStar == 0 {
		return sparse.ZerosDense(c.kappa.Shape...)
	}
	return c.kappa.ScaleCopy(1 / float64(c.sumNumKStar))
}

// KappaTotal returns Kappa summed over grid points and bands, with shape
// (sigma, temperature, 6).
func (c *Conductivity) KappaTotal() *sparse.DenseArray {
	k := c.Kappa()
	if k == nil {
		return nil
	}
	s := k.Shape
	t := sparse.ZerosDense(s[0], s[2], 6)
	for j := 0; j < s[0]; j++ {
		for i := 0; i < s[1]; i++ {
			for kk := 0; kk < s[2]; kk++ {
				for b := 0; b < s[3]; b++ {
					for l := 0; l < 6; l++ {
						t.AddVal(k.Get(j, i, kk, b, l), j, kk, l)
					}
				}
			}
		}
	}
	return t
}

// Frequencies returns the frequencies [THz] with shape (grid point, band).
func (c *Conductivity) Frequencies() *sparse.DenseArray { return c.frequencies }

// GroupVelocities returns the group velocities [THz·Å] with shape
// (grid point, band, 3).
func (c *Conductivity) GroupVelocities() *sparse.DenseArray { return c.gv }

// HeatCapacities returns the mode heat capacities [eV/K] with shape
// (grid point, temperature, band).
func (c *Conductivity) HeatCapacities() *sparse.DenseArray { return c.cv }

// Gamma returns the linewidths [THz] with shape
// (sigma, grid point, temperature, band).
func (c *Conductivity) Gamma() *sparse.DenseArray { return c.gamma }

// GridPoints returns the selected dense grid points.
func (c *Conductivity) GridPoints() []int {
	if c.sampling == nil {
		return nil
	}
	return c.sampling.Points
}

// GridWeights returns the weights of the selected grid points, or nil
// when they were given explicitly.
func (c *Conductivity) GridWeights() []int {
	if c.sampling == nil {
		return nil
	}
	return c.sampling.Weights
}

// QPoints returns the reduced wavevectors of the selected grid points.
func (c *Conductivity) QPoints() [][3]float64 {
	q := make([][3]float64, len(c.GridPoints()))
	for i, gp := range c.GridPoints() {
		q[i] = QPoint(GridAddress(gp, c.mesh.Dense), c.mesh.Dense)
	}
	return q
}

// Temperatures returns the temperatures [K].
func (c *Conductivity) Temperatures() []float64 { return c.temperatures }

// SetTemperatures replaces the temperatures used by the next Run.
func (c *Conductivity) SetTemperatures(t []float64) { c.temperatures = t }

// Mesh returns the sampling mesh.
func (c *Conductivity) Mesh() *Mesh { return c.mesh }

// MeshDivisors returns the effective mesh divisors.
func (c *Conductivity) MeshDivisors() [3]int { return c.mesh.Divisors }

// NumKStar returns the star size of each selected grid point in the last Run.
func (c *Conductivity) NumKStar() []int { return c.numKStar }
