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

package harmonic

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/kappa/internal/hash"
)

// Phonon holds the harmonic phonons at one wavevector.
type Phonon struct {
	Q [3]float64
	// Frequencies are in THz, ascending.
	Frequencies []float64
	// Eigenvectors[band] is the mass-weighted polarization of band.
	Eigenvectors [][]complex128
}

// Solver computes phonons at arbitrary reduced wavevectors.
type Solver interface {
	Phonon(ctx context.Context, q [3]float64) (*Phonon, error)
}

// Solver kinds accepted by NewSolver.
const (
	DirectSolver = "direct"
	CachedSolver = "cached"
)

// NewSolver returns a Solver of the given kind over fc.
func NewSolver(kind string, fc *ForceConstants) (Solver, error) {
	switch kind {
	case DirectSolver, "":
		return &Direct{FC: fc}, nil
	case CachedSolver:
		return NewCached(&Direct{FC: fc}, 1000), nil
	default:
		return nil, fmt.Errorf("harmonic: invalid solver kind %q; valid options are %q and %q",
			kind, DirectSolver, CachedSolver)
	}
}

// Direct diagonalizes the dynamical matrix on every call.
type Direct struct {
	FC *ForceConstants
}

// Phonon implements Solver.
func (d *Direct) Phonon(_ context.Context, q [3]float64) (*Phonon, error) {
	vals, vecs, err := d.FC.At(q).Eigen()
	if err != nil {
		return nil, fmt.Errorf("harmonic: q=%v: %w", q, err)
	}
	return &Phonon{
		Q:            q,
		Frequencies:  Frequencies(vals, d.FC.FrequencyFactor()),
		Eigenvectors: vecs,
	}, nil
}

// Cached memoizes an underlying Solver in memory, keyed on the wavevector.
// Concurrent requests for the same wavevector are computed once.
type Cached struct {
	cache *requestcache.Cache
}

// NewCached returns a Cached solver holding up to size phonons.
func NewCached(s Solver, size int) *Cached {
	return &Cached{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return s.Phonon(ctx, request.([3]float64))
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(size)),
	}
}

// Phonon implements Solver.
func (c *Cached) Phonon(ctx context.Context, q [3]float64) (*Phonon, error) {
	r := c.cache.NewRequest(ctx, q, hash.QPoint(q, 1e-10))
	p, err := r.Result()
	if err != nil {
		return nil, err
	}
	return p.(*Phonon), nil
}
