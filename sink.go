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
	"sync"
)

// GridPointResult holds the per-grid-point quantities of one smearing
// width, as written by a ResultSink.
type GridPointResult struct {
	Mesh         [3]int
	MeshDivisors [3]int
	GridPoint    int
	// Sigma is the smearing width [THz].
	Sigma        float64
	Temperatures []float64
	// Frequencies [band] in THz.
	Frequencies []float64
	// GroupVelocities [band] in THz·Å.
	GroupVelocities [][3]float64
	// HeatCapacities [temperature][band] in eV/K.
	HeatCapacities [][]float64
	// Gamma [temperature][band] in THz.
	Gamma [][]float64
	// NumKStar is the size of the star of GridPoint.
	NumKStar int
}

// ResultSink persists per-grid-point results.
type ResultSink interface {
	Write(r *GridPointResult) error
}

// queuedSink decouples a ResultSink from the workers producing results.
// Results are written in order of arrival by a single goroutine.
type queuedSink struct {
	sink  ResultSink
	queue chan *GridPointResult
	wg    sync.WaitGroup
	err   error
}

func newQueuedSink(s ResultSink, size int) *queuedSink {
	q := &queuedSink{sink: s, queue: make(chan *GridPointResult, size)}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for r := range q.queue {
			if q.err != nil {
				continue
			}
			q.err = q.sink.Write(r)
		}
	}()
	return q
}

// enqueue schedules r to be written.
func (q *queuedSink) enqueue(r *GridPointResult) {
	q.queue <- r
}

// Close waits for all queued results to be written and returns the
// first write error.
func (q *queuedSink) Close() error {
	close(q.queue)
	q.wg.Wait()
	return q.err
}
