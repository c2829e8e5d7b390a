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
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Hermitian is a dense n×n complex Hermitian matrix stored in row-major order.
type Hermitian struct {
	n    int
	data []complex128
}

// NewHermitian returns an n×n zero matrix.
func NewHermitian(n int) *Hermitian {
	return &Hermitian{n: n, data: make([]complex128, n*n)}
}

// N returns the dimension of h.
func (h *Hermitian) N() int { return h.n }

// At returns element (i, j).
func (h *Hermitian) At(i, j int) complex128 { return h.data[i*h.n+j] }

// Set sets element (i, j) to v.
func (h *Hermitian) Set(i, j int, v complex128) { h.data[i*h.n+j] = v }

// Add adds v to element (i, j).
func (h *Hermitian) Add(i, j int, v complex128) { h.data[i*h.n+j] += v }

// Symmetrize replaces h with (h + h†)/2.
func (h *Hermitian) Symmetrize() {
	for i := 0; i < h.n; i++ {
		h.data[i*h.n+i] = complex(real(h.data[i*h.n+i]), 0)
		for j := i + 1; j < h.n; j++ {
			v := (h.At(i, j) + cmplx.Conj(h.At(j, i))) / 2
			h.Set(i, j, v)
			h.Set(j, i, cmplx.Conj(v))
		}
	}
}

// Difference returns (a - b) * scale.
func Difference(a, b *Hermitian, scale float64) *Hermitian {
	if a.n != b.n {
		panic(fmt.Errorf("harmonic: dimension mismatch %d != %d", a.n, b.n))
	}
	o := NewHermitian(a.n)
	s := complex(scale, 0)
	for i := range a.data {
		o.data[i] = (a.data[i] - b.data[i]) * s
	}
	return o
}

// Expectation returns the real part of v† h v.
func (h *Hermitian) Expectation(v []complex128) float64 {
	var sum complex128
	for i := 0; i < h.n; i++ {
		var row complex128
		for j := 0; j < h.n; j++ {
			row += h.At(i, j) * v[j]
		}
		sum += cmplx.Conj(v[i]) * row
	}
	return real(sum)
}

// Project returns the k×k matrix E† h E where the columns of E are vecs.
func (h *Hermitian) Project(vecs [][]complex128) *Hermitian {
	k := len(vecs)
	o := NewHermitian(k)
	hv := make([][]complex128, k)
	for b, v := range vecs {
		hv[b] = make([]complex128, h.n)
		for i := 0; i < h.n; i++ {
			var s complex128
			for j := 0; j < h.n; j++ {
				s += h.At(i, j) * v[j]
			}
			hv[b][i] = s
		}
	}
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			var s complex128
			for i := 0; i < h.n; i++ {
				s += cmplx.Conj(vecs[a][i]) * hv[b][i]
			}
			o.Set(a, b, s)
		}
	}
	o.Symmetrize()
	return o
}

// Eigen returns the eigenvalues of h in ascending order and the matching
// orthonormal eigenvectors, vecs[k] being the eigenvector of vals[k].
//
// h = A + iB is embedded in the real symmetric matrix [[A, -B], [B, A]],
// whose spectrum is that of h with every eigenvalue doubled. Each complex
// eigenvector u+iv appears there as both (u, v) and (-v, u), so the real
// eigenvectors are converted and Gram-Schmidt filtered to keep one per
// complex direction.
func (h *Hermitian) Eigen() (vals []float64, vecs [][]complex128, err error) {
	n := h.n
	m := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := real(h.At(i, j)), imag(h.At(i, j))
			m.SetSym(i, j, a)
			m.SetSym(n+i, n+j, a)
			m.SetSym(i, n+j, -b)
			m.SetSym(j, n+i, b)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(m, true); !ok {
		return nil, nil, fmt.Errorf("harmonic: eigendecomposition failed")
	}
	values := es.Values(nil)
	var ev mat.Dense
	es.VectorsTo(&ev)

	vals = make([]float64, 0, n)
	vecs = make([][]complex128, 0, n)
	const minResidual = 0.1
	for k := 0; k < 2*n && len(vecs) < n; k++ {
		z := make([]complex128, n)
		for i := 0; i < n; i++ {
			z[i] = complex(ev.At(i, k), ev.At(n+i, k))
		}
		for _, v := range vecs {
			var p complex128
			for i := range v {
				p += cmplx.Conj(v[i]) * z[i]
			}
			for i := range z {
				z[i] -= p * v[i]
			}
		}
		norm := complexNorm(z)
		if norm < minResidual {
			continue
		}
		for i := range z {
			z[i] /= complex(norm, 0)
		}
		vals = append(vals, values[k])
		vecs = append(vecs, z)
	}
	if len(vecs) != n {
		return nil, nil, fmt.Errorf("harmonic: found %d of %d eigenvectors", len(vecs), n)
	}
	return vals, vecs, nil
}

func complexNorm(z []complex128) float64 {
	var s float64
	for _, v := range z {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}
