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

// Package hash creates cache keys for wavevectors and other request payloads.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hash key for the specified object.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()

	e := gob.NewEncoder(h)
	if err := e.Encode(object); err == nil {
		bKey := h.Sum([]byte{})
		return fmt.Sprintf("%x", bKey[0:h.Size()])
	}
	// gob refuses some values (e.g. unexported struct fields),
	// so fall back to a deterministic spew dump.
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	bKey := h.Sum([]byte{})
	return fmt.Sprintf("%x", bKey[0:h.Size()])
}

// QPoint returns a key for the reduced wavevector q. Components are
// rounded to tol before formatting so that wavevectors computed along
// different arithmetic paths share a key. Negative zero is folded into zero.
func QPoint(q [3]float64, tol float64) string {
	parts := make([]string, len(q))
	for i, v := range q {
		r := math.Round(v/tol) * tol
		if r == 0 {
			r = 0
		}
		parts[i] = fmt.Sprintf("%.12g", r)
	}
	return "q_" + strings.Join(parts, "_")
}
