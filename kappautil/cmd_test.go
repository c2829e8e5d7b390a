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
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid(t *testing.T) {
	cfg, err := LoadConfigData(testViper(map[string]interface{}{
		"Structure":    writeStructure(t),
		"Mesh":         []int{4, 4, 4},
		"MeshDivisors": []int{2, 2, 2},
		"LogLevel":     "error",
	}))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Grid(cfg, &buf))
	goldie.New(t).Assert(t, "grid_automatic", buf.Bytes())
}

func TestGridCommand(t *testing.T) {
	Cfg.Set("Structure", writeStructure(t))
	Cfg.Set("Mesh", []int{4, 4, 4})
	Cfg.Set("MeshDivisors", []int{2, 2, 2})
	Cfg.Set("LogLevel", "error")
	var buf bytes.Buffer
	Root.SetOut(&buf)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"grid"})
	require.NoError(t, Root.Execute())
	goldie.New(t).Assert(t, "grid_automatic", buf.Bytes())
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOut(&buf)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	if have, want := buf.String(), "Kappa v0.1.0\n"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

func runConfig(t *testing.T, structure, dir string, set map[string]interface{}) *ConfigData {
	t.Helper()
	v := map[string]interface{}{
		"Structure":  structure,
		"Mesh":       []int{4, 4, 4},
		"TMin":       200.0,
		"TMax":       300.0,
		"TStep":      100.0,
		"NumWorkers": 2,
		"LogLevel":   "warning",
		"Output.Dir": dir,
	}
	for k, x := range set {
		v[k] = x
	}
	cfg, err := LoadConfigData(testViper(v))
	require.NoError(t, err)
	return cfg
}

func TestRunSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig(t, writeStructure(t), dir, map[string]interface{}{
		"WriteGamma":    true,
		"Output.Format": "sqlite",
	})
	var out bytes.Buffer
	c, err := Run(context.Background(), cfg, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "# sigma = 0.1 THz")
	total := c.KappaTotal()
	for l := 0; l < 3; l++ {
		assert.Greater(t, total.Get(0, 0, l), 0.)
	}
	_, err = os.Stat(filepath.Join(dir, "kappa.log"))
	assert.NoError(t, err)

	db, err := sql.Open("sqlite3", filepath.Join(dir, "kappa.db"))
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM linewidths`).Scan(&n))
	assert.Equal(t, len(c.GridPoints())*2*3, n)
}

// TestRunReadGamma feeds the linewidths written by one run into a second
// run for every file format that can be read back.
func TestRunReadGamma(t *testing.T) {
	structure := writeStructure(t)
	for _, format := range []string{NetCDFFormat, YAMLFormat} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			cfg := runConfig(t, structure, dir, map[string]interface{}{
				"Sigmas":        []float64{0.1, 0.2},
				"WriteGamma":    true,
				"Output.Format": format,
			})
			c, err := Run(context.Background(), cfg, &bytes.Buffer{})
			require.NoError(t, err)

			path := dir
			if format == YAMLFormat {
				path = YAMLGammaFile(dir, "kappa")
			}
			cfg2 := runConfig(t, structure, t.TempDir(), map[string]interface{}{
				"Sigmas":    []float64{0.1, 0.2},
				"ReadGamma": path,
			})
			var out bytes.Buffer
			c2, err := Run(context.Background(), cfg2, &out)
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(out.String(), "# sigma"))

			want, have := c.KappaTotal(), c2.KappaTotal()
			require.Equal(t, want.Shape, have.Shape)
			for i, v := range want.Elements {
				assert.InDelta(t, v, have.Elements[i], 1e-9*(1+v), "element %d", i)
			}
		})
	}
}

func TestRunMissingGamma(t *testing.T) {
	cfg := runConfig(t, writeStructure(t), t.TempDir(), map[string]interface{}{
		"ReadGamma": filepath.Join(t.TempDir(), "missing.yaml"),
	})
	_, err := Run(context.Background(), cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunCancel(t *testing.T) {
	cfg := runConfig(t, writeStructure(t), t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, cfg, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
