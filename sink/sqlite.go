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
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spatialmodel/kappa"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores the results of a run in a SQLite database, one row per
// (grid point, sigma, temperature, band). Each SQLite value records one
// run, identified by a random UUID.
type SQLite struct {
	db    *sql.DB
	runID string
	mesh  [3]int
}

// OpenSQLite creates or opens the database at path and registers a new run
// on the given mesh. settings identifies the configuration of the run.
func OpenSQLite(path string, mesh [3]int, settings string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: failed to connect to database: %w", err)
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sink: failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: failed to apply schema: %w", err)
	}

	s := &SQLite{db: db, runID: uuid.New().String(), mesh: mesh}
	_, err = db.Exec(`INSERT INTO runs (id, created, mesh, settings) VALUES (?, ?, ?, ?)`,
		s.runID, time.Now().UTC().Format(time.RFC3339), fmt.Sprintf("%d %d %d", mesh[0], mesh[1], mesh[2]), settings)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: failed to register run: %w", err)
	}
	return s, nil
}

// RunID returns the identifier of the current run.
func (s *SQLite) RunID() string { return s.runID }

// DB returns the underlying database.
func (s *SQLite) DB() *sql.DB { return s.db }

// Write implements kappa.ResultSink.
func (s *SQLite) Write(r *kappa.GridPointResult) error {
	if r.Mesh != s.mesh {
		return fmt.Errorf("sink: result on mesh %v written to run on mesh %v", r.Mesh, s.mesh)
	}
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sink: begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO linewidths
		(run_id, grid_point, sigma, temperature, band, frequency, gamma, heat_capacity, gv_x, gv_y, gv_z, num_kstar)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sink: prepare insert: %w", err)
	}
	defer stmt.Close()
	for k, t := range r.Temperatures {
		for b, f := range r.Frequencies {
			v := r.GroupVelocities[b]
			if _, err := stmt.ExecContext(ctx, s.runID, r.GridPoint, r.Sigma, t, b, f,
				r.Gamma[k][b], r.HeatCapacities[k][b], v[0], v[1], v[2], r.NumKStar); err != nil {
				tx.Rollback()
				return fmt.Errorf("sink: write grid point %d: %w", r.GridPoint, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sink: commit grid point %d: %w", r.GridPoint, err)
	}
	return nil
}

// Count returns the number of linewidth rows stored for the current run.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM linewidths WHERE run_id = ?`, s.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sink: count linewidths: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
