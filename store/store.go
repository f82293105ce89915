// Package store keeps the results of workflow runs in a sqlite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableRuns  = "runs"
	tableSites = "sites"

	queryTimeout = 10 * time.Second
)

var (
	ErrNotFound = errors.New("not found")
)

// Run is the outcome of a workflow.
type Run struct {
	ID int64
	// Kind is the workflow, such as lattice or fit.
	Kind string
	// Name identifies the run, and is unique among all runs.
	Name   string
	Config string
	Energy float64
	Loss   float64
	// Created is truncated to seconds.
	Created time.Time
}

// Store is a sqlite database of runs and their site resolved observables.
type Store struct {
	db *sql.DB
}

// Open opens the store at path, creating it if necessary.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.prepare(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (s *Store) prepare() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL UNIQUE,
			config TEXT NOT NULL,
			energy REAL NOT NULL,
			loss REAL NOT NULL,
			created INTEGER NOT NULL
		) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run INTEGER NOT NULL,
			i INTEGER NOT NULL,
			j INTEGER NOT NULL,
			kind TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run, i, j, kind)
		) STRICT`, tableSites),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_kind ON %s (kind)`, tableRuns, tableRuns),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := s.db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}

// SaveRun saves r and its site resolved observables keyed by kind in a single transaction,
// replacing any run of the same name together with its sites.
// It returns the ID of the saved run.
func (s *Store) SaveRun(ctx context.Context, r Run, sites map[string][][]float64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if r.Created.IsZero() {
		r.Created = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	defer tx.Rollback()

	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run IN (SELECT id FROM %s WHERE name=?)`, tableSites, tableRuns)
	if _, err := tx.ExecContext(ctx, sqlStr, r.Name); err != nil {
		return -1, errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE name=?`, tableRuns)
	if _, err := tx.ExecContext(ctx, sqlStr, r.Name); err != nil {
		return -1, errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`INSERT INTO %s (kind, name, config, energy, loss, created) VALUES (?, ?, ?, ?, ?, ?)`, tableRuns)
	res, err := tx.ExecContext(ctx, sqlStr, r.Kind, r.Name, r.Config, r.Energy, r.Loss, r.Created.Unix())
	if err != nil {
		return -1, errors.Wrap(err, fmt.Sprintf("%#v", r))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	for kind, m := range sites {
		if err := insertSites(ctx, tx, id, kind, m); err != nil {
			return -1, errors.Wrap(err, kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return id, nil
}

// Done reports whether a run named name exists.
func (s *Store) Done(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name=?`, tableRuns)
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, name).Scan(&n); err != nil {
		return false, errors.Wrap(err, "")
	}
	return n > 0, nil
}

// LoadRun returns the run named name, or ErrNotFound.
func (s *Store) LoadRun(ctx context.Context, name string) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT id, kind, name, config, energy, loss, created FROM %s WHERE name=?`, tableRuns)
	r, err := scanRun(s.db.QueryRowContext(ctx, sqlStr, name))
	switch {
	case err == sql.ErrNoRows:
		return Run{}, errors.Wrap(ErrNotFound, name)
	case err != nil:
		return Run{}, errors.Wrap(err, "")
	}
	return r, nil
}

// ListRuns returns the runs of kind ordered by ID, or all runs if kind is empty.
func (s *Store) ListRuns(ctx context.Context, kind string) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT id, kind, name, config, energy, loss, created FROM %s WHERE kind=? OR ?='' ORDER BY id`, tableRuns)
	rows, err := s.db.QueryContext(ctx, sqlStr, kind, kind)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

// SaveSites saves the site resolved observable kind of an existing run.
// A per site vector is a matrix of a single row.
func (s *Store) SaveSites(ctx context.Context, run int64, kind string, m [][]float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	sqlStr := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id=?`, tableRuns)
	var n int
	if err := tx.QueryRowContext(ctx, sqlStr, run).Scan(&n); err != nil {
		return errors.Wrap(err, "")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, fmt.Sprintf("run %d", run))
	}
	if err := insertSites(ctx, tx, run, kind, m); err != nil {
		return errors.Wrap(err, "")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func insertSites(ctx context.Context, tx *sql.Tx, run int64, kind string, m [][]float64) error {
	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=? AND kind=?`, tableSites)
	if _, err := tx.ExecContext(ctx, sqlStr, run, kind); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`INSERT INTO %s (run, i, j, kind, value) VALUES (?, ?, ?, ?, ?)`, tableSites)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer stmt.Close()
	for i, row := range m {
		for j, v := range row {
			if _, err := stmt.ExecContext(ctx, run, i, j, kind, v); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %d", i, j))
			}
		}
	}
	return nil
}

// LoadSites returns the site resolved observable kind of run, or ErrNotFound.
func (s *Store) LoadSites(ctx context.Context, run int64, kind string) ([][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT i, j, value FROM %s WHERE run=? AND kind=? ORDER BY i, j`, tableSites)
	rows, err := s.db.QueryContext(ctx, sqlStr, run, kind)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	m := make([][]float64, 0)
	for rows.Next() {
		var i, j int
		var v float64
		if err := rows.Scan(&i, &j, &v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		for len(m) <= i {
			m = append(m, make([]float64, 0))
		}
		for len(m[i]) <= j {
			m[i] = append(m[i], 0)
		}
		m[i][j] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(m) == 0 {
		return nil, errors.Wrap(ErrNotFound, fmt.Sprintf("%d %s", run, kind))
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var created int64
	if err := row.Scan(&r.ID, &r.Kind, &r.Name, &r.Config, &r.Energy, &r.Loss, &created); err != nil {
		return Run{}, err
	}
	r.Created = time.Unix(created, 0)
	return r, nil
}
